package bridge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"github.com/shimmeringbee/zigbee"
	"gopkg.in/yaml.v3"
	"io"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultBaudRate  = 115200
	DefaultChannel   = 15
	DefaultRootTopic = "zdaremote"
	DefaultClientID  = "zdaremote"
)

type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

type NetworkConfig struct {
	PANID         uint16 `yaml:"pan_id"`
	ExtendedPANID uint64 `yaml:"extended_pan_id"`
	// NetworkKey is 16 bytes, hex encoded.
	NetworkKey string `yaml:"network_key"`
	Channel    uint8  `yaml:"channel"`
	PermitJoin bool   `yaml:"permit_join"`
}

type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	RootTopic string `yaml:"root_topic"`
	QoS       byte   `yaml:"qos"`
}

// DeviceConfig declares a remote. Profile may be left empty, in which case the rules engine selects one
// from Manufacturer and Model.
type DeviceConfig struct {
	IEEEAddress  string        `yaml:"ieee"`
	Manufacturer string        `yaml:"manufacturer"`
	Model        string        `yaml:"model"`
	Profile      string        `yaml:"profile"`
	Endpoint     uint8         `yaml:"endpoint"`
	Threshold    time.Duration `yaml:"threshold"`
}

type Config struct {
	Serial   SerialConfig   `yaml:"serial"`
	Network  NetworkConfig  `yaml:"network"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Profiles string         `yaml:"profiles"`
	RulesDir string         `yaml:"rules_dir"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// LoadConfig decodes a YAML configuration and fills in defaults.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config

	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if cfg.Serial.BaudRate == 0 {
		cfg.Serial.BaudRate = DefaultBaudRate
	}

	if cfg.Network.Channel == 0 {
		cfg.Network.Channel = DefaultChannel
	}

	if cfg.MQTT.RootTopic == "" {
		cfg.MQTT.RootTopic = DefaultRootTopic
	}

	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultClientID
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Network.NetworkKey == "" {
		return fmt.Errorf("%w: network key is required", ErrInvalidConfig)
	}

	if _, err := c.Network.Key(); err != nil {
		return err
	}

	if c.Network.Channel < 11 || c.Network.Channel > 26 {
		return fmt.Errorf("%w: channel %d outside 11-26", ErrInvalidConfig, c.Network.Channel)
	}

	seen := map[zigbee.IEEEAddress]bool{}

	for i, d := range c.Devices {
		addr, err := d.Address()
		if err != nil {
			return fmt.Errorf("%w: device %d: %w", ErrInvalidConfig, i, err)
		}

		if seen[addr] {
			return fmt.Errorf("%w: device %s declared twice", ErrInvalidConfig, addr)
		}
		seen[addr] = true

		if d.Profile == "" && (d.Manufacturer == "" || d.Model == "") {
			return fmt.Errorf("%w: device %s needs a profile or a manufacturer and model", ErrInvalidConfig, addr)
		}
	}

	return nil
}

func (n NetworkConfig) Key() (zigbee.NetworkKey, error) {
	var key zigbee.NetworkKey

	b, err := hex.DecodeString(strings.TrimPrefix(n.NetworkKey, "0x"))
	if err != nil {
		return key, fmt.Errorf("%w: network key: %w", ErrInvalidConfig, err)
	}

	if len(b) != len(key) {
		return key, fmt.Errorf("%w: network key must be %d bytes", ErrInvalidConfig, len(key))
	}

	copy(key[:], b)
	return key, nil
}

func (n NetworkConfig) Zigbee() (zigbee.NetworkConfiguration, error) {
	key, err := n.Key()
	if err != nil {
		return zigbee.NetworkConfiguration{}, err
	}

	return zigbee.NetworkConfiguration{
		PANID:         zigbee.PANID(n.PANID),
		ExtendedPANID: zigbee.ExtendedPANID(n.ExtendedPANID),
		NetworkKey:    key,
		Channel:       n.Channel,
	}, nil
}

// Address parses the IEEE address, which may be prefixed with 0x.
func (d DeviceConfig) Address() (zigbee.IEEEAddress, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(d.IEEEAddress), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("ieee address '%s': %w", d.IEEEAddress, err)
	}

	return zigbee.IEEEAddress(v), nil
}
