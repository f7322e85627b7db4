package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/golog"
	"github.com/shimmeringbee/persistence/impl/memory"
	"github.com/shimmeringbee/zdaremote/bridge"
	"github.com/shimmeringbee/zdaremote/implcaps/factory"
	"github.com/shimmeringbee/zdaremote/profile"
	"github.com/shimmeringbee/zdaremote/proprietary/hue"
	"github.com/shimmeringbee/zdaremote/rules"
	"github.com/shimmeringbee/zigbee"
	"github.com/shimmeringbee/zstack"
	"go.bug.st/serial.v1"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const initialiseTimeout = 2 * time.Minute

func main() {
	configFile := flag.String("c", "./zdaremote.yaml", "path to configuration file")
	triggers := flag.String("triggers", "", "print the trigger table of the named profile and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	goLogger := log.New(os.Stderr, "", log.LstdFlags)
	l := logwrap.New(golog.Wrap(goLogger))

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fatal(ctx, l, "Failed to load configuration.", err)
	}

	profiles, err := loadProfiles(cfg.Profiles)
	if err != nil {
		fatal(ctx, l, "Failed to load custom profiles.", err)
	}

	if *triggers != "" {
		if err := printTriggers(profiles, *triggers); err != nil {
			fatal(ctx, l, "Failed to print trigger table.", err)
		}
		return
	}

	engine, err := loadRules(profiles, cfg.RulesDir)
	if err != nil {
		fatal(ctx, l, "Failed to load rules.", err)
	}

	port, err := serial.Open(cfg.Serial.Port, &serial.Mode{BaudRate: cfg.Serial.BaudRate})
	if err != nil {
		fatal(ctx, l, "Failed to open serial port.", err)
	}
	defer port.Close()
	port.SetRTS(true)

	z := zstack.New(port, zstack.NewNodeTable())

	netCfg, err := cfg.Network.Zigbee()
	if err != nil {
		fatal(ctx, l, "Invalid network configuration.", err)
	}

	ictx, icancel := context.WithTimeout(ctx, initialiseTimeout)
	defer icancel()

	if err := z.Initialise(ictx, netCfg); err != nil {
		fatal(ctx, l, "Failed to initialise adapter.", err)
	}

	if err := z.RegisterAdapterEndpoint(ictx, bridge.AdapterEndpoint, zigbee.ProfileHomeAutomation, 1, 1, []zigbee.ClusterID{hue.RemoteClusterID}, []zigbee.ClusterID{}); err != nil {
		fatal(ctx, l, "Failed to register adapter endpoint.", err)
	}

	if cfg.Network.PermitJoin {
		if err := z.PermitJoin(ictx, true); err != nil {
			l.LogWarn(ctx, "Failed to permit joining.", logwrap.Err(err))
		}
	}

	publisher, err := bridge.NewMQTTPublisher(ctx, cfg.MQTT, l)
	if err != nil {
		fatal(ctx, l, "Failed to connect to MQTT broker.", err)
	}
	defer publisher.Close()

	b := bridge.New(ctx, z, memory.New(), profiles)
	b.WithLogWrapLogger(l)
	b.WithRules(engine)
	b.WithPublisher(publisher, cfg.MQTT.RootTopic)

	for _, d := range cfg.Devices {
		if err := b.AddDevice(d); err != nil {
			fatal(ctx, l, "Failed to add device.", err)
		}
	}

	if err := b.Start(); err != nil {
		fatal(ctx, l, "Failed to start bridge.", err)
	}

	l.LogInfo(ctx, "Bridge running.", logwrap.Datum("Devices", len(cfg.Devices)))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	l.LogInfo(ctx, "Shutting down.")

	if err := b.Stop(); err != nil {
		l.LogError(ctx, "Failed to stop bridge cleanly.", logwrap.Err(err))
	}
}

func fatal(ctx context.Context, l logwrap.Logger, msg string, err error) {
	l.LogError(ctx, msg, logwrap.Err(err))
	os.Exit(1)
}

func loadConfig(path string) (bridge.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return bridge.Config{}, err
	}
	defer f.Close()

	return bridge.LoadConfig(f)
}

func loadProfiles(path string) (*profile.Registry, error) {
	r := profile.Default()

	if path == "" {
		return r, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	custom, err := profile.LoadYAML(f)
	if err != nil {
		return nil, err
	}

	for _, p := range custom {
		if err := r.Add(p); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func loadRules(profiles *profile.Registry, dir string) (*rules.Engine, error) {
	e := rules.New()
	e.Add(profiles.RuleSet(factory.PhilipsRemote))

	if dir != "" {
		if err := e.LoadFS(os.DirFS(dir)); err != nil {
			return nil, err
		}
	}

	if err := e.CompileRules(); err != nil {
		return nil, err
	}

	return e, nil
}

func printTriggers(profiles *profile.Registry, name string) error {
	p, err := profiles.Get(name)
	if err != nil {
		return fmt.Errorf("%w, known profiles: %v", err, profiles.Names())
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()

	return enc.Encode(p.Triggers().Entries())
}
