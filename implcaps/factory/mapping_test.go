package factory

import (
	"github.com/shimmeringbee/logwrap"
	"github.com/shimmeringbee/logwrap/impl/discard"
	"github.com/shimmeringbee/zdaremote/implcaps"
	"github.com/shimmeringbee/zdaremote/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"testing"
)

func TestCreate(t *testing.T) {
	t.Run("every mapped implementation can be created and reports its flag", func(t *testing.T) {
		zi := &implcaps.MockZDAInterface{}
		zi.On("Logger").Return(logwrap.New(discard.Discard()))
		zi.On("ZCLRegister", mock.Anything)

		for name, flag := range Mapping {
			c := Create(name, zi, profile.Default())

			if assert.NotNil(t, c, name) {
				assert.Equal(t, name, c.ImplName())
				assert.Equal(t, flag, c.Capability())
			}
		}
	})

	t.Run("unknown names create nothing", func(t *testing.T) {
		assert.Nil(t, Create("ZCLTemperatureSensor", &implcaps.MockZDAInterface{}, profile.Default()))
	})
}
