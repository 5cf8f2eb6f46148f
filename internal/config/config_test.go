package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/sensorsim/internal/config"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own config files and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SENSORSIM_CONFIG", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorsim.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "iot_data.db", cfg.DBPath)
	assert.Equal(t, 3, cfg.Devices)
	assert.Equal(t, 60*time.Second, cfg.Duration)
	assert.Equal(t, 2*time.Second, cfg.MinInterval)
	assert.Equal(t, 10*time.Second, cfg.MaxInterval)
	assert.InDelta(t, 0.05, cfg.DropRate, 1e-9)
	assert.Equal(t, config.TransportDirect, cfg.Transport)
	assert.Equal(t, []sensor.Kind{sensor.KindTemperature, sensor.KindHumidity, sensor.KindLight}, cfg.Kinds())
	assert.Equal(t, "sensors", cfg.TopicPrefix)
	assert.Equal(t, 3.0, cfg.ZThreshold)
	assert.True(t, cfg.Metrics)
	assert.Nil(t, cfg.SensorKind())
	assert.Empty(t, cfg.File)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
db_path = "/tmp/fleet.db"
devices = 7
duration = "2m"
drop_rate = 0.2
sensors = ["pressure", "motion"]
granularity = "15min"
`)
	t.Setenv("SENSORSIM_CONFIG", path)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/tmp/fleet.db", cfg.DBPath)
	assert.Equal(t, 7, cfg.Devices)
	assert.Equal(t, 2*time.Minute, cfg.Duration)
	assert.InDelta(t, 0.2, cfg.DropRate, 1e-9)
	assert.Equal(t, []sensor.Kind{sensor.KindPressure, sensor.KindMotion}, cfg.Kinds())
	assert.Equal(t, "15min", cfg.Granularity)
}

func TestPrecedence(t *testing.T) {
	isolate(t)
	t.Setenv("SENSORSIM_CONFIG", writeConfig(t, `
devices = 7
hours = 4
transport = "mqtt"
`))
	t.Setenv("SENSORSIM_DEVICES", "9")
	t.Setenv("SENSORSIM_HOURS", "6")

	cfg, err := config.Load([]string{"--devices", "11", "stats", "extra"})
	require.NoError(t, err)

	assert.Equal(t, 11, cfg.Devices, "flag beats env and file")
	assert.Equal(t, 6, cfg.Hours, "env beats file")
	assert.Equal(t, config.TransportMQTT, cfg.Transport, "file beats default")
	assert.Equal(t, []string{"stats", "extra"}, cfg.Args)
}

func TestSensorTypeFilter(t *testing.T) {
	isolate(t)

	cfg, err := config.Load([]string{"--sensor-type", "Humidity"})
	require.NoError(t, err)
	require.NotNil(t, cfg.SensorKind())
	assert.Equal(t, sensor.KindHumidity, *cfg.SensorKind())

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(-time.Hour), cfg.Since(now))
}

func TestInvalidFile(t *testing.T) {
	isolate(t)
	t.Setenv("SENSORSIM_CONFIG", writeConfig(t, "This is not a valid TOML file"))

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestUnknownFlag(t *testing.T) {
	isolate(t)

	_, err := config.Load([]string{"--fanspeed", "80"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrBindFlags))
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"drop rate above one", []string{"--drop-rate", "1.5"}, errors.ErrInvalidConfig},
		{"negative drop rate", []string{"--drop-rate=-0.1"}, errors.ErrInvalidConfig},
		{"inverted interval range", []string{"--min-interval", "20s", "--max-interval", "5s"}, errors.ErrInvalidInterval},
		{"zero duration", []string{"--duration", "0s"}, errors.ErrInvalidInterval},
		{"unknown transport", []string{"--transport", "carrier-pigeon"}, errors.ErrInvalidConfig},
		{"empty db path", []string{"--db-path", " "}, errors.ErrInvalidConfig},
		{"zero threshold", []string{"--z-threshold", "0"}, errors.ErrInvalidConfig},
		{"no devices", []string{"--devices", "0"}, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(tt.args)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
