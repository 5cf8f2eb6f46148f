// Package config merges defaults, an optional TOML file, SENSORSIM_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"codeberg.org/mutker/sensorsim/internal/aggregate"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/ingest"
	"codeberg.org/mutker/sensorsim/internal/metrics"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "SENSORSIM"
	configName = "sensorsim"
	configType = "toml"
)

const (
	TransportDirect = "direct"
	TransportMQTT   = "mqtt"
)

type Config struct {
	DBPath string `mapstructure:"db_path"`

	Devices     int           `mapstructure:"devices"`
	Duration    time.Duration `mapstructure:"duration"`
	Interval    time.Duration `mapstructure:"interval"`
	MinInterval time.Duration `mapstructure:"min_interval"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	DropRate    float64       `mapstructure:"drop_rate"`
	Seed        int64         `mapstructure:"seed"`

	Transport   string   `mapstructure:"transport"`
	DeviceID    string   `mapstructure:"device_id"`
	Sensors     []string `mapstructure:"sensors"`
	MQTTAddress string   `mapstructure:"mqtt_address"`
	TopicPrefix string   `mapstructure:"mqtt_topic_prefix"`

	Hours       int     `mapstructure:"hours"`
	Granularity string  `mapstructure:"granularity"`
	SensorType  string  `mapstructure:"sensor_type"`
	ZThreshold  float64 `mapstructure:"z_threshold"`

	Metrics bool `mapstructure:"metrics"`
	Debug   bool `mapstructure:"debug"`
	Verbose bool `mapstructure:"verbose"`

	// Args holds the positional arguments left after flag parsing.
	Args []string `mapstructure:"-"`
	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

var defaults = map[string]any{
	"db_path":           "iot_data.db",
	"devices":           3,
	"duration":          60 * time.Second,
	"interval":          5 * time.Second,
	"min_interval":      2 * time.Second,
	"max_interval":      10 * time.Second,
	"drop_rate":         0.05,
	"seed":              int64(0),
	"transport":         TransportDirect,
	"device_id":         "kitchen-sensor-01",
	"sensors":           []string{"temperature", "humidity", "light"},
	"mqtt_address":      ingest.DefaultAddress,
	"mqtt_topic_prefix": ingest.DefaultTopicPrefix,
	"hours":             1,
	"granularity":       "raw",
	"sensor_type":       "",
	"z_threshold":       3.0,
	"metrics":           true,
	"debug":             false,
	"verbose":           false,
}

// NewFlagSet declares every configuration key as a flag.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.String("db-path", "iot_data.db", "SQLite database file")
	fs.Int("devices", 3, "Number of simulated devices")
	fs.Duration("duration", 60*time.Second, "Simulation run length")
	fs.Duration("interval", 5*time.Second, "Tick interval in single device mode")
	fs.Duration("min-interval", 2*time.Second, "Lower bound of a fleet device's interval")
	fs.Duration("max-interval", 10*time.Second, "Upper bound of a fleet device's interval")
	fs.Float64("drop-rate", 0.05, "Probability that a tick is lost")
	fs.Int64("seed", 0, "Random seed, 0 for time based")
	fs.String("transport", TransportDirect, "How devices deliver readings: direct or mqtt")
	fs.String("device-id", "kitchen-sensor-01", "Device id in single device mode")
	fs.StringSlice("sensors", []string{"temperature", "humidity", "light"}, "Sensors in single device mode")
	fs.String("mqtt-address", ingest.DefaultAddress, "MQTT broker address")
	fs.String("mqtt-topic-prefix", ingest.DefaultTopicPrefix, "MQTT topic prefix")
	fs.Int("hours", 1, "Query window in hours")
	fs.String("granularity", "raw", "Aggregation granularity: "+strings.Join(aggregate.Granularities(), ", "))
	fs.String("sensor-type", "", "Restrict queries to one sensor type")
	fs.Float64("z-threshold", 3.0, "Anomaly z-score threshold")
	fs.Bool("metrics", true, "Collect tick counters")
	fs.Bool("debug", false, "Enable debug logging")
	fs.Bool("verbose", false, "Enable verbose logging")

	return fs
}

// Load parses args and resolves the configuration.
func Load(args []string) (*Config, error) {
	return LoadFlags(NewFlagSet(configName), args)
}

// LoadFlags is Load with a caller-provided flag set.
func LoadFlags(fs *pflag.FlagSet, args []string) (*Config, error) {
	errFactory := errors.New()

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := bindFlags(v, fs); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.Args = fs.Args()
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// bindFlags maps "db-path" style flags onto "db_path" keys.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

func readConfigFile(v *viper.Viper) error {
	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", configName))
		}
		v.AddConfigPath(filepath.Join("/etc", configName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.New().Wrap(errors.ErrReadConfig, err)
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch {
	case strings.TrimSpace(c.DBPath) == "":
		return errFactory.WithMessage(errors.ErrInvalidConfig, "db_path must not be empty")
	case c.Devices < 1:
		return errFactory.WithMessage(errors.ErrInvalidConfig, "devices must be at least 1")
	case c.Duration <= 0, c.Interval <= 0, c.MinInterval <= 0, c.MaxInterval <= 0:
		return errFactory.WithMessage(errors.ErrInvalidInterval, "durations must be positive")
	case c.MinInterval > c.MaxInterval:
		return errFactory.WithMessage(errors.ErrInvalidInterval, "min_interval exceeds max_interval")
	case c.DropRate < 0 || c.DropRate > 1:
		return errFactory.WithMessage(errors.ErrInvalidConfig, "drop_rate must be within [0, 1]")
	case c.Transport != TransportDirect && c.Transport != TransportMQTT:
		return errFactory.WithMessage(errors.ErrInvalidConfig, "unknown transport "+c.Transport)
	case c.Hours < 1:
		return errFactory.WithMessage(errors.ErrInvalidConfig, "hours must be at least 1")
	case c.ZThreshold <= 0:
		return errFactory.WithMessage(errors.ErrInvalidConfig, "z_threshold must be positive")
	}

	if err := c.Ingest().Validate(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Telemetry() telemetry.Config {
	cfg := telemetry.DefaultConfig()
	cfg.DBPath = c.DBPath
	return cfg
}

func (c *Config) Ingest() ingest.Config {
	return ingest.Config{
		Address:     c.MQTTAddress,
		TopicPrefix: c.TopicPrefix,
	}
}

func (c *Config) MetricsConfig() metrics.Config {
	return metrics.Config{Enabled: c.Metrics}
}

// Kinds parses the configured sensors, skipping blanks.
func (c *Config) Kinds() []sensor.Kind {
	return sensor.ParseKinds(c.Sensors)
}

// Since is the lower bound of the query window ending at now.
func (c *Config) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(c.Hours) * time.Hour)
}

// SensorKind returns the query kind filter, nil when unset.
func (c *Config) SensorKind() *sensor.Kind {
	if strings.TrimSpace(c.SensorType) == "" {
		return nil
	}
	k := sensor.ParseKind(c.SensorType)
	return &k
}
