// Package config loads the configuration of the example programs.
package config

import (
	"encoding/binary"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	socket "github.com/Zereker/socket/v2"
)

// EnvPrefix is the prefix of environment variables overriding file settings,
// e.g. SOCKET_LISTEN or SOCKET_LOG_LEVEL.
const EnvPrefix = "SOCKET"

// Config is the configuration of the echo server and client.
type Config struct {
	// Listen is the TCP address the server accepts on, or the client dials.
	Listen string `mapstructure:"listen" toml:"listen"`
	// WebSocketListen serves the same framing over websocket when set.
	WebSocketListen string `mapstructure:"websocket_listen" toml:"websocket_listen"`
	// MetricsListen exposes /metrics when set.
	MetricsListen string `mapstructure:"metrics_listen" toml:"metrics_listen"`

	Framing  FramingConfig `mapstructure:"framing" toml:"framing"`
	Shutdown time.Duration `mapstructure:"shutdown_timeout" toml:"shutdown_timeout"`
	Log      LogConfig     `mapstructure:"log" toml:"log"`
}

// FramingConfig controls the session framing. Both ends must agree on it.
type FramingConfig struct {
	MaxBodySize    int           `mapstructure:"max_body_size" toml:"max_body_size"`
	ByteOrder      ByteOrder     `mapstructure:"byte_order" toml:"byte_order"`
	ReadBufferSize int           `mapstructure:"read_buffer_size" toml:"read_buffer_size"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" toml:"idle_timeout"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" toml:"level"`
	// Format: console or json
	Format string `mapstructure:"format" toml:"format"`
	// Outputs: stdout, stderr, or file paths
	Outputs     []string       `mapstructure:"outputs" toml:"outputs"`
	Rotation    RotationConfig `mapstructure:"rotation" toml:"rotation"`
	Development bool           `mapstructure:"development" toml:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool `mapstructure:"enable" toml:"enable"`
	MaxSizeMB  int  `mapstructure:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" toml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" toml:"max_age_days"`
	Compress   bool `mapstructure:"compress" toml:"compress"`
}

// ByteOrder names the byte order of the length prefix: "little" or "big".
type ByteOrder string

const (
	LittleEndian ByteOrder = "little"
	BigEndian    ByteOrder = "big"
)

// Order returns the binary.ByteOrder for b.
func (b ByteOrder) Order() (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, errors.Errorf("unknown byte order %q", string(b))
	}
}

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Listen: "127.0.0.1:10086",
		Framing: FramingConfig{
			MaxBodySize:    socket.DefaultMaxBodySize,
			ByteOrder:      LittleEndian,
			ReadBufferSize: 2048,
		},
		Shutdown: 5 * time.Second,
		Log: LogConfig{
			Level:   "info",
			Format:  "console",
			Outputs: []string{"stdout"},
			Rotation: RotationConfig{
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 7,
			},
		},
	}
}

// Load reads the config at path over the defaults and applies SOCKET_* environment
// overrides. An empty path loads defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "config load failed (%s)", path)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		byteOrderHook,
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, errors.Wrap(err, "config decode failed")
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so that environment overrides are seen by Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("listen", cfg.Listen)
	v.SetDefault("websocket_listen", cfg.WebSocketListen)
	v.SetDefault("metrics_listen", cfg.MetricsListen)
	v.SetDefault("shutdown_timeout", cfg.Shutdown)
	v.SetDefault("framing.max_body_size", cfg.Framing.MaxBodySize)
	v.SetDefault("framing.byte_order", string(cfg.Framing.ByteOrder))
	v.SetDefault("framing.read_buffer_size", cfg.Framing.ReadBufferSize)
	v.SetDefault("framing.idle_timeout", cfg.Framing.IdleTimeout)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
}

func byteOrderHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(ByteOrder("")) || from.Kind() != reflect.String {
		return data, nil
	}
	b := ByteOrder(strings.ToLower(strings.TrimSpace(data.(string))))
	if _, err := b.Order(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks cfg for values the programs cannot run with.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return errors.New("config missing listen")
	}
	if cfg.Framing.MaxBodySize <= 0 || cfg.Framing.MaxBodySize > socket.MaxBodySizeLimit {
		return errors.Errorf("framing.max_body_size %d out of range [1, %d]", cfg.Framing.MaxBodySize, socket.MaxBodySizeLimit)
	}
	if _, err := cfg.Framing.ByteOrder.Order(); err != nil {
		return errors.Wrap(err, "framing.byte_order")
	}
	if cfg.Framing.IdleTimeout < 0 {
		return errors.New("framing.idle_timeout must not be negative")
	}
	return nil
}

// SessionOptions converts the framing settings to session options.
func (c Config) SessionOptions() ([]socket.Option, error) {
	order, err := c.Framing.ByteOrder.Order()
	if err != nil {
		return nil, err
	}
	return []socket.Option{
		socket.MessageMaxSize(c.Framing.MaxBodySize),
		socket.ByteOrderOption(order),
		socket.ReadBufferSizeOption(c.Framing.ReadBufferSize),
		socket.IdleTimeoutOption(c.Framing.IdleTimeout),
	}, nil
}

// WriteTemplate writes the default configuration as TOML to path.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.Errorf("config already exists: %s", path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	return nil
}
