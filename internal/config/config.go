// Package config loads the relay's JSON configuration file.
//
// The file is read with viper; an optional .env file is loaded first and any
// RELAY_* environment variable overrides the matching key (nested keys use
// underscores, e.g. RELAY_TAP_DRIVER).
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPath           = "config.json"
	DefaultWSPath         = "/ws"
	DefaultWriteTimeout   = 5 * time.Second
	DefaultQueueWarnDepth = 10000
	DefaultTapBuffer      = 1024
	DefaultRedisStream    = "relay:messages"
	DefaultKafkaTopic     = "relay.messages"
)

var (
	ErrEmptyPort   = errors.New("port cannot be empty")
	ErrInvalidPort = errors.New("port must be an unsigned 16-bit integer")
	ErrInvalidTap  = errors.New("invalid tap configuration")
)

type TapConfig struct {
	Driver       string   `mapstructure:"driver"`
	RedisAddr    string   `mapstructure:"redis_addr"`
	RedisStream  string   `mapstructure:"redis_stream"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	Buffer       int      `mapstructure:"buffer"`
}

type Config struct {
	Port           string        `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	HTTPAddr       string        `mapstructure:"http_addr"`
	WSPath         string        `mapstructure:"ws_path"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	QueueWarnDepth int           `mapstructure:"queue_warn_depth"`
	LogLevel       string        `mapstructure:"log_level"`
	Tap            TapConfig     `mapstructure:"tap"`

	// ListenPort is Port after validation.
	ListenPort uint16 `mapstructure:"-"`
}

// TCPAddr is the address the acceptor binds.
func (c *Config) TCPAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.ListenPort)))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "")
	v.SetDefault("host", "")
	v.SetDefault("http_addr", "")
	v.SetDefault("ws_path", DefaultWSPath)
	v.SetDefault("write_timeout", DefaultWriteTimeout)
	v.SetDefault("read_timeout", time.Duration(0))
	v.SetDefault("queue_warn_depth", DefaultQueueWarnDepth)
	v.SetDefault("log_level", "")
	v.SetDefault("tap.driver", "")
	v.SetDefault("tap.redis_addr", "")
	v.SetDefault("tap.redis_stream", DefaultRedisStream)
	v.SetDefault("tap.kafka_brokers", []string{})
	v.SetDefault("tap.kafka_topic", DefaultKafkaTopic)
	v.SetDefault("tap.buffer", DefaultTapBuffer)
}

// Load reads the JSON document at path. Every error it returns is fatal for
// startup: nothing has been bound yet when it fails.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// the port must be a JSON string, not a number
	if _, ok := v.Get("port").(string); !ok {
		return nil, fmt.Errorf("%w: port must be a string, got %v", ErrInvalidPort, v.Get("port"))
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParsePort validates a string port the way the config file requires.
func ParsePort(s string) (uint16, error) {
	if s == "" {
		return 0, ErrEmptyPort
	}
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, s)
	}
	return uint16(p), nil
}

func validate(cfg *Config) error {
	port, err := ParsePort(cfg.Port)
	if err != nil {
		return err
	}
	cfg.ListenPort = port

	if cfg.WriteTimeout < 0 {
		return fmt.Errorf("write_timeout must not be negative, got %s", cfg.WriteTimeout)
	}
	if cfg.ReadTimeout < 0 {
		return fmt.Errorf("read_timeout must not be negative, got %s", cfg.ReadTimeout)
	}
	if cfg.QueueWarnDepth <= 0 {
		cfg.QueueWarnDepth = DefaultQueueWarnDepth
	}
	if cfg.WSPath == "" {
		cfg.WSPath = DefaultWSPath
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		cfg.WSPath = "/" + cfg.WSPath
	}
	return validateTap(&cfg.Tap)
}

func validateTap(t *TapConfig) error {
	t.Driver = strings.ToLower(strings.TrimSpace(t.Driver))
	if t.Buffer <= 0 {
		t.Buffer = DefaultTapBuffer
	}
	switch t.Driver {
	case "":
		return nil
	case "redis":
		if t.RedisAddr == "" {
			return fmt.Errorf("%w: tap.redis_addr is required for the redis driver", ErrInvalidTap)
		}
		if t.RedisStream == "" {
			t.RedisStream = DefaultRedisStream
		}
	case "kafka":
		if len(t.KafkaBrokers) == 0 {
			return fmt.Errorf("%w: tap.kafka_brokers is required for the kafka driver", ErrInvalidTap)
		}
		if t.KafkaTopic == "" {
			t.KafkaTopic = DefaultKafkaTopic
		}
	default:
		return fmt.Errorf("%w: unknown driver %q", ErrInvalidTap, t.Driver)
	}
	return nil
}
