package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "CALLMATCH"

type Admission struct {
	Backend   string        `mapstructure:"backend" validate:"oneof=memory redis none"`
	Limit     int           `mapstructure:"limit" validate:"gte=1"`
	Interval  time.Duration `mapstructure:"interval" validate:"gt=0"`
	RedisAddr string        `mapstructure:"redis_addr" validate:"required_if=Backend redis"`
}

type Profile struct {
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type Config struct {
	Mode       string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	LogLevel   string        `mapstructure:"log_level"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit" validate:"gte=512"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"gte=1"`
	Secret     string        `mapstructure:"secret"`

	RingTimeout time.Duration `mapstructure:"ring_timeout" validate:"gt=0"`
	ICEServers  []string      `mapstructure:"ice_servers"`

	Admission Admission `mapstructure:"admission"`
	Profile   Profile   `mapstructure:"profile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("secret", "")
	v.SetDefault("ring_timeout", "30s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("admission.backend", "memory")
	v.SetDefault("admission.limit", 10)
	v.SetDefault("admission.interval", "1m")
	v.SetDefault("admission.redis_addr", "localhost:6379")
	v.SetDefault("profile.dsn", "")
	v.SetDefault("profile.timeout", "500ms")
}

// Load reads, in increasing priority: defaults, the config file, .env and
// CALLMATCH_* environment variables, and flags that were set explicitly.
// An empty file selects config/config.<CONFIG_ENV>.yaml.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if file == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		file = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(file)
	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", file).Err(err).Msg("config file not loaded, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", file).Msg("config loaded")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for _, name := range []string{"port", "mode"} {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(name, f); err != nil {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
