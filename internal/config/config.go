package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the service configuration
type Config struct {
	Listen         string        `mapstructure:"listen"`
	LogLevel       string        `mapstructure:"log_level"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	IPWhitelist    []string      `mapstructure:"ip_whitelist"`
	WorkspaceTTL   time.Duration `mapstructure:"workspace_ttl"`

	Auth    AuthConfig    `mapstructure:"auth"`
	Storage StorageConfig `mapstructure:"storage"`
}

type AuthConfig struct {
	Secret      string        `mapstructure:"secret"`
	SecretFile  string        `mapstructure:"secret_file"`
	TokenExpiry time.Duration `mapstructure:"token_expiry"`
	// BootstrapKey guards POST /auth/token
	BootstrapKey string `mapstructure:"bootstrap_key"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"` // memory or mongo
	MongoURI   string `mapstructure:"mongo_uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "localhost:8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("workspace_ttl", 30*time.Minute)
	v.SetDefault("allowed_origins", []string{})
	v.SetDefault("ip_whitelist", []string{})
	// every key needs a default for AutomaticEnv to reach Unmarshal
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.secret_file", "")
	v.SetDefault("auth.bootstrap_key", "")
	v.SetDefault("auth.token_expiry", 24*time.Hour)
	v.SetDefault("storage.mongo_uri", "")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.database", "scopeboard")
	v.SetDefault("storage.collection", "dashboards")
}

// Load reads the optional config file and SCOPEBOARD_* environment
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("scopeboard")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", file)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "mongo":
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongo_uri is required for the mongo driver")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// NewLogger builds the production zap logger at the configured level
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
