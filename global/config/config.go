package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

type HTTPConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type ProviderConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	BaseURL    string `mapstructure:"base_url"`
}

type JWTConfig struct {
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// GatewayConfig points the synchronizer at the mark-read REST shim.
type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	MessageTTL time.Duration `mapstructure:"message_ttl"`
}

type AppConfig struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Provider ProviderConfig `mapstructure:"provider"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Cache    CacheConfig    `mapstructure:"cache"`
}

var Global = defaults()

func defaults() AppConfig {
	return AppConfig{
		HTTP:  HTTPConfig{Port: 8080},
		Redis: RedisConfig{Addr: "127.0.0.1:6379", PoolSize: 10},
		Provider: ProviderConfig{
			BaseURL: "https://api.twilio.com",
		},
		JWT:     JWTConfig{TokenTTL: 2 * time.Hour},
		Gateway: GatewayConfig{Timeout: 5 * time.Second},
		Cache:   CacheConfig{MessageTTL: 30 * time.Second},
	}
}

// Load reads the JSON config file into Global. A missing file keeps the
// defaults; env vars override secrets either way.
func Load(path string) error {
	Global = defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return errors.Wrapf(err, "read config %s", path)
			}
		} else {
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err != nil {
				return errors.Wrapf(err, "parse config %s", path)
			}
			dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
				WeaklyTypedInput: true,
				Result:           &Global,
			})
			if err != nil {
				return errors.Wrap(err, "build config decoder")
			}
			if err := dec.Decode(m); err != nil {
				return errors.Wrapf(err, "decode config %s", path)
			}
		}
	}

	overrideFromEnv()
	return nil
}

func overrideFromEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		Global.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		Global.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		Global.Redis.Password = v
	}
	if v := os.Getenv("PROVIDER_ACCOUNT_SID"); v != "" {
		Global.Provider.AccountSID = v
	}
	if v := os.Getenv("PROVIDER_AUTH_TOKEN"); v != "" {
		Global.Provider.AuthToken = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		Global.JWT.Secret = v
	}
	if v := os.Getenv("GATEWAY_BASE_URL"); v != "" {
		Global.Gateway.BaseURL = v
	}
}

func GetJwtSecret() []byte {
	return []byte(Global.JWT.Secret)
}
