package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config stores runtime settings sourced from environment variables and an
// optional YAML file.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	DB struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"db"`

	MQTT struct {
		Host      string `mapstructure:"host"`
		Port      int    `mapstructure:"port"`
		Username  string `mapstructure:"username"`
		Password  string `mapstructure:"password"`
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"mqtt"`

	URLs struct {
		Base string `mapstructure:"base"`
		Web  string `mapstructure:"web"`
	} `mapstructure:"urls"`

	// Upstream Yandex OAuth application used to authenticate the account.
	OAuth struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RedirectURI  string `mapstructure:"redirect_uri"`
	} `mapstructure:"oauth"`

	// Credentials the Yandex Smart Home skill presents to our token endpoint.
	Skill struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"skill"`

	Crypto struct {
		Key string `mapstructure:"key"`
	} `mapstructure:"crypto"`

	Station struct {
		RelayURL string        `mapstructure:"relay_url"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"station"`

	ADB struct {
		Bin                 string        `mapstructure:"bin"`
		Timeout             time.Duration `mapstructure:"timeout"`
		AutoconnectInterval time.Duration `mapstructure:"autoconnect_interval"`
	} `mapstructure:"adb"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

// Load reads configuration from env/file with working defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("db.path", "/data/y2m.db")

	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.namespace", "y2m")

	v.SetDefault("urls.base", "http://localhost:8080")
	v.SetDefault("urls.web", "http://localhost:5173")

	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.redirect_uri", "http://localhost:8080/api/auth/yandex/callback")

	v.SetDefault("skill.client_id", "")
	v.SetDefault("skill.client_secret", "")

	v.SetDefault("crypto.key", "")

	v.SetDefault("station.relay_url", "http://yapi:8001")
	v.SetDefault("station.timeout", 10*time.Second)

	v.SetDefault("adb.bin", "adb")
	v.SetDefault("adb.timeout", 20*time.Second)
	v.SetDefault("adb.autoconnect_interval", 60*time.Second)

	v.SetDefault("log.level", "info")

	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/y2m")
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("config read error: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(c *Config) error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return errors.New("server.addr must not be empty")
	}
	if strings.TrimSpace(c.DB.Path) == "" {
		return errors.New("db.path must not be empty")
	}
	if strings.TrimSpace(c.MQTT.Namespace) == "" {
		return errors.New("mqtt.namespace must not be empty")
	}
	if c.MQTT.Port <= 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port)
	}
	return nil
}
