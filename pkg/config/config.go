// Package config resolves runtime settings from an optional JSON config
// file and the environment. Environment variables (CUSTOMER_AUDIT_*) beat
// the file; command-line flags, handled in main, beat both.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "CUSTOMER_AUDIT"

// Config is the application configuration.
type Config struct {
	LogLevel  string `json:"log-level" mapstructure:"log-level"`
	LogFormat string `json:"log-format" mapstructure:"log-format"`
	DBURL     string `json:"db-url" mapstructure:"db-url"`
	DBSchema  string `json:"db-schema" mapstructure:"db-schema"`
	DBTag     string `json:"db-tag" mapstructure:"db-tag"`
	TopN      int    `json:"top-n" mapstructure:"top-n"`
}

var envFields = []string{
	"log-level",
	"log-format",
	"db-url",
	"db-schema",
	"db-tag",
	"top-n",
}

// Load reads configuration. An empty path means environment and defaults
// only; a named file that cannot be read is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("db-schema", "customer_retention")
	v.SetDefault("top-n", 10)

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, field := range envFields {
		if err := v.BindEnv(field); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", field, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}
	return &config, nil
}
