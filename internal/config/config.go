// Package config loads server configuration from a JSON file via viper and
// exposes thin typed accessors. Every key has a default so the server runs
// with no config file at all.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ConfigName is the config file viper looks for, without extension.
const ConfigName = "labserver.cfg"

// Load reads configuration from the JSON config file in configDir and sets
// default values. A missing config file is not an error; defaults apply.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "3000")
	viper.SetDefault("server.assetsDir", "./models")
	viper.SetDefault("server.maxUploadMB", 100)

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.path", "./anatomy_lab.db")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "anatomylab")

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.users", map[string]string{})

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "anatomy-lab")
	viper.SetDefault("influx.bucket", "lab_events")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(ConfigName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); notFound {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetStringMapString returns a map config value.
func GetStringMapString(key string) map[string]string {
	return viper.GetStringMapString(key)
}
