package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/rpattn/spstaglib/internal/db"
)

// EnvPrefix namespaces environment overrides, e.g. SPSTAG_DATABASE_HOST.
const EnvPrefix = "SPSTAG"

// Config is the full service configuration.
type Config struct {
	Database db.Config
	HTTP     HTTPConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
}

type LogConfig struct {
	JSON  bool
	Debug bool
}

// Default returns the configuration used when neither file nor env set a key.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
}

// Load reads config.yaml from configPath when present and applies SPSTAG_*
// environment overrides. A missing file is not an error.
func Load(configPath string) (Config, bool, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range []string{
		"database.driver",
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.path",
		"http.addr",
		"http.allowed_origins",
		"log.json",
		"log.debug",
	} {
		if err := v.BindEnv(key); err != nil {
			return cfg, false, errors.Wrapf(err, "failed to bind %s", key)
		}
	}

	loaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, false, errors.Wrap(err, "failed to read config file")
		}
		loaded = false
	}

	if v.IsSet("database.driver") {
		cfg.Database.Driver = v.GetString("database.driver")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("database.path") {
		cfg.Database.Path = v.GetString("database.path")
	}
	if v.IsSet("http.addr") {
		cfg.HTTP.Addr = v.GetString("http.addr")
	}
	if v.IsSet("http.allowed_origins") {
		cfg.HTTP.AllowedOrigins = v.GetStringSlice("http.allowed_origins")
	}
	if v.IsSet("log.json") {
		cfg.Log.JSON = v.GetBool("log.json")
	}
	if v.IsSet("log.debug") {
		cfg.Log.Debug = v.GetBool("log.debug")
	}

	switch cfg.Database.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return cfg, loaded, errors.Newf("unsupported database driver %q", cfg.Database.Driver)
	}
	return cfg, loaded, nil
}
