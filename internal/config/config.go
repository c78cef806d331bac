package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	applog "gastos/internal/log"
)

// EnvPrefix is prepended to every environment variable, e.g. GASTOS_CSV_PATH.
const EnvPrefix = "GASTOS"

// Configuration keys, shared by env vars, config files and flags.
const (
	KeyDataBackend  = "data_backend"
	KeyCSVPath      = "csv_path"
	KeySQLiteDBPath = "sqlite_db_path"
	KeyAMQPURL      = "amqp_url"
	KeyAMQPExchange = "amqp_exchange"
	KeyAMQPQueue    = "amqp_queue"
	KeyLogLevel     = "log_level"
	KeyLogFormat    = "log_format"
	KeyRecentCount  = "recent_count"
)

var validBackends = []string{"csv", "sqlite", "memory"}

type Config struct {
	// Storage
	DataBackend  string
	CSVPath      string
	SQLiteDBPath string

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel  string
	LogFormat string

	// Menu
	RecentCount int
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDataBackend, "csv")
	v.SetDefault(KeyCSVPath, "gastos.csv")
	v.SetDefault(KeySQLiteDBPath, "./data/gastos.db")
	v.SetDefault(KeyAMQPURL, "")
	v.SetDefault(KeyAMQPExchange, "gastos")
	v.SetDefault(KeyAMQPQueue, "expense_events")
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyRecentCount, 5)
}

// Build reads configuration from, in increasing priority: defaults, the
// optional config file, GASTOS_* environment variables and flags.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", cfgFile, err)
		}
	} else {
		v.SetConfigName("gastos")
		v.AddConfigPath(".")
		if home, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, "gastos"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	return FromViper(v), nil
}

// bindFlags binds flags whose name matches a key with '-' for '_'.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		key := strings.ReplaceAll(f.Name, "-", "_")
		if !isKey(key) {
			return
		}
		if err := v.BindPFlag(key, f); err != nil && bindErr == nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

func isKey(k string) bool {
	switch k {
	case KeyDataBackend, KeyCSVPath, KeySQLiteDBPath, KeyAMQPURL, KeyAMQPExchange,
		KeyAMQPQueue, KeyLogLevel, KeyLogFormat, KeyRecentCount:
		return true
	}
	return false
}

func FromViper(v *viper.Viper) *Config {
	return &Config{
		DataBackend:  strings.ToLower(strings.TrimSpace(v.GetString(KeyDataBackend))),
		CSVPath:      v.GetString(KeyCSVPath),
		SQLiteDBPath: v.GetString(KeySQLiteDBPath),
		AMQPURL:      v.GetString(KeyAMQPURL),
		AMQPExchange: v.GetString(KeyAMQPExchange),
		AMQPQueue:    v.GetString(KeyAMQPQueue),
		LogLevel:     v.GetString(KeyLogLevel),
		LogFormat:    v.GetString(KeyLogFormat),
		RecentCount:  v.GetInt(KeyRecentCount),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "csv" && strings.TrimSpace(c.CSVPath) == "" {
		errors = append(errors, "CSV path cannot be empty when using csv backend")
	}

	if c.DataBackend == "sqlite" && strings.TrimSpace(c.SQLiteDBPath) == "" {
		errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "logfmt", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of [text logfmt json]", c.LogFormat))
	}

	if c.RecentCount < 1 {
		errors = append(errors, fmt.Sprintf("invalid recent count %d: must be at least 1", c.RecentCount))
	} else if c.RecentCount > 100 {
		errors = append(errors, fmt.Sprintf("invalid recent count %d: must be at most 100", c.RecentCount))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}
