// Package config loads log4mongo settings from a file and LOG4MONGO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/log4mongo/log4mongo-go/appender"
	"github.com/log4mongo/log4mongo-go/internal/registry"
	"github.com/log4mongo/log4mongo-go/layout"
)

// EnvPrefix prefixes environment overrides, e.g. LOG4MONGO_APPENDER_CONNECTION_STRING.
const EnvPrefix = "LOG4MONGO"

// Config is the complete configuration.
type Config struct {
	Appender          AppenderConfig   `mapstructure:"appender"`
	ConnectionStrings []registry.Entry `mapstructure:"connection_strings"`
	Buffer            BufferConfig     `mapstructure:"buffer"`
	Server            ServerConfig     `mapstructure:"server"`
	Log               LogConfig        `mapstructure:"log"`
}

// AppenderConfig mirrors appender.Options.
type AppenderConfig struct {
	ConnectionString     string         `mapstructure:"connection_string"`
	ConnectionStringName string         `mapstructure:"connection_string_name"`
	CollectionName       string         `mapstructure:"collection_name"`
	NewCollectionMaxSize string         `mapstructure:"new_collection_max_size"`
	NewCollectionMaxDocs string         `mapstructure:"new_collection_max_docs"`
	ExpireAfterSeconds   int            `mapstructure:"expire_after_seconds"`
	FieldBehavior        string         `mapstructure:"field_behavior"`
	Fields               []FieldConfig  `mapstructure:"fields"`
	MachineName          string         `mapstructure:"machine_name"`
	GlobalProperties     map[string]any `mapstructure:"global_properties"`

	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	DatabaseName string `mapstructure:"database_name"`
	UserName     string `mapstructure:"user_name"`
	Password     string `mapstructure:"password"`
}

// FieldConfig is one configured document field.
type FieldConfig struct {
	Name        string `mapstructure:"name"`
	layout.Spec `mapstructure:",squash"`
}

// BufferConfig configures event buffering in front of the appender. A zero
// size disables buffering.
type BufferConfig struct {
	Size          int           `mapstructure:"size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// ServerConfig configures the ingest server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// APIKeys are bcrypt hashes of accepted bearer tokens. Empty disables
	// authentication.
	APIKeys      []string `mapstructure:"api_keys"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("appender.connection_string", "")
	v.SetDefault("appender.connection_string_name", "")
	v.SetDefault("appender.collection_name", appender.DefaultCollectionName)
	v.SetDefault("appender.new_collection_max_size", "")
	v.SetDefault("appender.new_collection_max_docs", "")
	v.SetDefault("appender.expire_after_seconds", 0)
	v.SetDefault("appender.field_behavior", "explicit")
	v.SetDefault("appender.machine_name", "")
	v.SetDefault("appender.host", "")
	v.SetDefault("appender.port", 0)
	v.SetDefault("appender.database_name", "")
	v.SetDefault("appender.user_name", "")
	v.SetDefault("appender.password", "")

	v.SetDefault("buffer.size", 0)
	v.SetDefault("buffer.flush_interval", 3*time.Second)

	v.SetDefault("server.addr", ":8088")
	v.SetDefault("server.api_keys", []string{})
	v.SetDefault("server.max_body_bytes", 4<<20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads path, or log4mongo.{yaml,toml,json} from the working directory
// when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("log4mongo")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail later at activation.
func (c *Config) Validate() error {
	if _, err := appender.ParseFieldBehavior(c.Appender.FieldBehavior); err != nil {
		return fmt.Errorf("appender.field_behavior: %w", err)
	}
	for i, f := range c.Appender.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("appender.fields[%d]: name is required", i)
		}
	}
	for i, e := range c.ConnectionStrings {
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("connection_strings[%d]: name is required", i)
		}
	}
	if c.Buffer.Size < 0 {
		return fmt.Errorf("buffer.size: must not be negative")
	}
	return nil
}

// Registry returns the named connection strings.
func (c *Config) Registry() *registry.Store {
	entries := make(map[string]string, len(c.ConnectionStrings))
	for _, e := range c.ConnectionStrings {
		entries[e.Name] = e.ConnectionString
	}
	return registry.NewStore(entries)
}

// AppenderOptions compiles the appender section, including each field's
// layout.
func (c *Config) AppenderOptions() (appender.Options, error) {
	a := c.Appender

	behavior, err := appender.ParseFieldBehavior(a.FieldBehavior)
	if err != nil {
		return appender.Options{}, fmt.Errorf("appender.field_behavior: %w", err)
	}

	fields := make([]appender.Field, 0, len(a.Fields))
	for _, f := range a.Fields {
		field, err := appender.NewField(f.Name, f.Spec)
		if err != nil {
			return appender.Options{}, fmt.Errorf("appender field %q: %w", f.Name, err)
		}
		fields = append(fields, field)
	}

	return appender.Options{
		ConnectionString:     a.ConnectionString,
		ConnectionStringName: a.ConnectionStringName,
		ConnectionStrings:    c.Registry(),
		CollectionName:       a.CollectionName,
		NewCollectionMaxSize: a.NewCollectionMaxSize,
		NewCollectionMaxDocs: a.NewCollectionMaxDocs,
		ExpireAfterSeconds:   a.ExpireAfterSeconds,
		Fields:               fields,
		FieldBehavior:        behavior,
		MachineName:          a.MachineName,
		Host:                 a.Host,
		Port:                 a.Port,
		DatabaseName:         a.DatabaseName,
		UserName:             a.UserName,
		Password:             a.Password,
	}, nil
}

// BufferOptions returns the buffer settings.
func (c *Config) BufferOptions() appender.BufferOptions {
	return appender.BufferOptions{Size: c.Buffer.Size, FlushInterval: c.Buffer.FlushInterval}
}
