// Package config loads client settings from an optional YAML file, a .env
// file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/priceguess/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Transport kinds.
const (
	TransportWebsocket = "websocket"
	TransportNATS      = "nats"
)

// Prefs backends.
const (
	PrefsMemory   = "memory"
	PrefsFile     = "file"
	PrefsPostgres = "postgres"
)

type Config struct {
	Server struct {
		APIURL string `yaml:"api_url"`
		WSURL  string `yaml:"ws_url"`
	} `yaml:"server"`

	Transport struct {
		Kind          string `yaml:"kind"`
		NATSURL       string `yaml:"nats_url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"transport"`

	Session struct {
		PendingTimeout    time.Duration `yaml:"pending_timeout"`
		CountdownInterval time.Duration `yaml:"countdown_interval"`
		MaxReconnects     int           `yaml:"max_reconnects"`
		ReconnectWait     time.Duration `yaml:"reconnect_wait"`
		ChatPerSecond     float64       `yaml:"chat_per_second"`
		ChatBurst         int           `yaml:"chat_burst"`
	} `yaml:"session"`

	Voice struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"voice"`

	Prefs struct {
		Backend  string          `yaml:"backend"`
		Path     string          `yaml:"path"`
		Profile  string          `yaml:"profile"`
		Database dbconfig.Config `yaml:"database"`
	} `yaml:"prefs"`

	Inspect struct {
		Enabled        bool     `yaml:"enabled"`
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"inspect"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

// Default returns the built-in settings.
func Default() *Config {
	c := &Config{}
	c.Server.APIURL = "http://localhost:8080"
	c.Server.WSURL = "ws://localhost:8080/ws"
	c.Transport.Kind = TransportWebsocket
	c.Transport.NATSURL = "nats://localhost:4222"
	c.Transport.SubjectPrefix = "priceguess"
	c.Session.PendingTimeout = 10 * time.Second
	c.Session.CountdownInterval = 100 * time.Millisecond
	c.Session.MaxReconnects = -1
	c.Session.ReconnectWait = 2 * time.Second
	c.Session.ChatPerSecond = 1
	c.Session.ChatBurst = 5
	c.Prefs.Backend = PrefsFile
	c.Prefs.Path = defaultPrefsPath()
	c.Prefs.Profile = "default"
	c.Prefs.Database = dbconfig.Default()
	c.Inspect.Addr = ":8090"
	c.Inspect.AllowedOrigins = []string{"*"}
	c.Log.Level = "info"
	c.Log.Pretty = true
	return c
}

// Load reads .env (if present), then the YAML file named by path or
// PRICEGUESS_CONFIG (if any), then environment overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	c := Default()
	if path == "" {
		path = os.Getenv("PRICEGUESS_CONFIG")
	}
	if path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.APIURL = getEnv("PRICEGUESS_API_URL", c.Server.APIURL)
	c.Server.WSURL = getEnv("PRICEGUESS_WS_URL", c.Server.WSURL)

	c.Transport.Kind = getEnv("PRICEGUESS_TRANSPORT", c.Transport.Kind)
	c.Transport.NATSURL = getEnv("NATS_URL", c.Transport.NATSURL)
	c.Transport.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", c.Transport.SubjectPrefix)

	c.Session.PendingTimeout = getEnvAsDuration("PRICEGUESS_PENDING_TIMEOUT", c.Session.PendingTimeout)
	c.Session.MaxReconnects = getEnvAsInt("PRICEGUESS_MAX_RECONNECTS", c.Session.MaxReconnects)
	c.Session.ReconnectWait = getEnvAsDuration("PRICEGUESS_RECONNECT_WAIT", c.Session.ReconnectWait)

	c.Voice.Enabled = getEnvAsBool("PRICEGUESS_VOICE", c.Voice.Enabled)

	c.Prefs.Backend = getEnv("PRICEGUESS_PREFS_BACKEND", c.Prefs.Backend)
	c.Prefs.Path = getEnv("PRICEGUESS_PREFS_PATH", c.Prefs.Path)
	c.Prefs.Profile = getEnv("PRICEGUESS_PREFS_PROFILE", c.Prefs.Profile)
	c.Prefs.Database = c.Prefs.Database.WithEnv()

	if addr := os.Getenv("INSPECT_ADDR"); addr != "" {
		c.Inspect.Enabled = true
		c.Inspect.Addr = addr
	}

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = getEnvAsBool("LOG_PRETTY", c.Log.Pretty)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport.Kind {
	case TransportWebsocket:
		if c.Server.WSURL == "" {
			errs = append(errs, errors.New("server.ws_url is required for the websocket transport"))
		}
	case TransportNATS:
		if c.Transport.NATSURL == "" {
			errs = append(errs, errors.New("transport.nats_url is required for the nats transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Transport.Kind))
	}

	switch c.Prefs.Backend {
	case PrefsMemory, PrefsPostgres:
	case PrefsFile:
		if c.Prefs.Path == "" {
			errs = append(errs, errors.New("prefs.path is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown prefs backend %q", c.Prefs.Backend))
	}

	if c.Session.PendingTimeout <= 0 {
		errs = append(errs, errors.New("session.pending_timeout must be positive"))
	}
	if c.Session.CountdownInterval <= 0 {
		errs = append(errs, errors.New("session.countdown_interval must be positive"))
	}
	if c.Session.ChatPerSecond <= 0 || c.Session.ChatBurst < 1 {
		errs = append(errs, errors.New("session chat rate and burst must be positive"))
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SetupLogging configures the global zerolog logger.
func (c *Config) SetupLogging() {
	if c.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func defaultPrefsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "priceguess-prefs.yaml"
	}
	return dir + string(os.PathSeparator) + "priceguess" + string(os.PathSeparator) + "prefs.yaml"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid integer")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid duration")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Str("value", value).Msg("ignoring invalid boolean")
	}
	return defaultValue
}
