// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and
// an optional JSON file.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address"`

	// DatabaseDSN holds the database connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string `json:"database_dsn"`

	// Config is the path to the Config file.
	Config string `json:"-"`

	// JWTSecret signs session tokens.
	JWTSecret string `json:"jwt_secret"`

	// TokenTTL is the lifetime of a session token.
	TokenTTL time.Duration `json:"-"`

	// Production enables Secure/SameSite=None cookies.
	Production bool `json:"production"`

	// ClientOrigin is the browser client origin allowed by CORS.
	ClientOrigin string `json:"client_origin"`

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string `json:"tls_cert_file"`
	TLSKeyFile  string `json:"tls_key_file"`

	// AuthRateLimit requests per AuthRateWindow are allowed per client on
	// the signup and login endpoints.
	AuthRateLimit  int           `json:"auth_rate_limit"`
	AuthRateWindow time.Duration `json:"-"`

	// LogLevel is the minimum zap level.
	LogLevel string `json:"log_level"`
}

// fileOptions mirrors the durations of Options as strings such as "1h".
type fileOptions struct {
	*Options
	TokenTTL       string `json:"token_ttl"`
	AuthRateWindow string `json:"auth_rate_window"`
}

// defaults returns the baseline configuration.
func defaults() *Options {
	return &Options{
		Port:           "localhost:8000",
		Config:         "config.json",
		TokenTTL:       time.Hour,
		ClientOrigin:   "http://localhost:3000",
		AuthRateLimit:  100,
		AuthRateWindow: 15 * time.Minute,
		LogLevel:       "info",
	}
}

// Parse parses the command-line flags and environment variables to set
// configuration values. It returns a pointer to the Options struct containing
// the parsed configuration values.
func Parse() (*Options, error) {
	return parse(os.Args[1:], os.LookupEnv)
}

// parse applies, in increasing precedence: defaults, the JSON file, flags
// and environment variables.
func parse(args []string, lookup func(string) (string, bool)) (*Options, error) {
	options := defaults()

	// the config path has to be known before the file can sit under the flags
	configPath := options.Config
	if v, ok := lookup("CONFIG"); ok && v != "" {
		configPath = v
	}
	for i, a := range args {
		if (a == "-c" || a == "-config" || a == "--config") && i+1 < len(args) {
			configPath = args[i+1]
		}
	}
	if err := loadFile(configPath, options); err != nil {
		return nil, err
	}
	options.Config = configPath

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&options.Port, "a", options.Port, "run on ip:port server")
	fs.StringVar(&options.DatabaseDSN, "d", options.DatabaseDSN, "db address")
	fs.StringVar(&options.Config, "config", options.Config, "path to config file")
	fs.StringVar(&options.Config, "c", options.Config, "path to config file (shorthand)")
	fs.StringVar(&options.JWTSecret, "s", options.JWTSecret, "session token signing secret")
	fs.DurationVar(&options.TokenTTL, "t", options.TokenTTL, "session token lifetime")
	fs.BoolVar(&options.Production, "prod", options.Production, "production mode (secure cookies)")
	fs.StringVar(&options.ClientOrigin, "o", options.ClientOrigin, "allowed browser client origin")
	fs.StringVar(&options.TLSCertFile, "tls-cert", options.TLSCertFile, "TLS certificate file")
	fs.StringVar(&options.TLSKeyFile, "tls-key", options.TLSKeyFile, "TLS key file")
	fs.IntVar(&options.AuthRateLimit, "rl", options.AuthRateLimit, "auth requests allowed per window")
	fs.DurationVar(&options.AuthRateWindow, "rw", options.AuthRateWindow, "auth rate limit window")
	fs.StringVar(&options.LogLevel, "l", options.LogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := applyEnv(options, lookup); err != nil {
		return nil, err
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}
	return options, nil
}

func loadFile(path string, options *Options) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error while reading config file: %w", err)
	}

	fo := fileOptions{Options: options}
	if err := json.Unmarshal(data, &fo); err != nil {
		return fmt.Errorf("error while parsing config file: %w", err)
	}
	if fo.TokenTTL != "" {
		if options.TokenTTL, err = time.ParseDuration(fo.TokenTTL); err != nil {
			return fmt.Errorf("config file token_ttl: %w", err)
		}
	}
	if fo.AuthRateWindow != "" {
		if options.AuthRateWindow, err = time.ParseDuration(fo.AuthRateWindow); err != nil {
			return fmt.Errorf("config file auth_rate_window: %w", err)
		}
	}
	return nil
}

func applyEnv(options *Options, lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	str(&options.Port, "SERVER_ADDRESS")
	str(&options.DatabaseDSN, "DATABASE_DSN", "DATABASE_URL")
	str(&options.JWTSecret, "JWT_SECRET")
	str(&options.ClientOrigin, "CLIENT_ORIGIN")
	str(&options.TLSCertFile, "TLS_CERT_FILE")
	str(&options.TLSKeyFile, "TLS_KEY_FILE")
	str(&options.LogLevel, "LOG_LEVEL")

	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOKEN_TTL: %w", err)
		}
		options.TokenTTL = d
	}
	if v, ok := lookup("AUTH_RATE_WINDOW"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("AUTH_RATE_WINDOW: %w", err)
		}
		options.AuthRateWindow = d
	}
	if v, ok := lookup("AUTH_RATE_LIMIT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("AUTH_RATE_LIMIT: %w", err)
		}
		options.AuthRateLimit = n
	}
	if v, ok := lookup("PRODUCTION"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PRODUCTION: %w", err)
		}
		options.Production = b
	}
	return nil
}

// Validate reports configuration the server cannot start with.
func (o *Options) Validate() error {
	if o.JWTSecret == "" {
		return errors.New("jwt secret is required (-s or JWT_SECRET)")
	}
	if o.TokenTTL <= 0 {
		return errors.New("token ttl must be positive")
	}
	if o.AuthRateLimit <= 0 || o.AuthRateWindow <= 0 {
		return errors.New("auth rate limit and window must be positive")
	}
	if (o.TLSCertFile == "") != (o.TLSKeyFile == "") {
		return errors.New("tls cert and key must be set together")
	}
	return nil
}
