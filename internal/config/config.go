// Package config assembles the application configuration from defaults,
// an optional JSON config file, environment variables and command line flags.
// Later sources win: defaults < JSON file < environment < explicit flags.
package config

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	env "github.com/caarlos0/env/v6"
	validator "github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the application.
type Config struct {
	// ConfigFile is the path to an optional JSON configuration file.
	ConfigFile string `env:"CONFIG"`

	// RunAddr is the address and port the HTTP server listens on.
	RunAddr string `env:"SERVER_ADDRESS" validate:"hostname_port"`

	// ShortURLBase is the base address of the resulting shortened URLs.
	ShortURLBase string `env:"BASE_URL" validate:"url"`

	// LogLevel is the zap logging level.
	LogLevel string `env:"LOG_LEVEL" validate:"loglevel"`

	// DBFileName enables the JSON file storage backend when non-empty.
	DBFileName string `env:"FILE_STORAGE_PATH" validate:"filepath"`

	// DatabaseDSN enables the PostgreSQL storage backend when non-empty.
	DatabaseDSN string `env:"DATABASE_DSN"`

	// DBConnectionTimeout bounds storage connection attempts and pings.
	DBConnectionTimeout time.Duration `env:"DB_CONNECTION_TIMEOUT"`

	// MigrationsDir is the directory with the goose SQL migrations.
	MigrationsDir string `env:"MIGRATIONS_DIR" validate:"filepath"`

	// AuthCookieName is the name of the session cookie.
	AuthCookieName string `env:"AUTH_COOKIE_NAME"`

	// AuthCookieSigningSecretKey is the base64url-encoded key used to sign
	// the session cookie.
	AuthCookieSigningSecretKey string `env:"AUTH_COOKIE_SIGNING_SECRET_KEY" validate:"base64url"`

	// SessionTTL is the lifetime of an issued session cookie.
	SessionTTL time.Duration `env:"SESSION_TTL"`

	// TrustedSubnet is the CIDR allowed to query /api/internal/stats.
	// Empty disables the endpoint.
	TrustedSubnet string `env:"TRUSTED_SUBNET" validate:"omitempty,cidr"`
}

// jsonConfig mirrors the string fields accepted from the JSON config file.
type jsonConfig struct {
	RunAddr        string `json:"server_address"`
	ShortURLBase   string `json:"base_url"`
	LogLevel       string `json:"log_level"`
	DBFileName     string `json:"file_storage_path"`
	DatabaseDSN    string `json:"database_dsn"`
	AuthCookieName string `json:"auth_cookie_name"`
	TrustedSubnet  string `json:"trusted_subnet"`
}

var defaultConfig = Config{
	RunAddr:                    ":8080",
	ShortURLBase:               "http://localhost:8080",
	LogLevel:                   "info",
	DBConnectionTimeout:        10 * time.Second,
	MigrationsDir:              "cmd/tinyapp/migrations",
	AuthCookieName:             "tinyapp_session",
	AuthCookieSigningSecretKey: "dGlueWFwcC1kZXYtc2VjcmV0",
	SessionTTL:                 24 * time.Hour,
}

func validateFilePath(fieldLevel validator.FieldLevel) bool {
	path := fieldLevel.Field().String()
	if path == "" {
		return true
	}
	_, err := os.Stat(path)

	return err == nil || os.IsNotExist(err)
}

func validateLogLevel(fieldLevel validator.FieldLevel) bool {
	value := fieldLevel.Field().String()

	allowedLogLevels := map[string]bool{
		"debug":   true,
		"info":    true,
		"warning": true,
		"error":   true,
		"fatal":   true,
	}

	return allowedLogLevels[value]
}

func (values *Config) validate() error {
	validate := validator.New()

	err := validate.RegisterValidation("loglevel", validateLogLevel)
	if err != nil {
		return err
	}

	err = validate.RegisterValidation("filepath", validateFilePath)
	if err != nil {
		return err
	}

	return validate.Struct(values)
}

func applyDefaults(values *Config, defaults Config) {
	if values.RunAddr == "" {
		values.RunAddr = defaults.RunAddr
	}
	if values.ShortURLBase == "" {
		values.ShortURLBase = defaults.ShortURLBase
	}
	if values.LogLevel == "" {
		values.LogLevel = defaults.LogLevel
	}
	if values.DBConnectionTimeout == 0 {
		values.DBConnectionTimeout = defaults.DBConnectionTimeout
	}
	if values.MigrationsDir == "" {
		values.MigrationsDir = defaults.MigrationsDir
	}
	if values.AuthCookieName == "" {
		values.AuthCookieName = defaults.AuthCookieName
	}
	if values.AuthCookieSigningSecretKey == "" {
		values.AuthCookieSigningSecretKey = defaults.AuthCookieSigningSecretKey
	}
	if values.SessionTTL == 0 {
		values.SessionTTL = defaults.SessionTTL
	}
}

func (values *Config) applyJSONFile(fileName string) error {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return err
	}

	fromJSON := jsonConfig{}
	if err := json.Unmarshal(data, &fromJSON); err != nil {
		return err
	}

	if fromJSON.RunAddr != "" {
		values.RunAddr = fromJSON.RunAddr
	}
	if fromJSON.ShortURLBase != "" {
		values.ShortURLBase = fromJSON.ShortURLBase
	}
	if fromJSON.LogLevel != "" {
		values.LogLevel = fromJSON.LogLevel
	}
	if fromJSON.DBFileName != "" {
		values.DBFileName = fromJSON.DBFileName
	}
	if fromJSON.DatabaseDSN != "" {
		values.DatabaseDSN = fromJSON.DatabaseDSN
	}
	if fromJSON.AuthCookieName != "" {
		values.AuthCookieName = fromJSON.AuthCookieName
	}
	if fromJSON.TrustedSubnet != "" {
		values.TrustedSubnet = fromJSON.TrustedSubnet
	}

	return nil
}

// InitOption customizes the behavior of New.
type InitOption func(*initOptions)

type initOptions struct {
	disableFlagsParsing bool
}

// WithDisableFlagsParsing disables command line flag parsing.
// It is intended for tests, where os.Args belongs to the test binary.
func WithDisableFlagsParsing(disableFlagsParsing bool) InitOption {
	return func(options *initOptions) {
		options.disableFlagsParsing = disableFlagsParsing
	}
}

// New builds the Config by merging all configuration sources.
func New(optionsProto ...InitOption) (*Config, error) {
	options := &initOptions{
		disableFlagsParsing: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	err := godotenv.Load()
	if err != nil {
		log.Printf("Unable to load .env file: %v", err)
	}

	values := Config{}

	fromFlags := Config{}
	flagsWereSet := map[string]bool{}
	if !options.disableFlagsParsing {
		flags := flag.NewFlagSet("tinyapp", flag.ContinueOnError)
		flags.StringVar(&fromFlags.RunAddr, "a", "", "address and port to run server")
		flags.StringVar(&fromFlags.ShortURLBase, "b", "", "base address of the resulting shortened URL")
		flags.StringVar(&fromFlags.LogLevel, "l", "", "logger level")
		flags.StringVar(&fromFlags.DBFileName, "f", "", "JSON file name with database")
		flags.StringVar(&fromFlags.DatabaseDSN, "d", "", "a string with the database connection details")
		flags.StringVar(&fromFlags.TrustedSubnet, "t", "", "CIDR of the subnet trusted to query internal stats")
		flags.StringVar(&fromFlags.ConfigFile, "c", "", "path to a JSON configuration file")
		if err := flags.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
		flags.Visit(func(theFlag *flag.Flag) {
			flagsWereSet[theFlag.Name] = true
		})
	}

	fromEnv := Config{}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, err
	}

	configFile := fromEnv.ConfigFile
	if configFile == "" && flagsWereSet["c"] {
		configFile = fromFlags.ConfigFile
	}
	if configFile != "" {
		if err := values.applyJSONFile(configFile); err != nil {
			return nil, err
		}
	}

	if fromEnv.RunAddr != "" {
		values.RunAddr = fromEnv.RunAddr
	}
	if fromEnv.ShortURLBase != "" {
		values.ShortURLBase = fromEnv.ShortURLBase
	}
	if fromEnv.LogLevel != "" {
		values.LogLevel = fromEnv.LogLevel
	}
	if fromEnv.DBFileName != "" {
		values.DBFileName = fromEnv.DBFileName
	}
	if fromEnv.DatabaseDSN != "" {
		values.DatabaseDSN = fromEnv.DatabaseDSN
	}
	if fromEnv.DBConnectionTimeout != 0 {
		values.DBConnectionTimeout = fromEnv.DBConnectionTimeout
	}
	if fromEnv.MigrationsDir != "" {
		values.MigrationsDir = fromEnv.MigrationsDir
	}
	if fromEnv.AuthCookieName != "" {
		values.AuthCookieName = fromEnv.AuthCookieName
	}
	if fromEnv.AuthCookieSigningSecretKey != "" {
		values.AuthCookieSigningSecretKey = fromEnv.AuthCookieSigningSecretKey
	}
	if fromEnv.SessionTTL != 0 {
		values.SessionTTL = fromEnv.SessionTTL
	}
	if fromEnv.TrustedSubnet != "" {
		values.TrustedSubnet = fromEnv.TrustedSubnet
	}

	if flagsWereSet["a"] {
		values.RunAddr = fromFlags.RunAddr
	}
	if flagsWereSet["b"] {
		values.ShortURLBase = fromFlags.ShortURLBase
	}
	if flagsWereSet["l"] {
		values.LogLevel = fromFlags.LogLevel
	}
	if flagsWereSet["f"] {
		values.DBFileName = fromFlags.DBFileName
	}
	if flagsWereSet["d"] {
		values.DatabaseDSN = fromFlags.DatabaseDSN
	}
	if flagsWereSet["t"] {
		values.TrustedSubnet = fromFlags.TrustedSubnet
	}

	applyDefaults(&values, defaultConfig)

	if err := values.validate(); err != nil {
		return nil, err
	}

	return &values, nil
}
