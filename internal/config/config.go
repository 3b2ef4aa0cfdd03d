// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyOpenAIKey     = "OPENAI_API_KEY"
	KeyMongoUsername = "MONGODB_USERNAME"
	KeyMongoPassword = "MONGODB_PASSWORD"
	KeyMongoHost     = "MONGODB_HOST"
	KeyMongoDBName   = "MONGODB_DBNAME"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyHTTPPort      = "HTTP_PORT"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv   = EnvProduction
	DefaultLogLevel = "info"
	DefaultHTTPPort = 8080
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Secret      bool   // redact the value when printing configuration
	Description string // what the variable controls
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Secret:      true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyOpenAIKey,
		Example:     "sk-...",
		Required:    true,
		Secret:      true,
		Description: "API key for the inference service.",
	},
	{
		Key:         KeyMongoUsername,
		Example:     "bot",
		Required:    true,
		Description: "MongoDB username.",
	},
	{
		Key:         KeyMongoPassword,
		Example:     "s3cret",
		Required:    true,
		Secret:      true,
		Description: "MongoDB password.",
	},
	{
		Key:         KeyMongoHost,
		Example:     "cluster0.example.mongodb.net",
		Required:    true,
		Description: "MongoDB host (cluster address, no scheme).",
	},
	{
		Key:         KeyMongoDBName,
		Example:     "relay_bot",
		Required:    true,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	OpenAIKey     string
	MongoUsername string
	MongoPassword string
	MongoHost     string
	MongoDBName   string
	AppEnv        string
	LogLevel      string
	HTTPPort      int
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		OpenAIKey:     strings.TrimSpace(os.Getenv(KeyOpenAIKey)),
		MongoUsername: strings.TrimSpace(os.Getenv(KeyMongoUsername)),
		MongoPassword: strings.TrimSpace(os.Getenv(KeyMongoPassword)),
		MongoHost:     strings.TrimSpace(os.Getenv(KeyMongoHost)),
		MongoDBName:   strings.TrimSpace(os.Getenv(KeyMongoDBName)),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	for key, value := range map[string]string{
		KeyTelegramToken: cfg.TelegramToken,
		KeyOpenAIKey:     cfg.OpenAIKey,
		KeyMongoUsername: cfg.MongoUsername,
		KeyMongoPassword: cfg.MongoPassword,
		KeyMongoHost:     cfg.MongoHost,
		KeyMongoDBName:   cfg.MongoDBName,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	return cfg, nil
}

// MongoURI assembles the connection string from its parts, escaping the
// credentials so passwords with reserved characters survive.
func (c Config) MongoURI() string {
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/%s?retryWrites=true&w=majority",
		url.QueryEscape(c.MongoUsername),
		url.QueryEscape(c.MongoPassword),
		c.MongoHost,
		c.MongoDBName,
	)
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// FormatRedacted renders the resolved configuration with secret values masked,
// suitable for the --config-only startup check.
func FormatRedacted(cfg Config) string {
	values := map[string]string{
		KeyTelegramToken: cfg.TelegramToken,
		KeyOpenAIKey:     cfg.OpenAIKey,
		KeyMongoUsername: cfg.MongoUsername,
		KeyMongoPassword: cfg.MongoPassword,
		KeyMongoHost:     cfg.MongoHost,
		KeyMongoDBName:   cfg.MongoDBName,
		KeyAppEnv:        cfg.AppEnv,
		KeyLogLevel:      cfg.LogLevel,
		KeyHTTPPort:      strconv.Itoa(cfg.HTTPPort),
	}

	var b strings.Builder
	for _, spec := range Contract {
		value := values[spec.Key]
		if spec.Secret && value != "" {
			value = "(redacted)"
		}
		if value == "" {
			value = "(unset)"
		}
		fmt.Fprintf(&b, "%s=%s\n", spec.Key, value)
	}

	return strings.TrimRight(b.String(), "\n")
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
