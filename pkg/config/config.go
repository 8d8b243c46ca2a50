package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
}

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type AuthConfig struct {
	// Secret signs session tokens. Required in production; a development
	// process generates one for its own lifetime when unset.
	Secret        string `mapstructure:"secret"`
	SessionTTL    string `mapstructure:"session_ttl"`
	CookieName    string `mapstructure:"cookie_name"`
	SecureCookies bool   `mapstructure:"secure_cookies"`
}

type EmbeddingConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
}

type LLMConfig struct {
	APIURL string `mapstructure:"api_url"`
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// RetrievalConfig holds the similarity tuning knobs. The defaults mirror the
// values the pipeline shipped with; they are configuration, not algorithm.
type RetrievalConfig struct {
	RelevanceFloor    float64 `mapstructure:"relevance_floor"`
	DuplicateDistance float64 `mapstructure:"duplicate_distance"`
	ChatLimit         int     `mapstructure:"chat_limit"`
	FallbackThreshold int     `mapstructure:"fallback_threshold"`
}

// IsProduction reports whether the server runs with production policies
// (secret required, secure cookies).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.cookie_name", "session")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("retrieval.relevance_floor", 0.65)
	v.SetDefault("retrieval.duplicate_distance", 0.15)
	v.SetDefault("retrieval.chat_limit", 10)
	v.SetDefault("retrieval.fallback_threshold", 3)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file when one is present
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	// Get other environment variables
	if secret := v.GetString("AUTH_SECRET"); secret != "" {
		config.Auth.Secret = secret
	}

	if embedURL := v.GetString("EMBEDDING_API_URL"); embedURL != "" {
		config.Embedding.APIURL = embedURL
	}
	if embedKey := v.GetString("EMBEDDING_API_KEY"); embedKey != "" {
		config.Embedding.APIKey = embedKey
	}

	if llmURL := v.GetString("LLM_API_URL"); llmURL != "" {
		config.LLM.APIURL = llmURL
	}
	if llmKey := v.GetString("LLM_API_KEY"); llmKey != "" {
		config.LLM.APIKey = llmKey
	}
	if model := v.GetString("LLM_MODEL"); model != "" {
		config.LLM.Model = model
	}

	return &config, nil
}
