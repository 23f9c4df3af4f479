package config

import "os"

// Storage backend selectors.
const (
	StorageMongo = "mongodb"
	StorageSQL   = "sql"
)

// Search backend selectors.
const (
	SearchElasticsearch = "elasticsearch"
	SearchBleve         = "bleve"
	SearchNone          = "none"
)

// Config is the full runtime configuration, read from the environment.
type Config struct {
	StorageBackend string
	DatabaseURL    string
	MongoURL       string
	MongoDatabase  string

	SearchBackend    string
	ElasticsearchURL string
	BlevePath        string

	Port    string
	GinMode string
}

// Load reads the configuration from environment variables, applying
// defaults for everything optional.
func Load() *Config {
	return &Config{
		StorageBackend: getEnv("STORAGE_BACKEND", StorageSQL),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MongoURL:       getEnv("MONGODB_URL", "mongodb://localhost:27017"),
		MongoDatabase:  getEnv("MONGODB_DATABASE", "coursetalk"),

		SearchBackend:    getEnv("SEARCH_BACKEND", SearchNone),
		ElasticsearchURL: getEnv("ELASTICSEARCH_URL", "http://localhost:9200"),
		BlevePath:        os.Getenv("BLEVE_PATH"),

		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "release"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
