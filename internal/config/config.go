// Package config loads settings from the environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/dvloznov/report-consolidator/internal/domain"
	"github.com/joho/godotenv"
)

type Config struct {
	Log     LogConfig
	GCP     GCPConfig
	Gemini  GeminiConfig
	Notion  NotionConfig
	Root    RootConfig
	Extract ExtractConfig
	Loader  LoaderConfig
}

type LogConfig struct {
	Level string
}

type GCPConfig struct {
	ProjectID string
	Dataset   string
	Bucket    string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type NotionConfig struct {
	Token      string
	DatabaseID string
}

// RootConfig overrides the root category injected into every consolidation.
// Empty values keep the built-in root.
type RootConfig struct {
	ID   string
	Name string
}

// Apply overrides the ID and name of root with the configured values.
func (r RootConfig) Apply(root domain.Category) domain.Category {
	root = root.Clone()
	if r.ID != "" {
		root.ID = r.ID
	}
	if r.Name != "" {
		root.Name = domain.StringPtr(r.Name)
	}
	return root
}

type ExtractConfig struct {
	Workers    int
	MaxRetries int
}

type LoaderConfig struct {
	Concurrency    int
	StripNumbering bool
}

// envFiles are tried in order; the first one that loads wins.
var envFiles = []string{".env", "../.env"}

// Load reads the environment. A missing .env file is not an error.
func Load() *Config {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	return &Config{
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		GCP: GCPConfig{
			ProjectID: getEnv("GCP_PROJECT_ID", ""),
			Dataset:   getEnv("BQ_DATASET", "political_funds"),
			Bucket:    getEnv("GCS_BUCKET", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Notion: NotionConfig{
			Token:      getEnv("NOTION_TOKEN", ""),
			DatabaseID: getEnv("NOTION_DATABASE_ID", ""),
		},
		Root: RootConfig{
			ID:   getEnv("ROOT_CATEGORY_ID", ""),
			Name: getEnv("ROOT_CATEGORY_NAME", ""),
		},
		Extract: ExtractConfig{
			Workers:    getEnvInt("EXTRACT_WORKERS", 5),
			MaxRetries: getEnvInt("EXTRACT_MAX_RETRIES", 4),
		},
		Loader: LoaderConfig{
			Concurrency:    getEnvInt("LOADER_CONCURRENCY", 8),
			StripNumbering: getEnvBool("STRIP_NUMBERING", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(getEnv(key, "")))
	if err != nil {
		return defaultValue
	}
	return b
}
