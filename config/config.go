package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server ServerConfig
	S3     S3Config
	Auth   AuthConfig
	Status StatusConfig
}

type ServerConfig struct {
	Addr         string
	FilesDir     string
	TemplatePath string
}

// S3Config describes the remote attachment backend. The values here decide
// where NEW uploads go; deletion of existing attachments always follows the
// location recorded in the document itself.
type S3Config struct {
	Enable         bool
	Name           string
	AccessKey      string
	SecretKey      string
	Endpoint       string
	Region         string
	Bucket         string
	PublicURLBase  string
	PresignTTL     time.Duration
	RequestTimeout time.Duration
}

type AuthConfig struct {
	Username    string
	Password    string
	TokenSecret string
}

// StatusConfig is served verbatim on /status for TiddlyWeb clients.
type StatusConfig struct {
	Username          string `json:"username"`
	Anonymous         bool   `json:"anonymous"`
	ReadOnly          bool   `json:"read_only"`
	Space             Space  `json:"space"`
	TiddlyWikiVersion string `json:"tiddlywiki_version"`
}

type Space struct {
	Recipe string `json:"recipe"`
}

// Load reads configuration from the environment. main calls godotenv first
// so a local .env file behaves like exported variables.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         envOr("SERVER_ADDR", ":8080"),
			FilesDir:     envOr("FILES_DIR", "files"),
			TemplatePath: envOr("WIKI_TEMPLATE", "empty.html"),
		},
		S3: S3Config{
			Enable:         envBool("S3_ENABLE"),
			Name:           envOr("S3_NAME", "s3"),
			AccessKey:      strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			SecretKey:      strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			Endpoint:       strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:         envOr("S3_REGION", "us-east-1"),
			Bucket:         strings.TrimSpace(os.Getenv("S3_BUCKET")),
			PublicURLBase:  strings.TrimSuffix(strings.TrimSpace(os.Getenv("S3_PUBLIC_URL")), "/"),
			PresignTTL:     envDuration("S3_PRESIGN_TTL", 5*time.Minute),
			RequestTimeout: envDuration("S3_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Username:    strings.TrimSpace(os.Getenv("AUTH_USERNAME")),
			Password:    os.Getenv("AUTH_PASSWORD"),
			TokenSecret: strings.TrimSpace(os.Getenv("AUTH_TOKEN_SECRET")),
		},
		Status: StatusConfig{
			Username:          envOr("STATUS_USERNAME", "anonymous"),
			Anonymous:         envBool("STATUS_ANONYMOUS"),
			ReadOnly:          envBool("STATUS_READ_ONLY"),
			Space:             Space{Recipe: "default"},
			TiddlyWikiVersion: envOr("TIDDLYWIKI_VERSION", "5.3.8"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
