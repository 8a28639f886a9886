package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Settings struct {
	DatabasePath string `envconfig:"DATABASE_PATH" default:"/app/data/llm-gateway.db"`
	ListenAddr   string `envconfig:"LISTEN_ADDR" default:":8080"`
	ServiceKey   string `envconfig:"SERVICE_KEY" default:""`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// CacheTTL <= 0 disables response caching entirely.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"1h"`

	DefaultProvider string `envconfig:"DEFAULT_PROVIDER" default:"claude"`
	DefaultModel    string `envconfig:"DEFAULT_MODEL" default:"claude-sonnet-4-20250514"`

	// RequestsPerMinute caps generate calls per calling service. 0 = unlimited.
	RequestsPerMinute int `envconfig:"REQUESTS_PER_MINUTE" default:"0"`
}

var Cfg Settings

func Load() {
	_ = godotenv.Load()
	if err := envconfig.Process("LLM_GATEWAY", &Cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
}
