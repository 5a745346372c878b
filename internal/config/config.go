package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Auth   AuthConfig   `yaml:"auth"`
	Redis  RedisConfig  `yaml:"redis"`
	Maps   MapsConfig   `yaml:"maps"`
	Photos PhotoConfig  `yaml:"photos"`
	Vision VisionConfig `yaml:"vision"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"      env:"LISTEN_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"60s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"120s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// StoreConfig selects the restriction table backend.
type StoreConfig struct {
	Driver       string        `yaml:"driver"        env:"STORE_DRIVER"         env-default:"sqlite"`
	SQLitePath   string        `yaml:"sqlite_path"   env:"SQLITE_PATH"          env-default:"/data/parkadmin.db"`
	PostgresDSN  string        `yaml:"postgres_dsn"  env:"DATABASE_DSN"`
	MaxConns     int32         `yaml:"max_conns"     env:"DATABASE_MAX_CONNS"   env-default:"10"`
	PollInterval time.Duration `yaml:"poll_interval" env:"CHANGE_POLL_INTERVAL" env-default:"2s"`
}

type AuthConfig struct {
	GoogleClientID     string        `yaml:"google_client_id"     env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `yaml:"google_client_secret" env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string        `yaml:"google_redirect_uri"  env:"GOOGLE_REDIRECT_URI"  env-default:"http://localhost:8080/auth/callback"`
	StateSecret        string        `yaml:"state_secret"         env:"AUTH_STATE_SECRET"`
	SessionTTL         time.Duration `yaml:"session_ttl"          env:"SESSION_TTL"          env-default:"12h"`
	CookieSecure       bool          `yaml:"cookie_secure"        env:"COOKIE_SECURE"        env-default:"true"`

	// WorkbenchIdle closes a session's drafts once no tab has touched them
	// for this long.
	WorkbenchIdle time.Duration `yaml:"workbench_idle" env:"WORKBENCH_IDLE_TIMEOUT" env-default:"30m"`

	// BootstrapAdmins are granted the admin role on first sign-in.
	BootstrapAdmins []string `yaml:"bootstrap_admins" env:"BOOTSTRAP_ADMIN_EMAILS" env-separator:","`
}

type RedisConfig struct {
	URL string `yaml:"url" env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
}

type MapsConfig struct {
	APIKey    string  `yaml:"api_key"    env:"MAPS_API_KEY"`
	Zoom      int     `yaml:"zoom"       env:"MAP_ZOOM"       env-default:"15"`
	CenterLat float64 `yaml:"center_lat" env:"MAP_CENTER_LAT" env-default:"51.5074"`
	CenterLng float64 `yaml:"center_lng" env:"MAP_CENTER_LNG" env-default:"-0.1278"`
}

type PhotoConfig struct {
	Backend        string `yaml:"backend"          env:"PHOTO_BACKEND"    env-default:"local"`
	LocalPath      string `yaml:"local_path"       env:"PHOTO_LOCAL_PATH" env-default:"/data/photos"`
	MinioEndpoint  string `yaml:"minio_endpoint"   env:"MINIO_ENDPOINT"`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `yaml:"minio_secret_key" env:"MINIO_SECRET_KEY"`
	MinioBucket    string `yaml:"minio_bucket"     env:"MINIO_BUCKET"     env-default:"restriction-photos"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"    env:"MINIO_USE_SSL"    env-default:"true"`
	MinioRegion    string `yaml:"minio_region"     env:"MINIO_REGION"`
}

type VisionConfig struct {
	Backend      string `yaml:"backend"        env:"VISION_BACKEND"  env-default:"none"`
	OllamaHost   string `yaml:"ollama_host"    env:"OLLAMA_HOST"     env-default:"http://localhost:11434"`
	OllamaModel  string `yaml:"ollama_model"   env:"OLLAMA_MODEL"    env-default:"moondream"`
	ClaudeAPIKey string `yaml:"claude_api_key" env:"CLAUDE_API_KEY"`
	ClaudeModel  string `yaml:"claude_model"   env:"CLAUDE_MODEL"    env-default:"claude-sonnet-4-5"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	File   string `yaml:"file"   env:"LOG_FILE"`
}

// Load reads CONFIG_PATH (default ./config.yaml) when present, otherwise
// environment variables and defaults. Environment overrides YAML.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("CONFIG_PATH")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}
