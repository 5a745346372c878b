package config

import (
	"fmt"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// Validate checks cross-field rules that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres (got %q)", c.Store.Driver)
	}
	if c.Store.PollInterval <= 0 {
		return fmt.Errorf("store.poll_interval must be > 0 (got %v)", c.Store.PollInterval)
	}

	if c.Auth.GoogleClientID == "" || c.Auth.GoogleClientSecret == "" {
		return fmt.Errorf("auth.google_client_id and auth.google_client_secret are required")
	}
	if len(c.Auth.StateSecret) < 32 {
		return fmt.Errorf("auth.state_secret must be at least 32 characters (got %d)", len(c.Auth.StateSecret))
	}
	if c.Auth.WorkbenchIdle <= 0 {
		return fmt.Errorf("auth.workbench_idle must be > 0 (got %v)", c.Auth.WorkbenchIdle)
	}

	if c.Maps.Zoom < 0 || c.Maps.Zoom > 22 {
		return fmt.Errorf("maps.zoom must be between 0 and 22 (got %d)", c.Maps.Zoom)
	}

	switch c.Photos.Backend {
	case "local":
	case "minio":
		if c.Photos.MinioEndpoint == "" {
			return fmt.Errorf("photos.minio_endpoint is required for the minio backend")
		}
	default:
		return fmt.Errorf("photos.backend must be local or minio (got %q)", c.Photos.Backend)
	}

	switch c.Vision.Backend {
	case "none", "ollama":
	case "claude":
		if c.Vision.ClaudeAPIKey == "" {
			return fmt.Errorf("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
		}
	default:
		return fmt.Errorf("vision.backend must be none, ollama or claude (got %q)", c.Vision.Backend)
	}
	return nil
}

// Center is the configured initial viewport.
func (m MapsConfig) Center() domain.LatLng {
	return domain.LatLng{Lat: m.CenterLat, Lng: m.CenterLng}
}
