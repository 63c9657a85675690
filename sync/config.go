package sync

import (
	"os"

	"github.com/rohanthewiz/serr"
)

// ============================================================================
// Configuration
//
// Loaded from environment variables so deployment configuration stays
// external to the binary. NOTESYNC_REMOTE_URL and NOTESYNC_API_KEY point
// at the backing row store; the rest have workable defaults.
// ============================================================================

// Config holds everything main needs to wire the core together.
type Config struct {
	RemoteURL  string // Base URL of the remote row store (NOTESYNC_REMOTE_URL)
	APIKey     string // Client API key sent with every request (NOTESYNC_API_KEY)
	StorePath  string // Local database path (NOTESYNC_STORE_PATH)
	ListenAddr string // Control API listen address (NOTESYNC_LISTEN_ADDR)
}

const (
	defaultStorePath  = "./data/notes.ddb"
	defaultListenAddr = ":8000"
)

// LoadConfig reads configuration from environment variables.
func LoadConfig() *Config {
	cfg := &Config{
		RemoteURL:  os.Getenv("NOTESYNC_REMOTE_URL"),
		APIKey:     os.Getenv("NOTESYNC_API_KEY"),
		StorePath:  os.Getenv("NOTESYNC_STORE_PATH"),
		ListenAddr: os.Getenv("NOTESYNC_LISTEN_ADDR"),
	}
	if cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	return cfg
}

// Validate fails fast on missing required settings rather than
// discovering them mid-sync.
func (c *Config) Validate() error {
	if c.RemoteURL == "" {
		return serr.New("NOTESYNC_REMOTE_URL is required")
	}
	if c.APIKey == "" {
		return serr.New("NOTESYNC_API_KEY is required")
	}
	return nil
}
