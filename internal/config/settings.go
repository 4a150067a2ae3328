package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	KB = 1024
	MB = 1024 * KB
)

// Settings holds all user-configurable application settings organized by category.
type Settings struct {
	General GeneralSettings `json:"general"`
	Limits  LimitSettings   `json:"limits"`
	Tools   ToolSettings    `json:"tools"`
	Mirror  MirrorSettings  `json:"mirror"`
	Session SessionSettings `json:"session"`
}

// GeneralSettings contains application behavior settings.
type GeneralSettings struct {
	TempDir           string `json:"temp_dir"`
	AttributionSuffix string `json:"attribution_suffix"`
	LogRetentionCount int    `json:"log_retention_count"`
}

// LimitSettings contains size and pacing limits for the download pipeline.
type LimitSettings struct {
	MaxUploadBytes      int64         `json:"max_upload_bytes"`
	MinProgressInterval time.Duration `json:"min_progress_interval"`
	MaxProgressInterval time.Duration `json:"max_progress_interval"`
	MaxDeliveryRetries  int           `json:"max_delivery_retries"`
	ProbeTimeout        time.Duration `json:"probe_timeout"`
	FetchTimeout        time.Duration `json:"fetch_timeout"`
}

// ToolSettings contains paths to the external binaries the pipeline drives.
type ToolSettings struct {
	YtDlpPath   string `json:"ytdlp_path"`
	FFmpegPath  string `json:"ffmpeg_path"`
	FFprobePath string `json:"ffprobe_path"`
	CookieFile  string `json:"cookie_file"`
}

// MirrorSettings configures the short-video mirror API client.
type MirrorSettings struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// SessionSettings configures the in-memory download session store.
type SessionSettings struct {
	TTL           time.Duration `json:"ttl"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// DefaultSettings returns a new Settings instance with sensible defaults.
func DefaultSettings() *Settings {
	return &Settings{
		General: GeneralSettings{
			TempDir:           filepath.Join(os.TempDir(), "clipfetch"),
			AttributionSuffix: "\n\nvia @clipfetchbot",
			LogRetentionCount: 5,
		},
		Limits: LimitSettings{
			MaxUploadBytes:      1900 * MB,
			MinProgressInterval: 1 * time.Second,
			MaxProgressInterval: 7 * time.Second,
			MaxDeliveryRetries:  3,
			ProbeTimeout:        60 * time.Second,
			FetchTimeout:        10 * time.Minute,
		},
		Tools: ToolSettings{
			YtDlpPath:   "yt-dlp",
			FFmpegPath:  "ffmpeg",
			FFprobePath: "ffprobe",
		},
		Mirror: MirrorSettings{
			BaseURL: "https://www.tikwm.com",
			Timeout: 30 * time.Second,
		},
		Session: SessionSettings{
			TTL:           15 * time.Minute,
			SweepInterval: 1 * time.Minute,
		},
	}
}

// GetAppDir returns the application data directory (~/.clipfetch).
func GetAppDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".clipfetch"
	}
	return filepath.Join(homeDir, ".clipfetch")
}

// GetLogsDir returns the directory for debug logs.
func GetLogsDir() string {
	return filepath.Join(GetAppDir(), "logs")
}

// GetStateDir returns the directory for persistent state (sqlite db, lock file).
func GetStateDir() string {
	return filepath.Join(GetAppDir(), "state")
}

// EnsureDirs creates the application directories if they don't exist.
func EnsureDirs() error {
	for _, dir := range []string{GetAppDir(), GetLogsDir(), GetStateDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func settingsPath() string {
	return filepath.Join(GetAppDir(), "settings.json")
}

// LoadSettings reads settings from disk, falling back to defaults for a
// missing file. Unknown fields are ignored; missing fields keep defaults.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFrom(settingsPath())
}

// LoadSettingsFrom reads settings from an explicit path.
func LoadSettingsFrom(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}
	settings.applyFloors()
	return settings, nil
}

// SaveSettings writes settings to disk as indented JSON.
func SaveSettings(settings *Settings) error {
	if err := EnsureDirs(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(), data, 0644)
}

// applyFloors clamps values a hand-edited settings file could break.
func (s *Settings) applyFloors() {
	def := DefaultSettings()
	if s.Limits.MaxUploadBytes <= 0 {
		s.Limits.MaxUploadBytes = def.Limits.MaxUploadBytes
	}
	if s.Limits.MinProgressInterval <= 0 {
		s.Limits.MinProgressInterval = def.Limits.MinProgressInterval
	}
	if s.Limits.MaxProgressInterval < s.Limits.MinProgressInterval {
		s.Limits.MaxProgressInterval = s.Limits.MinProgressInterval
	}
	if s.Limits.MaxDeliveryRetries <= 0 {
		s.Limits.MaxDeliveryRetries = def.Limits.MaxDeliveryRetries
	}
	if s.Session.TTL <= 0 {
		s.Session.TTL = def.Session.TTL
	}
	if s.Session.SweepInterval <= 0 {
		s.Session.SweepInterval = def.Session.SweepInterval
	}
}
