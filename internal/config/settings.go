package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Config struct {
	Poller struct {
		PollTimer      Timer    `json:"poll_timer"`
		Retries        uint32   `json:"retries"`
		QueryTimeoutMs uint32   `json:"query_timeout_ms"`
		QueryWorkers   uint32   `json:"query_workers"`
		MasterServers  []string `json:"master_servers"`
	} `json:"poller"`

	VPN struct {
		CacheFile        string   `json:"cache_file"`
		FlushTimer       Timer    `json:"flush_timer"`
		MaxBatch         uint32   `json:"max_batch"`
		AllowMassCheck   bool     `json:"allow_mass_check"`
		Providers        []string `json:"providers"`
		RequestTimeoutMs uint32   `json:"request_timeout_ms"`

		GetIPIntel struct {
			Threshold float64 `json:"threshold"`
		} `json:"getipintel"`

		Blocklist struct {
			Sources      []string `json:"sources"`
			RefreshTimer Timer    `json:"refresh_timer"`
		} `json:"blocklist"`

		GeoLite struct {
			ASNDatabase string `json:"asn_database"`
		} `json:"geolite"`

		ReservedRanges []string `json:"reserved_ranges"`
	} `json:"vpn"`

	Server struct {
		Port int `json:"port"`
	} `json:"server"`

	Logging struct {
		Level      string `json:"level"`
		File       string `json:"file"`
		MaxSizeMB  int    `json:"max_size_mb"`
		MaxBackups int    `json:"max_backups"`
		MaxAgeDays int    `json:"max_age_days"`
	} `json:"logging"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

const DefaultSettingsPath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
)

func init() {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded defaults are invalid: %v", err))
	}
	configValue.Store(cfg)
}

// Defaults returns the embedded default configuration.
func Defaults() Config {
	var cfg Config
	_ = json.Unmarshal(defaultConfig, &cfg)
	return cfg
}

// ReadSettings loads the settings file at path, creating it from the embedded
// defaults when it does not exist. Keys missing from the file keep their
// default values.
func ReadSettings(path string) error {
	if path == "" {
		path = DefaultSettingsPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("read settings file: %w", err)
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return fmt.Errorf("write default settings file: %w", err)
		}
		data = defaultConfig
	}

	newConfig := Defaults()
	if err := json.Unmarshal(data, &newConfig); err != nil {
		return fmt.Errorf("unmarshal settings file: %w", err)
	}

	SetConfig(newConfig)
	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

func SetConfig(newConfig Config) {
	configValue.Store(newConfig)
}

func GetConfig() Config {
	return configValue.Load().(Config)
}
