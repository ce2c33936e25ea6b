// Package config loads a driver process's bootstrap configuration —
// device name, catalog directory, diagnostics listen address — from
// TOML, following cmd/ghostctl/config.go's decode-then-fill-defaults
// pattern. This is distinct from, and layered above, the INDI
// property-config persistence in internal/indi/config.go, which stays
// in the wire's own XML grammar because the peer and the on-disk
// property snapshot share that grammar by design (SPEC_FULL.md §2).
package config

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// DriverConfig configures one driver process's bootstrap behaviour.
type DriverConfig struct {
	Device          string   `toml:"device"`
	CatalogDir      string   `toml:"catalog_dir"`
	AdminListenAddr string   `toml:"admin_listen_addr"`
	CorsOrigins     []string `toml:"cors_origins"`
	Verbose         bool     `toml:"verbose"`
	PingTimeoutMS   int64    `toml:"ping_timeout_ms"`
}

// DefaultDriverConfig returns the bootstrap defaults used when no
// config file is given, or a field is left unset in one that is.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Device:          "Weather Simulator",
		CatalogDir:      "catalog",
		AdminListenAddr: "127.0.0.1:8624",
		CorsOrigins:     []string{"http://localhost:3000"},
	}
}

// LoadDriverConfig reads path as TOML and overlays it onto
// DefaultDriverConfig(), the way cmd/ghostctl/config.go's
// loadServiceConfig overlays ghost.DefaultServiceConfig(). An empty
// path is not an error: the caller gets the defaults outright.
func LoadDriverConfig(path string) (DriverConfig, error) {
	cfg := DefaultDriverConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return DriverConfig{}, fmt.Errorf("load driver config %s: %w", path, err)
	}

	def := DefaultDriverConfig()
	if !meta.IsDefined("device") || strings.TrimSpace(cfg.Device) == "" {
		cfg.Device = def.Device
	}
	if !meta.IsDefined("catalog_dir") || strings.TrimSpace(cfg.CatalogDir) == "" {
		cfg.CatalogDir = def.CatalogDir
	}
	if !meta.IsDefined("admin_listen_addr") || strings.TrimSpace(cfg.AdminListenAddr) == "" {
		cfg.AdminListenAddr = def.AdminListenAddr
	}
	if !meta.IsDefined("cors_origins") || len(cfg.CorsOrigins) == 0 {
		cfg.CorsOrigins = def.CorsOrigins
	}

	if err := ValidateDriverConfig(cfg); err != nil {
		return DriverConfig{}, err
	}
	return cfg, nil
}

// ValidateDriverConfig rejects a config too broken to boot a driver
// with, mirroring ValidateGhostConfig/ValidateSeedConfig's shape.
func ValidateDriverConfig(cfg DriverConfig) error {
	if strings.TrimSpace(cfg.Device) == "" {
		return fmt.Errorf("driver config missing device")
	}
	if cfg.PingTimeoutMS < 0 {
		return fmt.Errorf("driver config ping_timeout_ms must not be negative")
	}
	return nil
}
