// Package config holds the multisig core's recognized options (spec §6,
// configuration) with defaulting and validation.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rubinvalidator/tss-core/store"
)

type Config struct {
	DBPath              string        `json:"db_path"`
	GenesisHash         []byte        `json:"genesis_hash,omitempty"` // optional, 32 bytes when set
	PhaseTimeout        time.Duration `json:"phase_timeout"`
	SchemaTargetVersion uint32        `json:"schema_target_version"` // test only
	CleanupInterval     time.Duration `json:"cleanup_interval"`
}

func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tss"
	}
	return filepath.Join(home, ".tss")
}

func Default() Config {
	return Config{
		DBPath:              filepath.Join(DefaultDataDir(), "keystore"),
		PhaseTimeout:        30 * time.Second,
		SchemaTargetVersion: store.CurrentSchemaVersion,
		CleanupInterval:     5 * time.Second,
	}
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db_path must not be empty")
	}
	if cfg.GenesisHash != nil && len(cfg.GenesisHash) != 32 {
		return fmt.Errorf("genesis_hash must be 32 bytes, got %d", len(cfg.GenesisHash))
	}
	if cfg.PhaseTimeout <= 0 {
		return errors.New("phase_timeout must be positive")
	}
	if cfg.CleanupInterval <= 0 {
		return errors.New("cleanup_interval must be positive")
	}
	if cfg.SchemaTargetVersion > store.CurrentSchemaVersion {
		return fmt.Errorf("schema_target_version %d is ahead of the latest schema %d",
			cfg.SchemaTargetVersion, store.CurrentSchemaVersion)
	}
	return nil
}

// ParseGenesisHash decodes an optional hex-encoded 32-byte genesis hash from
// a flag value. An empty string means "not supplied".
func ParseGenesisHash(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("genesis hash is not valid hex: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("genesis hash must be 32 bytes, got %d", len(b))
	}
	return b, nil
}
