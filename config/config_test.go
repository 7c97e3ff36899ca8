package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		substr string
	}{
		{"empty db path", func(c *Config) { c.DBPath = "  " }, "db_path"},
		{"short genesis hash", func(c *Config) { c.GenesisHash = []byte{0x01} }, "genesis_hash"},
		{"zero timeout", func(c *Config) { c.PhaseTimeout = 0 }, "phase_timeout"},
		{"negative cleanup", func(c *Config) { c.CleanupInterval = -time.Second }, "cleanup_interval"},
		{"future schema", func(c *Config) { c.SchemaTargetVersion = 99 }, "schema_target_version"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.substr) {
				t.Fatalf("error %q does not mention %q", err, tc.substr)
			}
		})
	}
}

func TestParseGenesisHash(t *testing.T) {
	if b, err := ParseGenesisHash(""); err != nil || b != nil {
		t.Fatalf("empty input must mean not-supplied, got %v %v", b, err)
	}
	hex64 := strings.Repeat("ab", 32)
	b, err := ParseGenesisHash("0x" + hex64)
	if err != nil || len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d err=%v", len(b), err)
	}
	if _, err := ParseGenesisHash("zz"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
	if _, err := ParseGenesisHash("abcd"); err == nil {
		t.Fatalf("expected error for short input")
	}
}
