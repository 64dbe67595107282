package config

import (
	"os"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("DATABASE_DSN", "user:pass@tcp(localhost:3306)/clinsync?parseTime=true")
	defer os.Unsetenv("DATABASE_DSN")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.SyncBatchSize != 100 {
		t.Errorf("expected default batch size 100, got %d", cfg.SyncBatchSize)
	}
	if !cfg.SyncAutoReferral {
		t.Error("expected auto-referral enabled by default")
	}
	if cfg.EventStream != "clinsync.events" {
		t.Errorf("unexpected event stream: %s", cfg.EventStream)
	}
	if !cfg.IsDev() {
		t.Error("expected development env by default")
	}
}

func TestLoad_MissingDSN(t *testing.T) {
	os.Unsetenv("DATABASE_DSN")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_DSN is unset")
	}
}

func TestValidate_BatchSize(t *testing.T) {
	cfg := &Config{
		DatabaseDSN:    "dsn",
		DBMaxOpenConns: 10,
		DBMaxIdleConns: 5,
		SyncBatchSize:  0,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero batch size")
	}

	cfg.SyncBatchSize = 50
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_PoolSizing(t *testing.T) {
	cfg := &Config{
		DatabaseDSN:    "dsn",
		DBMaxOpenConns: 2,
		DBMaxIdleConns: 5,
		SyncBatchSize:  10,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when open conns < idle conns")
	}
}
