package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBPath != "cofront.db" {
		t.Fatalf("db path = %q, want %q", cfg.DBPath, "cofront.db")
	}
	if cfg.CountdownTicks != 3 || cfg.WindowTicks != 30 {
		t.Fatalf("timing = (%d, %d), want (3, 30)", cfg.CountdownTicks, cfg.WindowTicks)
	}
	if cfg.RoundsPerSession != 5 {
		t.Fatalf("rounds = %d, want 5", cfg.RoundsPerSession)
	}
	if cfg.GardenGenerations != 3 {
		t.Fatalf("garden generations = %d, want 3", cfg.GardenGenerations)
	}
	if cfg.Seed != 0 {
		t.Fatalf("seed = %d, want 0", cfg.Seed)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("COFRONT_DB_PATH", "/tmp/engine.db")
	t.Setenv("COFRONT_WINDOW_TICKS", "12")
	t.Setenv("COFRONT_SEED", "99")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBPath != "/tmp/engine.db" {
		t.Fatalf("db path = %q, want override", cfg.DBPath)
	}
	if cfg.WindowTicks != 12 {
		t.Fatalf("window ticks = %d, want 12", cfg.WindowTicks)
	}
	if cfg.Seed != 99 {
		t.Fatalf("seed = %d, want 99", cfg.Seed)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	t.Setenv("COFRONT_WINDOW_TICKS", "0")
	if _, err := Parse(); err == nil {
		t.Fatal("zero window should be rejected")
	}
}
