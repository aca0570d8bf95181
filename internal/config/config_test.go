package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:5000" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Database.Path != "data/mediagrab.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Cache.TTLMinutes != 60 {
		t.Errorf("cache ttl = %d", cfg.Cache.TTLMinutes)
	}
	if cfg.Cleanup.IntervalMinutes != 60 || cfg.Cleanup.MaxAgeHours != 24 {
		t.Errorf("cleanup = %+v", cfg.Cleanup)
	}
	if cfg.Engine.BinPath != "yt-dlp" || cfg.Engine.SocketTimeout != 30 {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if cfg.Proxy.Enabled {
		t.Error("proxy enabled by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MEDIAGRAB_SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("MEDIAGRAB_ENGINE_BINPATH", "/usr/local/bin/yt-dlp")
	t.Setenv("MEDIAGRAB_PROXY_ENABLED", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
	if cfg.Engine.BinPath != "/usr/local/bin/yt-dlp" {
		t.Errorf("engine bin = %q", cfg.Engine.BinPath)
	}
	if !cfg.Proxy.Enabled {
		t.Error("proxy override lost")
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	env := "MEDIAGRAB_DATABASE_PATH=/var/lib/mediagrab/cache.db\n" +
		"# comment line\n" +
		"MEDIAGRAB_CACHE_TTLMINUTES='15'\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.Unsetenv("MEDIAGRAB_DATABASE_PATH")
		os.Unsetenv("MEDIAGRAB_CACHE_TTLMINUTES")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Path != "/var/lib/mediagrab/cache.db" {
		t.Errorf("database path = %q", cfg.Database.Path)
	}
	if cfg.Cache.TTLMinutes != 15 {
		t.Errorf("cache ttl = %d", cfg.Cache.TTLMinutes)
	}
}

func TestDotEnvDoesNotOverrideProcessEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("MEDIAGRAB_SERVER_ADDR", "0.0.0.0:8080")

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("MEDIAGRAB_SERVER_ADDR=0.0.0.0:1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Errorf("process env lost to .env: %q", cfg.Server.Addr)
	}
}
