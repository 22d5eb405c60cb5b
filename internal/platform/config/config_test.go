package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"SERVICE_NAME", "LOG_LEVEL", "APP_ENV", "HTTP_ADDR", "APP_VERSION", "BUILD_DATE", "GIT_SHA"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "containerlab-web" {
		t.Fatalf("unexpected service name %q", cfg.ServiceName)
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Fatalf("expected :5000, got %q", cfg.HTTP.Addr)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("expected info, got %q", cfg.LogLevel)
	}
	if cfg.Build.Version != "dev" || cfg.Build.GitSHA != "unknown" {
		t.Fatalf("unexpected build info %+v", cfg.Build)
	}
	if cfg.IsProduction() {
		t.Fatal("default env must not be production")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "  phase7-web ")
	t.Setenv("HTTP_ADDR", "127.0.0.1:8080")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("APP_VERSION", "1.4.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceName != "phase7-web" {
		t.Fatalf("expected trimmed service name, got %q", cfg.ServiceName)
	}
	if cfg.HTTP.Addr != "127.0.0.1:8080" {
		t.Fatalf("unexpected addr %q", cfg.HTTP.Addr)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production env")
	}
	if cfg.Build.Version != "1.4.2" {
		t.Fatalf("unexpected version %q", cfg.Build.Version)
	}
}

func TestLoad_InvalidAddr(t *testing.T) {
	t.Setenv("HTTP_ADDR", "5000")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for address without port")
	}
}

func TestLoadBase_IgnoresInvalidAddr(t *testing.T) {
	t.Setenv("HTTP_ADDR", "5000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("APP_VERSION", "2.0.0")

	cfg := LoadBase()
	if cfg.LogLevel != "debug" || cfg.Build.Version != "2.0.0" {
		t.Fatalf("unexpected base config %+v", cfg)
	}
}
