package config

import (
	"os"
	"path/filepath"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(tmp, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	for _, k := range []string{"ORD_OUTPUT", "ORD_CHAIN", "ORD_SERVER_URL", "ORD_RETRIES", "ORD_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	return tmp
}

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := isolate(t)
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\nchain: signet\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ORD_OUTPUT", "json")
	t.Setenv("ORD_CHAIN", "testnet")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
	if settings.Chain != ChainTestnet {
		t.Fatalf("expected env chain to override file, got %s", settings.Chain)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	isolate(t)
	_, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadServerURLFromFileThenEnv(t *testing.T) {
	tmp := isolate(t)
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("server_url: http://file:8080\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, ok := settings.DefaultServerURL(); !ok || got != "http://file:8080" {
		t.Fatalf("expected server url from file, got %q ok=%v", got, ok)
	}

	t.Setenv("ORD_SERVER_URL", "http://env:9000")
	settings, err = Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got, _ := settings.DefaultServerURL(); got != "http://env:9000" {
		t.Fatalf("expected env server url, got %q", got)
	}
}

func TestDefaultServerURLAbsent(t *testing.T) {
	isolate(t)
	settings, err := Load(GlobalFlags{Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := settings.DefaultServerURL(); ok {
		t.Fatal("expected no default server url")
	}
	if settings.Chain != ChainMainnet {
		t.Fatalf("expected mainnet default, got %s", settings.Chain)
	}
}

func TestLoadRejectsUnknownChain(t *testing.T) {
	isolate(t)
	if _, err := Load(GlobalFlags{Chain: "litecoin", Retries: -1}); err == nil {
		t.Fatal("expected unsupported chain error")
	}
}
