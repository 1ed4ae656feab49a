package cfg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromSettingsFile(t *testing.T) {
	path := writeSettings(t, `
wxpy_pkl_path: /data/wxpy.pkl
wxpy_puid_pkl_path: /data/wxpy_puid.pkl
tgdata_db_path: /data/tgdata.db
server:
  host: 127.0.0.1
  port: 9090
groups:
  ab12: Tech
`)

	cfg, err := loadArgs([]string{"--config", path, "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AccountsPath != "/data/wxpy.pkl" {
		t.Errorf("Expected accounts path '/data/wxpy.pkl', got '%s'", cfg.AccountsPath)
	}
	if cfg.MappingPath != "/data/wxpy_puid.pkl" {
		t.Errorf("Expected mapping path '/data/wxpy_puid.pkl', got '%s'", cfg.MappingPath)
	}
	if cfg.StorePath != "/data/tgdata.db" {
		t.Errorf("Expected store path '/data/tgdata.db', got '%s'", cfg.StorePath)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Errorf("Expected addr '127.0.0.1:9090', got '%s'", cfg.Addr())
	}
	if cfg.Groups["ab12"] != "Tech" {
		t.Errorf("Expected group 'Tech' for ab12, got '%s'", cfg.Groups["ab12"])
	}
	if cfg.DefaultLimit != 100 {
		t.Errorf("Expected default limit 100, got %d", cfg.DefaultLimit)
	}
	if cfg.MaxLimit != 1000 {
		t.Errorf("Expected max limit 1000, got %d", cfg.MaxLimit)
	}
	if cfg.Language != "zh-CN" {
		t.Errorf("Expected language 'zh-CN', got '%s'", cfg.Language)
	}
	if cfg.OriginPrefix != "blueset.wechat" {
		t.Errorf("Expected origin prefix 'blueset.wechat', got '%s'", cfg.OriginPrefix)
	}
	if cfg.OriginKey != "puid" {
		t.Errorf("Expected origin key 'puid', got '%s'", cfg.OriginKey)
	}
	if len(cfg.HiddenNames) != len(DefaultHiddenNames) {
		t.Errorf("Expected default hidden names, got %v", cfg.HiddenNames)
	}
	if Get() != cfg {
		t.Error("Get should return the loaded configuration")
	}
}

func TestFlagsOverrideSettingsFile(t *testing.T) {
	path := writeSettings(t, `
wxpy_pkl_path: /data/wxpy.pkl
wxpy_puid_pkl_path: /data/wxpy_puid.pkl
tgdata_db_path: /data/tgdata.db
server:
  port: 9090
hidden_names: []
`)

	cfg, err := loadArgs([]string{
		"--config", path,
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--store", "/other/tgdata.db",
		"--port", "7000",
		"--origin-key", "internal_id",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.StorePath != "/other/tgdata.db" {
		t.Errorf("Expected store path from flag, got '%s'", cfg.StorePath)
	}
	if cfg.Port != "7000" {
		t.Errorf("Expected port from flag, got '%s'", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Expected default host, got '%s'", cfg.Host)
	}
	if cfg.OriginKey != "internal_id" {
		t.Errorf("Expected origin key 'internal_id', got '%s'", cfg.OriginKey)
	}
	if len(cfg.HiddenNames) != 0 {
		t.Errorf("Expected explicit empty hidden names, got %v", cfg.HiddenNames)
	}
}

func TestEnvFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "test.env")
	content := "WXPY_PKL_PATH=/env/wxpy.pkl\nWXPY_PUID_PKL_PATH=/env/wxpy_puid.pkl\nTGDATA_DB_PATH=/env/tgdata.db\n"
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	// Registered so the variables godotenv sets are restored afterwards.
	t.Setenv("WXPY_PKL_PATH", "")
	os.Unsetenv("WXPY_PKL_PATH")
	t.Setenv("WXPY_PUID_PKL_PATH", "")
	os.Unsetenv("WXPY_PUID_PKL_PATH")
	t.Setenv("TGDATA_DB_PATH", "")
	os.Unsetenv("TGDATA_DB_PATH")

	cfg, err := loadArgs([]string{"--config", "", "--env-file=" + envPath})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.AccountsPath != "/env/wxpy.pkl" {
		t.Errorf("Expected accounts path from env file, got '%s'", cfg.AccountsPath)
	}
	if cfg.StorePath != "/env/tgdata.db" {
		t.Errorf("Expected store path from env file, got '%s'", cfg.StorePath)
	}
}

func TestMissingSourcesIsAnError(t *testing.T) {
	_, err := loadArgs([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
	})
	if err == nil {
		t.Error("Expected error when snapshot paths are not configured")
	}
}

func TestInvalidSettingsFile(t *testing.T) {
	path := writeSettings(t, "server: [unterminated")

	_, err := loadArgs([]string{"--config", path, "--env-file", filepath.Join(t.TempDir(), "missing.env")})
	if err == nil {
		t.Error("Expected error for malformed settings file")
	}
}

func TestMaxLimitBelowDefaultIsAnError(t *testing.T) {
	_, err := loadArgs([]string{
		"--config", filepath.Join(t.TempDir(), "absent.yaml"),
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"--accounts", "/data/wxpy.json",
		"--mapping", "/data/puid.json",
		"--store", "/data/tgdata.db",
		"--default-limit", "200",
		"--max-limit", "50",
	})
	if err == nil {
		t.Error("Expected error when max limit is below default limit")
	}
}
