package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "OPENAI_MODEL", "DATABASE_URL", "JWT_SECRET", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestSaveLoad(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg := Defaults()
	cfg.DataDir = "/srv/tasktalk"
	cfg.Storage.Driver = DriverFile
	cfg.Agent.Fallback = "rules"
	cfg.LLM.Temperature = 0.2
	cfg.Notify.Routes = map[string]string{"u1": "telegram:7:7"}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be renamed away")
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.json")
	require.NoError(t, Save(path, Defaults()))
	assert.FileExists(t, path)
}

func TestLoad_WritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "keywords", cfg.Agent.Fallback)
	assert.FileExists(t, path)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"log_level":"debug","llm":{"model":"gpt-4o"}}`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, 500, cfg.LLM.MaxTokens)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := tempConfigPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENAI_MODEL", "gpt-4o-mini")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/tasks")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load(tempConfigPath(t))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@localhost/tasks", cfg.Storage.URL)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
}

func TestLoad_SQLiteDatabaseURLKeepsDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "sqlite:///./todo.db")

	cfg, err := Load(tempConfigPath(t))
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "sqlite:///./todo.db", cfg.Storage.URL)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "log_level: debug\nstorage:\n  driver: file\nnotify:\n  routes:\n    alice: telegram:1:1\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "telegram:1:1", cfg.Notify.Routes["alice"])
	assert.Equal(t, ":8000", cfg.HTTP.Addr)

	require.NoError(t, SetValue(path, "http.addr", ":9000"))
	v, err := GetValue(path, "http.addr")
	require.NoError(t, err)
	assert.Equal(t, ":9000", v)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Storage.Driver = DriverPostgres
	assert.Error(t, cfg.Validate(), "postgres needs a url")
	cfg.Storage.URL = "postgres://localhost/x"
	assert.NoError(t, cfg.Validate())
	cfg.Storage.Driver = "mongo"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.Agent.Fallback = "magic"
	assert.Error(t, cfg.Validate())
	cfg.Agent.Fallback = ""
	assert.NoError(t, cfg.Validate())
}

func TestListValues(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Auth.JWTSecret = "jwt-secret-5678"
	cfg.Telegram.Token = "bot-token-abcd"

	plain, err := ListValues(cfg, false)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-key-1234", plain["llm.api_key"])
	assert.Equal(t, float64(500), plain["llm.max_tokens"])
	assert.Equal(t, "sqlite", plain["storage.driver"])

	masked, err := ListValues(cfg, true)
	require.NoError(t, err)
	assert.Equal(t, "***1234", masked["llm.api_key"])
	assert.Equal(t, "***5678", masked["auth.jwt_secret"])
	assert.Equal(t, "***abcd", masked["telegram.token"])
	assert.Equal(t, "", masked["storage.url"])
	assert.Equal(t, "info", masked["log_level"])
}

func TestGetValue(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	v, err := GetValue(path, "llm.model")
	require.NoError(t, err, "missing file is created with defaults")
	assert.Equal(t, "gpt-3.5-turbo", v)

	_, err = GetValue(path, "nope.missing")
	assert.ErrorContains(t, err, "unknown config key")
}

func TestSetValue(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	require.NoError(t, Save(path, Defaults()))

	require.NoError(t, SetValue(path, "log_level", "debug"))
	require.NoError(t, SetValue(path, "max_concurrent", "8"))
	require.NoError(t, SetValue(path, "llm.temperature", "0.25"))
	require.NoError(t, SetValue(path, "notify.routes.u1", "log:u1"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxConcurrent)
	assert.Equal(t, float32(0.25), cfg.LLM.Temperature)
	assert.Equal(t, "log:u1", cfg.Notify.Routes["u1"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, float64(8), raw["max_concurrent"], "numbers are stored typed")
}

func TestSetValue_RejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)
	require.NoError(t, Save(path, Defaults()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.ErrorContains(t, SetValue(path, "storage.driver", "mongo"), "unknown storage driver")
	assert.ErrorContains(t, SetValue(path, "storage.driver", "postgres"), "storage.url is required")
	assert.ErrorContains(t, SetValue(path, "agent.fallback", "magic"), "unknown agent fallback")
	assert.ErrorContains(t, SetValue(path, "max_concurrent", "lots"), "invalid value")

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after), "rejected values are not written")

	require.NoError(t, SetValue(path, "storage.url", "postgres://localhost/tasks"))
	require.NoError(t, SetValue(path, "storage.driver", "postgres"))
}

func TestSetValue_NonexistentFile(t *testing.T) {
	err := SetValue(filepath.Join(t.TempDir(), "missing.json"), "log_level", "debug")
	assert.Error(t, err)
}
