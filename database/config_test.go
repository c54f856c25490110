package database_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"invserver/database"
	"invserver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("PORT", "8080")

	config, err := database.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	defaults := models.DefaultConfig()
	assert.Equal(t, "secret", config.SecretKey)
	assert.Equal(t, "8080", config.Port)
	assert.Equal(t, defaults.TokenTTL, config.TokenTTL)
	assert.Equal(t, defaults.BcryptCost, config.BcryptCost)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `{
		"port": "9000",
		"db_name": "inventory",
		"token_ttl": "24h",
		"user_cache_ttl": 30000000000,
		"allow_origins": ["http://file.example"]
	}`)

	t.Setenv("SECRET_KEY", "secret")
	t.Setenv("PORT", "7000")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("ALLOW_ORIGINS", "http://a.example, http://b.example,")
	t.Setenv("BCRYPT_COST", "4")

	config, err := database.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", config.Port)
	assert.Equal(t, "inventory", config.DBName)
	assert.Equal(t, time.Hour, time.Duration(config.TokenTTL))
	assert.Equal(t, 30*time.Second, time.Duration(config.UserCacheTTL))
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, config.AllowOrigins)
	assert.Equal(t, 4, config.BcryptCost)
}

func TestLoadConfig_SecretOnlyFromEnv(t *testing.T) {
	path := writeConfig(t, `{"SecretKey": "from-file"}`)
	t.Setenv("SECRET_KEY", "")

	_, err := database.LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "malformed file", body: `{"port":`},
		{name: "bad duration in file", body: `{"token_ttl": "soon"}`},
		{name: "bad duration in env", body: `{}`, env: map[string]string{"TOKEN_TTL": "soon"}},
		{name: "bad int in env", body: `{}`, env: map[string]string{"HASH_WORKERS": "many"}},
		{name: "zero workers", body: `{"hash_workers": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SECRET_KEY", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := database.LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
