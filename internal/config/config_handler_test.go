package config

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func createMainFile(t *testing.T, fpath string) {
	t.Helper()
	contents := map[string]any{
		"environment": "development",
		"backend": map[string]any{
			"baseURL": "https://api.example.com",
		},
		"signin": map[string]any{
			"hosts": []map[string]any{
				{"host": "admin.example.com", "signinHost": "lms.example.com"},
			},
		},
	}
	raw, err := yaml.Marshal(contents)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(fpath, raw, 0666))
}

func createSecretFile(t *testing.T, fpath string) {
	t.Helper()
	contents := `---
auth:
  tokenEncryption:
    enabled: true
    secretKey: token-encryption-key-12345678910
identity:
  clientSecret: client-secret-from-secret-file
`
	require.NoError(t, os.WriteFile(fpath, []byte(contents), 0666))
}

func TestReadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	createMainFile(t, path.Join(tmpDir, "config.yaml"))
	createSecretFile(t, path.Join(tmpDir, "secret_config.yaml"))
	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.NotEqual(t, config, Config{})
	assert.Equal(t, "https://api.example.com", config.Backend.BaseURL.String())
	assert.Equal(t, 120, config.Auth.ExpiryBufferSeconds)
	assert.Equal(t, 300, config.Auth.CacheFreshnessSeconds)
	assert.Equal(t, RedactedString("token-encryption-key-12345678910"), config.Auth.TokenEncryption.SecretKey)
	assert.Equal(t, RedactedString("client-secret-from-secret-file"), config.Identity.ClientSecret)
	require.Len(t, config.Signin.Hosts, 1)
	assert.Equal(t, "admin.example.com", config.Signin.Hosts[0].Host)
	assert.Equal(t, "lms.example.com", config.Signin.Hosts[0].SigninHost)
}

func TestReadConfigWithEnvVars(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	createMainFile(t, path.Join(tmpDir, "config.yaml"))
	createSecretFile(t, path.Join(tmpDir, "secret_config.yaml"))
	t.Setenv("GATEWAY_IDENTITY_CLIENTSECRET", "env-var-secret")
	t.Setenv("GATEWAY_BACKEND_BASEURL", "https://api.dev.example.com")
	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.Equal(t, "https://api.dev.example.com", config.Backend.BaseURL.String())
	assert.Equal(t, RedactedString("env-var-secret"), config.Identity.ClientSecret)
	assert.Equal(t, RedactedString("token-encryption-key-12345678910"), config.Auth.TokenEncryption.SecretKey)
}

func TestReadConfigWithEnvVarsNoFiles(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	t.Setenv("GATEWAY_AUTH_EXPIRYBUFFERSECONDS", "60")
	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.Equal(t, 60, config.Auth.ExpiryBufferSeconds)
	assert.Equal(t, "http://localhost:8080", config.Backend.BaseURL.String())
	assert.Equal(t, DBTypeRedisMock, config.Redis.Type)
}

func TestInvalidBufferRejected(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	t.Setenv("GATEWAY_AUTH_EXPIRYBUFFERSECONDS", "0")
	ch := NewConfigHandler()
	_, err := ch.Config()
	assert.ErrorContains(t, err, "expiry buffer")
}
