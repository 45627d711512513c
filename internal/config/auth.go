package config

import (
	"fmt"
	"net/url"
	"time"
)

// BackendConfig points at the dashboard REST API the gateway fronts.
type BackendConfig struct {
	BaseURL *url.URL
}

func (c *BackendConfig) Validate() error {
	if c.BaseURL == nil {
		return fmt.Errorf("the backend base URL is not set")
	}
	return nil
}

type TokenEncryptionConfig struct {
	Enabled   bool
	SecretKey RedactedString
}

// AuthConfig tunes the token pipeline: how early tokens are refreshed, how
// long a cached token is trusted without consulting the persisted store and
// how the refresh credential cookie is named.
type AuthConfig struct {
	ExpiryBufferSeconds   int
	CacheFreshnessSeconds int
	RefreshCookieName     string
	DefaultRole           string
	TokenEncryption       TokenEncryptionConfig
}

func (c AuthConfig) ExpiryBuffer() time.Duration {
	return time.Duration(c.ExpiryBufferSeconds) * time.Second
}

func (c AuthConfig) CacheFreshness() time.Duration {
	return time.Duration(c.CacheFreshnessSeconds) * time.Second
}

func (c *AuthConfig) Validate() error {
	if c.ExpiryBufferSeconds <= 0 {
		return fmt.Errorf("the token expiry buffer must be positive, got %d", c.ExpiryBufferSeconds)
	}
	if c.CacheFreshnessSeconds <= 0 {
		return fmt.Errorf("the token cache freshness window must be positive, got %d", c.CacheFreshnessSeconds)
	}
	if c.RefreshCookieName == "" {
		return fmt.Errorf("the refresh credential cookie name is not set")
	}
	if c.TokenEncryption.Enabled && len(c.TokenEncryption.SecretKey) != 32 {
		return fmt.Errorf(
			"token encryption key has to be 32 bytes long, the provided one is %d long",
			len(c.TokenEncryption.SecretKey),
		)
	}
	return nil
}
