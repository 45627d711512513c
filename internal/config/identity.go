package config

import "fmt"

// IdentityConfig describes the upstream identity provider whose tokens are
// exchanged with the backend for dashboard access tokens.
type IdentityConfig struct {
	Issuer            string
	ClientID          string
	ClientSecret      RedactedString
	Scopes            []string
	CallbackURI       string
	UsePKCE           bool
	CookieEncodingKey RedactedString
	CookieHashKey     RedactedString
	// NOTE: UnsafeNoCookieHandler should only be used for testing, in production this has to be false/unset
	// without this there is no CSRF protection on the oauth callback endpoint
	UnsafeNoCookieHandler bool
}

func (c *IdentityConfig) Validate(e RunningEnvironment) error {
	if c.Issuer == "" {
		return fmt.Errorf("the identity provider issuer is not set")
	}
	if c.ClientID == "" {
		return fmt.Errorf("the identity provider client ID is not set")
	}
	cookieEncKey := []byte(c.CookieEncodingKey)
	cookieHashKey := []byte(c.CookieHashKey)
	if len(cookieEncKey) > 0 && !(len(cookieEncKey) == 16 || len(cookieEncKey) == 32) {
		return fmt.Errorf(
			"invalid length for the oauth2 state cookie encryption key, got %d, but allowed sizes are 16 or 32",
			len(cookieEncKey),
		)
	}
	if len(cookieHashKey) > 0 && len(cookieHashKey) != 32 {
		return fmt.Errorf(
			"invalid length for the oauth2 state cookie hash key, got %d, allowed size is 32",
			len(cookieHashKey),
		)
	}
	if e != Development && c.UnsafeNoCookieHandler {
		return fmt.Errorf("the identity provider cannot be configured without a cookie handler in production")
	}
	return nil
}
