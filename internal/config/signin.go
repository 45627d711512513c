package config

import "fmt"

// SigninHostPair maps a deployment host of the dashboard to the host that
// serves its sign-in page.
type SigninHostPair struct {
	Host       string
	SigninHost string
}

// SigninConfig holds the static host-to-host table used to pick where the
// browser is sent after a terminal authentication failure.
type SigninConfig struct {
	Hosts        []SigninHostPair
	FallbackPath string
}

func (c *SigninConfig) Validate() error {
	if c.FallbackPath == "" {
		return fmt.Errorf("the sign-in fallback path is not set")
	}
	for i, pair := range c.Hosts {
		if pair.Host == "" || pair.SigninHost == "" {
			return fmt.Errorf("sign-in host mapping %d is incomplete: %+v", i, pair)
		}
	}
	return nil
}
