// Package redirects maps the host a request arrived on to the sign-in
// page the browser should land on after logout or an unrecoverable
// authentication failure. The admin dashboard is served from a separate
// host than the LMS that owns the login form, so the mapping cannot be
// derived from the request alone.
package redirects

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/coursedesk/admin-gateway/internal/config"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

type Resolver struct {
	hosts        *orderedmap.OrderedMap[string, string]
	fallbackPath string
}

type ResolverOption func(*Resolver) error

func WithSigninConfig(signinConfig config.SigninConfig) ResolverOption {
	return func(r *Resolver) error {
		if err := signinConfig.Validate(); err != nil {
			return err
		}
		hosts := orderedmap.New[string, string]()
		for _, pair := range signinConfig.Hosts {
			hosts.Set(strings.ToLower(pair.Host), pair.SigninHost)
		}
		r.hosts = hosts
		r.fallbackPath = signinConfig.FallbackPath
		return nil
	}
}

func NewResolver(options ...ResolverOption) (*Resolver, error) {
	r := Resolver{}
	for _, opt := range options {
		err := opt(&r)
		if err != nil {
			return nil, err
		}
	}
	if r.hosts == nil {
		return nil, fmt.Errorf("the signin host table is not initialized")
	}
	if r.fallbackPath == "" {
		r.fallbackPath = "/"
	}
	return &r, nil
}

// SigninURL returns the absolute URL of the sign-in page for the given
// request host. When the host is not in the table the relative fallback
// path is returned so the browser at least lands somewhere sensible on
// the current host.
func (r *Resolver) SigninURL(host string) string {
	host = strings.ToLower(host)
	// the cookie domain never carries a port but the Host header may
	if h, _, ok := strings.Cut(host, ":"); ok {
		if signinHost, found := r.hosts.Get(host); found {
			return signinURLFor(signinHost)
		}
		host = h
	}
	signinHost, found := r.hosts.Get(host)
	if !found {
		return r.fallbackPath
	}
	return signinURLFor(signinHost)
}

func signinURLFor(signinHost string) string {
	u := url.URL{Scheme: "https", Host: signinHost, Path: "/signin"}
	return u.String()
}
