// Package gwerrors contains all common errors used by the gateway.
package gwerrors

import "fmt"

var ErrSessionParse = fmt.Errorf("cannot parse session from context")
var ErrSessionNotFound = fmt.Errorf("cannot find the session")
var ErrSessionExpired = fmt.Errorf("the session is expired")
var ErrTokenNotFound = fmt.Errorf("the token cannot be found")
var ErrTokenExpired = fmt.Errorf("the token is expired")
var ErrTokenParse = fmt.Errorf("the token cannot be decoded")
var ErrUnauthenticated = fmt.Errorf("no credentials are available to authenticate with")
var ErrBackendAuth = fmt.Errorf("the backend refused to issue an access token")
var ErrAuthExpired = fmt.Errorf("authentication expired and could not be refreshed")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
