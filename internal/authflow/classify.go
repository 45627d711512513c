// Package authflow decides what to do when the backend rejects a
// request: which rejections are authentication failures, in what order
// to attempt recovery and how to tear a session down when recovery is
// no longer possible.
package authflow

import (
	"encoding/json"
	"net/http"
	"strings"
)

// AuthFailure classifies a backend response for the token pipeline.
type AuthFailure int

const (
	// FailureNone means the response is not an authentication failure.
	FailureNone AuthFailure = iota
	// FailureTokenExpired means the access token was valid but past its
	// expiry. Always worth a refresh attempt.
	FailureTokenExpired
	// FailureTokenInvalid means the token was rejected outright, e.g. a
	// bad signature. A refresh attempt may still yield a good token.
	FailureTokenInvalid
	// FailureUnauthorized is the backend's generic bearer rejection, the
	// "Unauthorized" error string.
	FailureUnauthorized
)

func (f AuthFailure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureTokenExpired:
		return "tokenExpired"
	case FailureTokenInvalid:
		return "tokenInvalid"
	case FailureUnauthorized:
		return "unauthorized"
	}
	return "unknown"
}

// errorBody is the shape of the backend's error responses. The backend
// is not consistent about which field carries the detail, so all three
// are checked.
type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClassifyResponse inspects a backend response status and body and
// returns the kind of authentication failure it represents. Anything
// other than a 401 is never treated as an authentication failure here,
// 403s mean the user lacks a permission and refreshing will not help.
// A 401 whose body matches none of the known token rejections belongs
// to the business endpoint that produced it and is passed through
// untouched.
func ClassifyResponse(statusCode int, body []byte) AuthFailure {
	if statusCode != http.StatusUnauthorized {
		return FailureNone
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return FailureNone
	}
	if parsed.Code == "TOKEN_EXPIRED" {
		return FailureTokenExpired
	}
	if strings.Contains(parsed.Message, "jwt expired") {
		return FailureTokenExpired
	}
	if strings.Contains(parsed.Error, "Token expired") {
		return FailureTokenExpired
	}
	if strings.Contains(parsed.Error, "Invalid token") {
		return FailureTokenInvalid
	}
	if strings.Contains(parsed.Error, "Unauthorized") {
		return FailureUnauthorized
	}
	return FailureNone
}
