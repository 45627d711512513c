package models

import (
	"fmt"
	"time"
)

// AuthToken is a struct used to store and work with the credentials handled by the gateway
type AuthToken struct {
	ID        string
	Value     string
	ExpiresAt time.Time
	Type      TokenType
}

// Encrypt encrypts the value of the token if an encryptor is provided
func (t AuthToken) Encrypt(enc Encryptor) (AuthToken, error) {
	if enc == nil {
		return t, nil
	}
	encValue, err := enc.Encrypt(t.Value)
	if err != nil {
		return AuthToken{}, err
	}
	output := t
	output.Value = encValue
	return output, nil
}

// Decrypt decrypts the value of the token if an encryptor is provided
func (t AuthToken) Decrypt(enc Encryptor) (AuthToken, error) {
	if enc == nil {
		return t, nil
	}
	decValue, err := enc.Decrypt(t.Value)
	if err != nil {
		return AuthToken{}, err
	}
	output := t
	output.Value = decValue
	return output, nil
}

// String implements the Stringer interface for printing the token in logs
func (t AuthToken) String() string {
	return fmt.Sprintf(
		"%s<ID: %s, Value: redacted, ExpiresAt: %s>",
		t.Type,
		t.ID,
		t.ExpiresAt,
	)
}

// Expired returns true when the token's expiry is in the past. A token with
// a zero expiry is assumed to never expire.
func (t AuthToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !t.ExpiresAt.After(time.Now().UTC())
}

// ExpiresSoon returns true when the token's remaining validity is at or below
// the provided buffer.
func (t AuthToken) ExpiresSoon(buffer time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !t.ExpiresAt.After(time.Now().UTC().Add(buffer))
}
