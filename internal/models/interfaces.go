package models

import (
	"context"
)

type Encryptor interface {
	Encrypt(value string) (encrypted string, err error)
	Decrypt(value string) (decrypted string, err error)
}

type IDGenerator interface {
	ID() (string, error)
}

type AccessTokenGetter interface {
	GetAccessToken(ctx context.Context, tokenID string) (AuthToken, error)
}

type AccessTokenSetter interface {
	SetAccessToken(context.Context, AuthToken) error
}

type AccessTokenRemover interface {
	RemoveAccessToken(context.Context, string) error
}

type RefreshTokenGetter interface {
	GetRefreshToken(ctx context.Context, tokenID string) (AuthToken, error)
}

type RefreshTokenSetter interface {
	SetRefreshToken(context.Context, AuthToken) error
}

type RefreshTokenRemover interface {
	RemoveRefreshToken(context.Context, string) error
}

type IdentityTokenGetter interface {
	GetIdentityToken(ctx context.Context, tokenID string) (AuthToken, error)
}

type IdentityTokenSetter interface {
	SetIdentityToken(context.Context, AuthToken) error
}

type IdentityTokenRemover interface {
	RemoveIdentityToken(context.Context, string) error
}

// TokenRepository is the full set of token persistence operations the gateway needs.
type TokenRepository interface {
	AccessTokenGetter
	AccessTokenSetter
	AccessTokenRemover
	RefreshTokenGetter
	RefreshTokenSetter
	RefreshTokenRemover
	IdentityTokenGetter
	IdentityTokenSetter
	IdentityTokenRemover
}

type SessionGetter interface {
	GetSession(context.Context, string) (Session, error)
}

type SessionSetter interface {
	SetSession(context.Context, Session) error
}

type SessionRemover interface {
	RemoveSession(context.Context, string) error
}

type SessionRepository interface {
	SessionGetter
	SessionSetter
	SessionRemover
}
