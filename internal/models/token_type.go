package models

type TokenType string

const AccessTokenType TokenType = "AccessToken"
const RefreshTokenType TokenType = "RefreshToken"
const IdentityTokenType TokenType = "IdentityToken"

func (t TokenType) MarshalText() (data []byte, err error) {
	return []byte(t), nil
}

func (t TokenType) MarshalBinary() (data []byte, err error) {
	return []byte(t), nil
}

func (t *TokenType) UnmarshalText(data []byte) error {
	*t = TokenType(string(data))
	return nil
}

func (t *TokenType) UnmarshalBinary(data []byte) error {
	*t = TokenType(string(data))
	return nil
}
