package identity

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coursedesk/admin-gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/zitadel/oidc/v2/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v2/pkg/http"
	"github.com/zitadel/oidc/v2/pkg/oidc"
	"golang.org/x/oauth2"
	"gopkg.in/square/go-jose.v2"
)

type mockRelyingParty struct {
	isPKCE   bool
	tokenURL string
}

func (m mockRelyingParty) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		Endpoint: oauth2.Endpoint{TokenURL: m.tokenURL},
	}
}

func (m mockRelyingParty) Issuer() string {
	return ""
}

func (m mockRelyingParty) IsPKCE() bool {
	return m.isPKCE
}

func (mockRelyingParty) CookieHandler() *httphelper.CookieHandler {
	return nil
}

func (mockRelyingParty) HttpClient() *http.Client {
	return http.DefaultClient
}

func (mockRelyingParty) IsOAuth2Only() bool {
	return true
}

func (mockRelyingParty) Signer() jose.Signer {
	return nil
}

func (mockRelyingParty) GetEndSessionEndpoint() string {
	return ""
}

func (mockRelyingParty) GetRevokeEndpoint() string {
	return ""
}

func (mockRelyingParty) UserinfoEndpoint() string {
	return ""
}

func (mockRelyingParty) GetDeviceAuthorizationEndpoint() string {
	return ""
}

func (mockRelyingParty) IDTokenVerifier() rp.IDTokenVerifier {
	return nil
}

func (mockRelyingParty) ErrorHandler() func(http.ResponseWriter, *http.Request, string, string, string) {
	return func(http.ResponseWriter, *http.Request, string, string, string) {}
}

func newMockRelyingParty(tokenURL string) rp.RelyingParty {
	return mockRelyingParty{isPKCE: true, tokenURL: tokenURL}
}

type TestTokenCallbackScenario struct {
	Name      string
	Error     error
	IDToken   string
	State     string
	ExpiresIn int
	Now       time.Time
}

func TestTokenCallback(t *testing.T) {
	testCases := []TestTokenCallbackScenario{
		{
			Name:      "regular",
			IDToken:   "idToken",
			State:     "state",
			ExpiresIn: 50,
			Now:       time.Now(),
		},
		{
			Name:  "error",
			Error: fmt.Errorf("some error"),
		},
	}

	parametrizedTest := func(testCase TestTokenCallbackScenario) func(*testing.T) {
		return func(t *testing.T) {
			client := Client{
				client:      newMockRelyingParty("https://token.url"),
				idGenerator: models.ULIDGenerator{},
			}
			tokens := oidc.Tokens[*oidc.IDTokenClaims]{
				Token:         &oauth2.Token{},
				IDTokenClaims: &oidc.IDTokenClaims{},
				IDToken:       testCase.IDToken,
			}
			tokenCallback := func(identityToken models.AuthToken, state string) error {
				if testCase.Error != nil {
					return testCase.Error
				}
				assert.Equal(t, testCase.IDToken, identityToken.Value)
				assert.Equal(t, models.IdentityTokenType, identityToken.Type)
				assert.NotEmpty(t, identityToken.ID)
				assert.Equal(t, testCase.State, state)
				return nil
			}
			codeExchangeCallback := client.getCodeExchangeCallback(tokenCallback)
			rec := httptest.NewRecorder()
			codeExchangeCallback(rec, httptest.NewRequest("GET", "/", nil), &tokens, testCase.State, client.client)
			if testCase.Error != nil {
				assert.Equal(t, http.StatusInternalServerError, rec.Result().StatusCode)
			} else {
				assert.Equal(t, http.StatusOK, rec.Result().StatusCode)
			}
		}
	}

	for _, testCase := range testCases {
		t.Run(testCase.Name, parametrizedTest(testCase))
	}
}
