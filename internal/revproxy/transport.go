package revproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coursedesk/admin-gateway/internal/authflow"
	"github.com/coursedesk/admin-gateway/internal/models"
)

// maxClassifiableBody bounds how much of a 401 body is read for
// classification. Backend error bodies are tiny, anything bigger is not
// one of them.
const maxClassifiableBody = 1 << 20

type tokenCache interface {
	Get(ctx context.Context, tokenID string) (models.AuthToken, error)
	Put(ctx context.Context, token models.AuthToken) error
}

type tokenRecoverer interface {
	Recover(ctx context.Context, tokenID string) (models.AuthToken, error)
}

type logoutCoordinator interface {
	Logout(ctx context.Context, session models.Session, host string) string
}

// RetryingTransport wraps the proxy transport with the reactive half of
// the token pipeline: when the backend rejects a request with a
// token-class 401 it recovers a new access token and resends the
// request exactly once. A request that fails again after recovery, or
// whose token cannot be recovered, tears the session down and the
// browser is pointed at the sign-in page.
type RetryingTransport struct {
	base       http.RoundTripper
	tokenCache tokenCache
	recoverer  tokenRecoverer
	logout     logoutCoordinator
}

type RetryingTransportOption func(*RetryingTransport) error

func WithBaseTransport(base http.RoundTripper) RetryingTransportOption {
	return func(t *RetryingTransport) error {
		t.base = base
		return nil
	}
}

func TransportWithTokenCache(cache tokenCache) RetryingTransportOption {
	return func(t *RetryingTransport) error {
		t.tokenCache = cache
		return nil
	}
}

func TransportWithRecoverer(recoverer tokenRecoverer) RetryingTransportOption {
	return func(t *RetryingTransport) error {
		t.recoverer = recoverer
		return nil
	}
}

func TransportWithLogout(logout logoutCoordinator) RetryingTransportOption {
	return func(t *RetryingTransport) error {
		t.logout = logout
		return nil
	}
}

func NewRetryingTransport(options ...RetryingTransportOption) (*RetryingTransport, error) {
	transport := RetryingTransport{base: http.DefaultTransport}
	for _, opt := range options {
		err := opt(&transport)
		if err != nil {
			return nil, err
		}
	}
	if t := transport; t.tokenCache == nil || t.recoverer == nil || t.logout == nil {
		return nil, fmt.Errorf("the retrying transport needs a token cache, a recoverer and a logout coordinator")
	}
	return &transport, nil
}

func (t *RetryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	state := authStateFromContext(ctx)
	if state == nil {
		// not an authenticated proxied request, nothing to recover
		return t.base.RoundTrip(req)
	}

	// make the body replayable before the first attempt, afterwards it
	// is too late
	if err := bufferRequestBody(req); err != nil {
		return nil, err
	}

	res, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	failure, res, err := classify(res)
	if err != nil {
		return nil, err
	}
	if failure == authflow.FailureNone {
		return res, nil
	}
	res.Body.Close()
	slog.Info(
		"PROXY RETRY",
		"message", "backend rejected the access token",
		"failure", failure.String(),
		"tokenID", state.session.TokenID,
		"path", req.URL.Path,
	)

	token, recoverErr := t.recoverer.Recover(ctx, state.session.TokenID)
	if recoverErr != nil {
		return t.terminal(ctx, req, state, recoverErr)
	}
	if putErr := t.tokenCache.Put(ctx, token); putErr != nil {
		slog.Info("PROXY RETRY", "message", "storing the recovered token failed", "tokenID", token.ID, "error", putErr)
	}

	retryReq := req.Clone(ctx)
	if req.GetBody != nil {
		body, bodyErr := req.GetBody()
		if bodyErr != nil {
			return nil, bodyErr
		}
		retryReq.Body = body
	}
	retryReq.Header.Set("Authorization", "Bearer "+token.Value)
	res, err = t.base.RoundTrip(retryReq)
	if err != nil {
		return nil, err
	}
	failure, res, err = classify(res)
	if err != nil {
		return nil, err
	}
	if failure == authflow.FailureNone {
		return res, nil
	}
	// the recovered token was rejected too, the session is beyond saving
	res.Body.Close()
	return t.terminal(ctx, req, state, fmt.Errorf("the backend rejected a freshly recovered token: %s", failure))
}

// terminal tears the session down and synthesizes the response that
// points the browser at the sign-in page.
func (t *RetryingTransport) terminal(ctx context.Context, req *http.Request, state *authState, cause error) (*http.Response, error) {
	slog.Info(
		"PROXY RETRY",
		"message", "recovery exhausted, tearing the session down",
		"sessionID", state.session.ID,
		"tokenID", state.session.TokenID,
		"error", cause,
	)
	state.tornDown = true
	signinURL := t.logout.Logout(ctx, state.session, state.host)
	return synthesizeSigninResponse(req, signinURL)
}

func synthesizeSigninResponse(req *http.Request, signinURL string) (*http.Response, error) {
	if wantsHTML(req) {
		res := newSyntheticResponse(req, http.StatusSeeOther, nil)
		res.Header.Set("Location", signinURL)
		return res, nil
	}
	payload, err := json.Marshal(map[string]string{
		"error":    "Unauthorized",
		"redirect": signinURL,
	})
	if err != nil {
		return nil, err
	}
	res := newSyntheticResponse(req, http.StatusUnauthorized, payload)
	res.Header.Set("Content-Type", "application/json")
	return res, nil
}

func newSyntheticResponse(req *http.Request, statusCode int, body []byte) *http.Response {
	return &http.Response{
		StatusCode:    statusCode,
		Status:        fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Proto:         req.Proto,
		ProtoMajor:    req.ProtoMajor,
		ProtoMinor:    req.ProtoMinor,
		Header:        http.Header{},
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// classify reads as much of the response body as classification needs
// and hands back a response whose body can still be read in full.
func classify(res *http.Response) (authflow.AuthFailure, *http.Response, error) {
	if res.StatusCode != http.StatusUnauthorized {
		return authflow.FailureNone, res, nil
	}
	body, err := io.ReadAll(io.LimitReader(res.Body, maxClassifiableBody))
	if err != nil {
		res.Body.Close()
		return authflow.FailureNone, nil, err
	}
	rest, err := io.ReadAll(res.Body)
	if err != nil {
		res.Body.Close()
		return authflow.FailureNone, nil, err
	}
	res.Body.Close()
	full := append(body, rest...)
	res.Body = io.NopCloser(bytes.NewReader(full))
	return authflow.ClassifyResponse(res.StatusCode, body), res, nil
}

func bufferRequestBody(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	payload, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.Body = io.NopCloser(bytes.NewReader(payload))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(payload)), nil
	}
	req.ContentLength = int64(len(payload))
	req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	return nil
}
