package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultTokenValidity = 24 * time.Hour
	defaultTokenReissue  = 10 * 24 * time.Hour
	maxResponseBytes     = 1 << 20
	maxDetailsLen        = 512
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	TokenValidity time.Duration
	TokenReissue  time.Duration
	// HTTPClient overrides the default client; its Timeout is left as is.
	HTTPClient *http.Client
}

// Client talks to the shipping provider. It logs in on demand, reuses tokens,
// and retries an operation exactly once after the provider rejects a token.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	cache    *TokenCache
	store    TokenStore
	log      *zap.Logger
	validity time.Duration
	reissue  time.Duration
	nowFunc  func() time.Time
}

// NewClient returns a Client. store may be nil, in which case tokens live only in memory.
func NewClient(cfg Config, store TokenStore, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: base url %q", ErrInvalidRequest, cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	validity := cfg.TokenValidity
	if validity <= 0 {
		validity = defaultTokenValidity
	}
	reissue := cfg.TokenReissue
	if reissue <= 0 {
		reissue = defaultTokenReissue
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		baseURL:  base,
		http:     httpClient,
		cache:    NewTokenCache(),
		store:    store,
		log:      log.Named("shipping"),
		validity: validity,
		reissue:  reissue,
		nowFunc:  time.Now,
	}, nil
}

// EnsureValidToken returns a usable bearer token for acct, logging in only when
// neither the persisted token nor the cache holds an unexpired one.
func (c *Client) EnsureValidToken(ctx context.Context, acct Account) (string, error) {
	creds := acct.Credentials
	if !creds.Complete() {
		return "", &AuthenticationError{Message: "credentials missing", Err: ErrCredentialsMissing}
	}
	key := creds.cacheKey()
	now := c.nowFunc()

	if p := acct.Token; p != nil && p.Value != "" && now.Before(p.ExpiresAt) && !c.cache.Rejected(key, p.Value) {
		if cached, ok := c.cache.Get(key, now); !ok || cached.Value != p.Value {
			c.cache.Set(key, Token{Value: p.Value, ExpiresAt: p.ExpiresAt})
		}
		return p.Value, nil
	}

	if cached, ok := c.cache.Get(key, now); ok {
		return cached.Value, nil
	}

	return c.Authenticate(ctx, creds)
}

// Authenticate logs in, caches the token and writes it back to the token store.
// A failed write-back is logged and does not fail the login.
func (c *Client) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if !creds.Complete() {
		return "", &AuthenticationError{Message: "credentials missing", Err: ErrCredentialsMissing}
	}

	body, err := json.Marshal(loginRequest{Email: creds.Email, Password: creds.Password})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	resp := c.send(ctx, http.MethodPost, "/auth/login", nil, body, "")
	if resp.err != nil {
		return "", &AuthenticationError{Message: resp.err.Error(), Err: resp.err}
	}

	var login loginResponse
	decodeErr := json.Unmarshal(resp.body, &login)
	if resp.status < 200 || resp.status > 299 {
		msg := login.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.status)
		}
		return "", &AuthenticationError{StatusCode: resp.status, Message: msg}
	}
	if decodeErr != nil || login.Token == "" {
		return "", &AuthenticationError{StatusCode: resp.status, Message: "login response carried no token"}
	}

	now := c.nowFunc()
	c.cache.Set(creds.cacheKey(), Token{Value: login.Token, ExpiresAt: now.Add(c.validity)})
	c.log.Info("shipping login succeeded", zap.Bool("test_mode", creds.TestMode))

	if c.store != nil {
		persisted := PersistedToken{
			Value:     login.Token,
			ExpiresAt: now.Add(c.validity),
			ReissueAt: now.Add(c.reissue),
		}
		if err := c.store.SaveToken(ctx, persisted); err != nil {
			c.log.Warn("persist shipping token failed", zap.Error(err))
		}
	}
	return login.Token, nil
}

// RefreshIfDue logs in again when the persisted token is missing, expired, or
// past its reissue time. It reports whether a login happened.
func (c *Client) RefreshIfDue(ctx context.Context, acct Account) (bool, error) {
	if !acct.Credentials.Complete() {
		return false, ErrCredentialsMissing
	}
	now := c.nowFunc()
	if p := acct.Token; p != nil && p.Value != "" && now.Before(p.ExpiresAt) && now.Before(p.ReissueAt) {
		return false, nil
	}
	if _, err := c.Authenticate(ctx, acct.Credentials); err != nil {
		return false, err
	}
	return true, nil
}

type response struct {
	status int
	body   []byte
	err    error
	kind   FailureKind // set only when err is non-nil
}

func (r response) unauthorized() bool {
	return r.err == nil && (r.status == http.StatusUnauthorized || r.status == http.StatusForbidden)
}

// withReauth runs attempt with token; if the provider rejects the token it
// calls reauth once and runs attempt exactly one more time.
func withReauth(
	ctx context.Context,
	token string,
	attempt func(ctx context.Context, token string) response,
	reauth func(ctx context.Context, rejected string) (string, error),
) (response, error) {
	resp := attempt(ctx, token)
	if !resp.unauthorized() {
		return resp, nil
	}
	fresh, err := reauth(ctx, token)
	if err != nil {
		return resp, err
	}
	return attempt(ctx, fresh), nil
}

// call performs one authenticated operation. The returned error is non-nil
// only when body cannot be encoded.
func (c *Client) call(ctx context.Context, acct Account, method, path string, query url.Values, body any) (*Result, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
	}

	token, err := c.EnsureValidToken(ctx, acct)
	if err != nil {
		return authFailure(err), nil
	}

	key := acct.Credentials.cacheKey()
	resp, err := withReauth(ctx, token,
		func(ctx context.Context, token string) response {
			return c.send(ctx, method, path, query, payload, token)
		},
		func(ctx context.Context, rejected string) (string, error) {
			c.cache.Invalidate(key, rejected)
			c.log.Warn("shipping token rejected, logging in again", zap.String("path", path))
			return c.Authenticate(ctx, acct.Credentials)
		},
	)
	if err != nil {
		return authFailure(err), nil
	}
	if resp.unauthorized() {
		c.cache.Invalidate(key, c.currentToken(key))
		return failure(KindAuthentication, resp.status, "provider rejected a freshly issued token", truncate(string(resp.body))), nil
	}
	return normalise(resp), nil
}

func (c *Client) currentToken(key string) string {
	t, _ := c.cache.Get(key, c.nowFunc())
	return t.Value
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, token string) response {
	u := c.baseURL.JoinPath(path)
	if strings.HasSuffix(path, "/") && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return response{err: err, kind: KindNetwork}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return response{err: err, kind: classifyTransport(err)}
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return response{status: res.StatusCode, err: err, kind: classifyTransport(err)}
	}
	return response{status: res.StatusCode, body: b}
}

func classifyTransport(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}

func authFailure(err error) *Result {
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		if authErr.Err != nil && authErr.StatusCode == 0 {
			if kind := classifyTransport(authErr.Err); kind == KindTimeout {
				return failure(KindTimeout, 0, authErr.Error(), "")
			}
		}
		return failure(KindAuthentication, authErr.StatusCode, authErr.Error(), "")
	}
	return failure(KindAuthentication, 0, err.Error(), "")
}

func normalise(resp response) *Result {
	if resp.err != nil {
		return failure(resp.kind, resp.status, resp.err.Error(), "")
	}

	if resp.status < 200 || resp.status > 299 {
		msg := http.StatusText(resp.status)
		var eb errorBody
		if json.Unmarshal(resp.body, &eb) == nil && eb.Message != "" {
			msg = eb.Message
		}
		return failure(KindHTTP, resp.status, msg, truncate(string(resp.body)))
	}

	trimmed := bytes.TrimSpace(resp.body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return failure(KindMalformedResponse, resp.status, "provider returned a body that is not JSON", truncate(string(resp.body)))
	}

	res := &Result{Success: true, StatusCode: resp.status, Data: json.RawMessage(trimmed)}
	if trimmed[0] == '{' {
		var env envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return failure(KindMalformedResponse, resp.status, "decode provider response: "+err.Error(), truncate(string(resp.body)))
		}
		if env.Response != nil && env.Response.Data != nil {
			env.merge(env.Response.Data)
		}
		res.OrderID = string(env.OrderID)
		res.ShipmentID = string(env.ShipmentID)
		res.AWBCode = string(env.AWBCode)
		res.CourierName = env.CourierName
	}
	return res
}

func (e *envelope) merge(inner *envelope) {
	if e.OrderID == "" {
		e.OrderID = inner.OrderID
	}
	if e.ShipmentID == "" {
		e.ShipmentID = inner.ShipmentID
	}
	if e.AWBCode == "" {
		e.AWBCode = inner.AWBCode
	}
	if e.CourierName == "" {
		e.CourierName = inner.CourierName
	}
}

// truncate cuts s to at most maxDetailsLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDetailsLen {
		return s
	}
	cut := maxDetailsLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
