// Package shippingtest runs an in-process fake of the shipping provider API.
package shippingtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Provider is a fake shipping provider. Login always succeeds unless
// FailLogin is set; operation routes answer with whatever was registered via Handle.
type Provider struct {
	server *httptest.Server

	mu        sync.Mutex
	failLogin int
	logins    int
	calls     map[string]int
	tokens    []string
	handlers  map[string]http.HandlerFunc
}

func NewProvider() *Provider {
	p := &Provider{
		calls:    make(map[string]int),
		handlers: make(map[string]http.HandlerFunc),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.serve))
	return p
}

// URL is the provider base URL.
func (p *Provider) URL() string { return p.server.URL }

func (p *Provider) Close() { p.server.Close() }

// FailLogin makes every login answer with status.
func (p *Provider) FailLogin(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failLogin = status
}

// Handle registers h for requests whose path is path (query excluded).
func (p *Provider) Handle(path string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[path] = h
}

// Logins is the number of login requests received.
func (p *Provider) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

// Calls is the number of requests received for path.
func (p *Provider) Calls(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[path]
}

// BearerTokens lists the bearer tokens seen on operation calls, in order.
func (p *Provider) BearerTokens() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.tokens...)
}

func (p *Provider) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/auth/login" {
		p.login(w, r)
		return
	}

	p.mu.Lock()
	p.calls[r.URL.Path]++
	p.tokens = append(p.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	h := p.handlers[r.URL.Path]
	p.mu.Unlock()

	if h == nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"message": "no route " + r.URL.Path})
		return
	}
	h(w, r)
}

func (p *Provider) login(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.logins++
	n, status := p.logins, p.failLogin
	p.mu.Unlock()

	if status != 0 {
		WriteJSON(w, status, map[string]any{"message": "Invalid email and password combination", "status_code": status})
		return
	}
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"message": "email and password required"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"token": fmt.Sprintf("token-%d", n), "email": body.Email})
}

// WriteJSON writes v as a JSON response with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Respond returns a handler that always answers with status and v.
func Respond(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, status, v)
	}
}

// OrderCreated answers like a successful ad-hoc order creation.
func OrderCreated(orderID, shipmentID int64) http.HandlerFunc {
	return Respond(http.StatusOK, map[string]any{
		"order_id":    orderID,
		"shipment_id": shipmentID,
		"status":      "NEW",
		"status_code": 1,
	})
}
