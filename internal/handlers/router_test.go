package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealth(t *testing.T) {
	r := newTestRouter(&fakePlacer{}, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := newTestRouter(&fakePlacer{}, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodGet, "/health", "", map[string]string{"X-Request-ID": "req-42"})

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestAdminRoutesAbsentWithoutShippingHandler(t *testing.T) {
	r := newTestRouter(&fakePlacer{}, nil, nil, nil, RouterConfig{})

	w := doJSON(r, http.MethodGet, "/admin/shipping/settings", "", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS(t *testing.T) {
	r := newTestRouter(&fakePlacer{}, nil, nil, nil, RouterConfig{CORSAllowOrigins: []string{"https://shop.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
