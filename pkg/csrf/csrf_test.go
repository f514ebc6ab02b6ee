package csrf_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kfchess/identity/pkg/csrf"
	"github.com/kfchess/identity/pkg/logger"
	"github.com/kfchess/identity/pkg/session"
)

func TestGenerate(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{}, 500)
	for range 500 {
		tok, err := csrf.Generate()
		require.NoError(t, err)
		require.Regexp(t, `^[A-Z0-9]{24}$`, tok)
		assert.True(t, csrf.WellFormed(tok))
		seen[tok] = struct{}{}
	}
	assert.Len(t, seen, 500)
}

func TestEqual(t *testing.T) {
	t.Parallel()
	assert.True(t, csrf.Equal("ABC", "ABC"))
	assert.False(t, csrf.Equal("ABC", "ABD"))
	assert.False(t, csrf.Equal("ABC", ""))
	assert.False(t, csrf.Equal("", ""))
}

func TestWellFormed(t *testing.T) {
	t.Parallel()
	assert.False(t, csrf.WellFormed("abcdefghijklmnopqrstuvwx"))
	assert.False(t, csrf.WellFormed("SHORT"))
}

func withSession(r *http.Request, token string) *http.Request {
	s := &session.Session{Token: "t", ExpiresAt: time.Now().Add(time.Hour)}
	if token != "" {
		s.Set(csrf.SessionKey, token)
	}
	return r.WithContext(session.WithSession(r.Context(), s))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	enforced := csrf.Middleware(csrf.Config{Enforce: true}, logger.Discard())(ok)

	tests := []struct {
		name   string
		method string
		stored string
		header string
		want   int
	}{
		{name: "safe method skips check", method: http.MethodGet, want: http.StatusOK},
		{name: "matching header", method: http.MethodPost, stored: "TOKEN", header: "TOKEN", want: http.StatusOK},
		{name: "missing header", method: http.MethodPost, stored: "TOKEN", want: http.StatusForbidden},
		{name: "wrong header", method: http.MethodPost, stored: "TOKEN", header: "OTHER", want: http.StatusForbidden},
		{name: "no stored token", method: http.MethodPost, header: "TOKEN", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := withSession(httptest.NewRequest(tt.method, "/api/user/update", nil), tt.stored)
			if tt.header != "" {
				req.Header.Set(csrf.HeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			enforced.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusForbidden {
				assert.JSONEq(t, `{"success":false,"message":"Invalid CSRF token."}`, rec.Body.String())
			}
		})
	}

	t.Run("disabled enforcement", func(t *testing.T) {
		t.Parallel()
		h := csrf.Middleware(csrf.Config{Enforce: false}, logger.Discard())(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
