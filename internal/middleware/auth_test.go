package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessToken(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := AccessToken([]string{"alpha", "bravo"}, "/v1/open")(ok)

	cases := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid first", "/v1/history", "Bearer alpha", http.StatusOK},
		{"valid second", "/v1/history", "Bearer bravo", http.StatusOK},
		{"missing header", "/v1/history", "", http.StatusUnauthorized},
		{"empty bearer", "/v1/history", "Bearer ", http.StatusUnauthorized},
		{"wrong token", "/v1/history", "Bearer charlie", http.StatusUnauthorized},
		{"open path", "/v1/open", "", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestAccessToken_Disabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	rec := httptest.NewRecorder()
	AccessToken(nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
