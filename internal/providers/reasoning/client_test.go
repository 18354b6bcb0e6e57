package reasoning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verihire/internal/providers"
)

func TestCompleteReturnsFirstChoice(t *testing.T) {
	var got completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"score\":80}"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "asi1-mini", time.Second, nil)
	content, err := c.Complete(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, `{"score":80}`, content)
	assert.Equal(t, "asi1-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
}

func TestCompleteFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   providers.Category
	}{
		{"server error", 500, `oops`, providers.CategoryOutage},
		{"rate limited", 429, ``, providers.CategoryOutage},
		{"unauthorized", 401, `bad key`, providers.CategoryRejected},
		{"not json", 200, `<html>`, providers.CategoryBadData},
		{"no choices", 200, `{"choices":[]}`, providers.CategoryBadData},
		{"blank content", 200, `{"choices":[{"message":{"content":"  "}}]}`, providers.CategoryBadData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "key", "m", time.Second, nil).Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.Equal(t, tt.want, providers.CategoryOf(err))
		})
	}
}

func TestCompleteUnconfiguredAndTimeout(t *testing.T) {
	_, err := NewClient("http://example.invalid", "", "m", time.Second, nil).Complete(context.Background(), "s", "u")
	assert.Equal(t, providers.CategoryNotConfigured, providers.CategoryOf(err))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()
	_, err = NewClient(srv.URL, "key", "m", 20*time.Millisecond, nil).Complete(context.Background(), "s", "u")
	assert.Equal(t, providers.CategoryTimeout, providers.CategoryOf(err))
}
