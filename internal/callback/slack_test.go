package callback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_PostsToConfiguredURL(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	require.NoError(t, n.Notify(context.Background(), "a human_review job needs attention"))
	assert.Equal(t, 1, hits)
}

func TestWebhookNotifier_ErrorsOnNonOKResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	assert.Error(t, n.Notify(context.Background(), "a human_review job needs attention"))
}
