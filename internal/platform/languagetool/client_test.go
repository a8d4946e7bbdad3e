package languagetool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/evaluator/internal/config"
	"github.com/phrazzld/evaluator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, serverURL string, apiKey string) *Client {
	t.Helper()
	c, err := NewClient(config.GrammarConfig{
		URL:            serverURL,
		APIKey:         apiKey,
		TimeoutSeconds: 5,
	}, nil, testLogger())
	require.NoError(t, err)
	return c
}

func TestClientCheck(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotForm = map[string]string{
			"text":     r.PostForm.Get("text"),
			"language": r.PostForm.Get("language"),
			"apiKey":   r.PostForm.Get("apiKey"),
		}
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"matches":[
			{"message":"Possible spelling mistake found.","offset":5,"length":4,"rule":{"id":"MORFOLOGIK_RULE_EN_US"}},
			{"message":"Use a comma.","shortMessage":"Comma","offset":12,"length":1}
		]}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL, "secret")
	matches, err := c.Check(context.Background(), "This sentnce is fine", "")

	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Possible spelling mistake found.", matches[0].Message)
	require.NotNil(t, matches[0].Rule)
	assert.Equal(t, "MORFOLOGIK_RULE_EN_US", matches[0].Rule.ID)
	assert.Equal(t, "Comma", matches[1].ShortMessage)
	assert.Equal(t, "This sentnce is fine", gotForm["text"])
	assert.Equal(t, domain.DefaultLanguage, gotForm["language"])
	assert.Equal(t, "secret", gotForm["apiKey"])
}

func TestClientCheckNoMatches(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(server.Close)

	c := newTestClient(t, server.URL, "")
	matches, err := c.Check(context.Background(), "Fine.", "de-DE")

	require.NoError(t, err)
	assert.NotNil(t, matches)
	assert.Empty(t, matches)
}

func TestClientCheckFailures(t *testing.T) {
	t.Parallel()

	t.Run("non-2xx is a dependency error", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		t.Cleanup(server.Close)

		_, err := newTestClient(t, server.URL, "").Check(context.Background(), "x", "")

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDependencyUnavailable))
		assert.ErrorIs(t, err, ErrUnexpectedStatus)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("unreachable is a dependency error", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := newTestClient(t, url, "").Check(context.Background(), "x", "")

		var depErr *domain.DependencyError
		require.ErrorAs(t, err, &depErr)
		assert.Equal(t, ServiceName, depErr.Service)
	})

	t.Run("malformed body is a dependency error", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"matches":`))
		}))
		t.Cleanup(server.Close)

		_, err := newTestClient(t, server.URL, "").Check(context.Background(), "x", "")
		assert.ErrorIs(t, err, domain.ErrDependencyUnavailable)
	})
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	_, err := NewClient(config.GrammarConfig{}, nil, testLogger())
	assert.Error(t, err)

	_, err = NewClient(config.GrammarConfig{URL: "https://api.languagetool.org/v2/check"}, nil, nil)
	assert.Error(t, err)

	c, err := NewClient(config.GrammarConfig{URL: "https://api.languagetool.org/v2/check", RequestsPerSecond: 2}, nil, testLogger())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLanguage, c.defaultLanguage)
}
