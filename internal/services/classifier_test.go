package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var s Sample
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&s))
		w.Header().Set("Content-Type", "application/json")
		if s.Text == "bad words here" {
			_, _ = w.Write([]byte(`{"safe":false,"category":"abuse","reason":"abusive language"}`))
			return
		}
		_, _ = w.Write([]byte(`{"safe":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, "secret")

	v, err := ClassifyFailOpen(context.Background(), c, Sample{Text: "lovely day"}, time.Second)
	require.NoError(t, err)
	assert.True(t, v.Safe)

	v, err = ClassifyFailOpen(context.Background(), c, Sample{Text: "bad words here"}, time.Second)
	require.NoError(t, err)
	assert.False(t, v.Safe)
	assert.Equal(t, "abuse", v.Category)
}

func TestClassifierTimeoutFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"safe":false}`))
	}))
	defer srv.Close()

	v, err := ClassifyFailOpen(context.Background(), NewHTTPClassifier(srv.URL, ""), Sample{Text: "hi"}, 50*time.Millisecond)
	assert.ErrorIs(t, err, ErrClassifierTimeout)
	assert.True(t, v.Safe)
}

func TestClassifierServerErrorFailsOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	v, err := ClassifyFailOpen(context.Background(), NewHTTPClassifier(srv.URL, ""), Sample{Text: "hi"}, time.Second)
	assert.Error(t, err)
	assert.True(t, v.Safe)
}

func TestKeywordFilter(t *testing.T) {
	kc := NewKeywordClassifier()

	tests := []struct {
		text   string
		reason string
	}{
		{"a quiet morning walk", ""},
		{"", ""},
		{"what the fuck", "inappropriate_language"},
		{"see https://example.org", "url_not_allowed"},
		{"mail me at someone@example.org", "contact_info_not_allowed"},
		{"call 555-123-4567", "contact_info_not_allowed"},
		{"noooooo way", "spam_detected"},
		{"HELLO THERE FRIEND", "excessive_caps"},
	}
	for _, tt := range tests {
		ok, reason := kc.Filter(tt.text)
		assert.Equal(t, tt.reason == "", ok, tt.text)
		assert.Equal(t, tt.reason, reason, tt.text)
	}
}

func TestKeywordClassifierVerdict(t *testing.T) {
	kc := NewKeywordClassifier()

	v, err := kc.Classify(context.Background(), Sample{Text: "buy porn here"})
	require.NoError(t, err)
	assert.False(t, v.Safe)
	assert.Equal(t, "inappropriate_language", v.Category)
	assert.Equal(t, RejectionMessage("inappropriate_language"), v.Reason)

	v, err = kc.Classify(context.Background(), Sample{ImageURL: "https://cdn.example.org/a.png"})
	require.NoError(t, err)
	assert.True(t, v.Safe)
}
