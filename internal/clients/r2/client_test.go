package r2

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Enabled(t *testing.T) {
	full := Config{Endpoint: "https://x", AccessKeyID: "a", SecretAccessKey: "s", Bucket: "b"}
	assert.True(t, full.Enabled())

	missing := full
	missing.Bucket = ""
	assert.False(t, missing.Enabled())

	_, err := NewR2Client(missing, zerolog.Nop())
	assert.Error(t, err)
}

func TestR2Client_Upload(t *testing.T) {
	var method, path, contentType, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		contentType = r.Header.Get("Content-Type")
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewR2Client(Config{
		Endpoint:        srv.URL,
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "summaries",
	}, zerolog.Nop())
	require.NoError(t, err)

	err = client.Upload(context.Background(), "daily/tail_risk_summary.csv", []byte("Ticker\n"), "text/csv")

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/summaries/daily/tail_risk_summary.csv", path)
	assert.Equal(t, "text/csv", contentType)
	assert.True(t, strings.HasPrefix(auth, "AWS4-HMAC-SHA256"), "requests are SigV4 signed")
}

func TestR2Client_UploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
	}))
	defer srv.Close()

	client, err := NewR2Client(Config{Endpoint: srv.URL, AccessKeyID: "k", SecretAccessKey: "s", Bucket: "b"}, zerolog.Nop())
	require.NoError(t, err)

	err = client.Upload(context.Background(), "x.csv", []byte("x"), "text/csv")

	assert.ErrorContains(t, err, "failed to upload x.csv")
}
