package pinning

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{SecretAPIKey: "s"})
	assert.Error(t, err)

	_, err = NewClient(Config{APIKey: "k"})
	assert.Error(t, err)

	client, err := NewClient(Config{APIKey: "k", SecretAPIKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, defaultBaseURL, client.baseURL)
}

func TestPinFile(t *testing.T) {
	var uploads atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		require.Equal(t, "k", r.Header.Get("pinata_api_key"))
		require.Equal(t, "s", r.Header.Get("pinata_secret_api_key"))
		uploads.Add(1)
		w.Write([]byte(`{"IpfsHash":"QmTestCid"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", SecretAPIKey: "s", BaseURL: srv.URL})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "row-2.png")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0600))

	cid, err := client.PinFile(context.Background(), path, "row-2.image", true)
	require.NoError(t, err)
	assert.Equal(t, "QmTestCid", cid)

	// Second cached pin of the same path must not hit the service.
	cid, err = client.PinFile(context.Background(), path, "row-2.image", true)
	require.NoError(t, err)
	assert.Equal(t, "QmTestCid", cid)
	assert.Equal(t, int64(1), uploads.Load())

	// Uncached pins always upload.
	_, err = client.PinFile(context.Background(), path, "row-2.meta", false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), uploads.Load())
}

func TestPinFile_MissingFile(t *testing.T) {
	client, err := NewClient(Config{APIKey: "k", SecretAPIKey: "s", BaseURL: "http://unused"})
	require.NoError(t, err)

	_, err = client.PinFile(context.Background(), filepath.Join(t.TempDir(), "nope.png"), "nope", false)
	assert.Error(t, err)
}

func TestPinJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/pinning/pinJSONToIPFS", r.URL.Path)
		w.Write([]byte(`{"IpfsHash":"QmMetaCid"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", SecretAPIKey: "s", BaseURL: srv.URL})
	require.NoError(t, err)

	cid, err := client.PinJSON(context.Background(), map[string]string{"name": "Item #1"}, "row-2.meta")
	require.NoError(t, err)
	assert.Equal(t, "QmMetaCid", cid)
}

func TestPin_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", SecretAPIKey: "s", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.PinJSON(context.Background(), map[string]string{}, "x")
	assert.ErrorContains(t, err, "status 401")
}
