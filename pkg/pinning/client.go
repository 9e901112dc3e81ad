// Package pinning uploads campaign media and metadata to an IPFS pinning
// service and returns the content ids embedded in on-chain metadata.
package pinning

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const defaultBaseURL = "https://api.pinata.cloud"

// Config carries the pinning-service credentials. They are normally loaded
// from the environment rather than the workflow file.
type Config struct {
	APIKey       string `yaml:"api-key"`
	SecretAPIKey string `yaml:"secret-api-key"`
	// BaseURL overrides the service endpoint, mainly for tests.
	BaseURL string `yaml:"base-url"`
}

// Client pins files and JSON documents. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	secret  string
	client  *http.Client
	cache   *contentCache
}

// NewClient validates credentials and builds a client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinning api key is not configured")
	}
	if cfg.SecretAPIKey == "" {
		return nil, errors.New("pinning secret api key is not configured")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		secret:  cfg.SecretAPIKey,
		client:  &http.Client{Timeout: 5 * time.Minute},
		cache:   newContentCache(),
	}, nil
}

// PinFile uploads the file at path under the given pin name and returns its
// content id. With useCache set, a path already pinned in this process is
// not re-uploaded; metadata pins must never use the cache since every item's
// metadata is unique.
func (c *Client) PinFile(ctx context.Context, path, name string, useCache bool) (string, error) {
	if useCache {
		if cid, ok := c.cache.get(path); ok {
			return cid, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for pinning", path)
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", errors.Wrap(err, "failed to build upload form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	meta, _ := json.Marshal(map[string]string{"name": name})
	if err := w.WriteField("pinataMetadata", string(meta)); err != nil {
		return "", errors.Wrap(err, "failed to attach pin metadata")
	}
	opts, _ := json.Marshal(map[string]int{"cidVersion": 0})
	if err := w.WriteField("pinataOptions", string(opts)); err != nil {
		return "", errors.Wrap(err, "failed to attach pin options")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "failed to finish upload form")
	}

	cid, err := c.post(ctx, "/pinning/pinFileToIPFS", w.FormDataContentType(), &body)
	if err != nil {
		return "", errors.Wrapf(err, "failed to pin %s", path)
	}
	if useCache {
		c.cache.set(path, cid)
	}
	return cid, nil
}

// PinJSON pins v as a JSON document and returns its content id.
func (c *Client) PinJSON(ctx context.Context, v any, name string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"pinataContent":  v,
		"pinataMetadata": map[string]string{"name": name},
		"pinataOptions":  map[string]int{"cidVersion": 0},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode JSON pin")
	}
	cid, err := c.post(ctx, "/pinning/pinJSONToIPFS", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrapf(err, "failed to pin JSON %s", name)
	}
	return cid, nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return "", errors.Wrap(err, "failed to create pin request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("pinata_api_key", c.apiKey)
	req.Header.Set("pinata_secret_api_key", c.secret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "pin request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read pin response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("pinning service returned status %d: %s", resp.StatusCode, data)
	}

	cid := gjson.GetBytes(data, "IpfsHash").String()
	if cid == "" {
		return "", errors.Errorf("pinning service returned no content id: %s", data)
	}
	return cid, nil
}
