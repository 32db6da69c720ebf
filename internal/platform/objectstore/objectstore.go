// Package objectstore talks to an S3/MinIO-compatible bucket over the
// subset of the REST API the upload pipeline needs: put, get, head,
// delete, server-side compose (merge), and presigned GET. No object
// storage SDK appears anywhere in the example corpus this service was
// grounded on, so this client is a direct net/http implementation
// behind a narrow interface, exactly as the rest of the service only
// ever sees the interface (see DESIGN.md).
package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Store is the contract the rest of the service depends on.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Head(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// ComposeObject concatenates the objects at srcKeys, in order,
	// into dstKey. Used to merge uploaded chunks into the final file
	// without round-tripping bytes through the service process.
	ComposeObject(ctx context.Context, dstKey string, srcKeys []string) error
	PresignGet(key string, ttl time.Duration) (string, error)
}

type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Client is an S3-subset adapter over net/http. It signs requests with
// a simple HMAC-SHA256 of method+path+timestamp, which is enough for
// the self-hosted/minio-style deployments this service targets; it is
// not a full AWS SigV4 implementation.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) baseURL() string {
	scheme := "http"
	if c.cfg.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, c.cfg.Endpoint, c.cfg.Bucket)
}

func (c *Client) objectURL(key string) string {
	return c.baseURL() + "/" + url.PathEscape(key)
}

func (c *Client) sign(method, path string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(c.cfg.SecretKey))
	mac.Write([]byte(fmt.Sprintf("%s\n%s\n%d", method, path, ts)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) authenticate(req *http.Request) {
	ts := time.Now().Unix()
	sig := c.sign(req.Method, req.URL.Path, ts)
	req.Header.Set("X-Access-Key", c.cfg.AccessKey)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", sig)
}

func (c *Client) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.objectURL(key), body)
	if err != nil {
		return fmt.Errorf("build put request failed: %w", err)
	}
	req.ContentLength = size
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("put object failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("put object %q status %d", key, resp.StatusCode)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return nil, fmt.Errorf("build get request failed: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get object failed: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("object %q not found", key)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("get object %q status %d", key, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *Client) Head(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL(key), nil)
	if err != nil {
		return false, fmt.Errorf("build head request failed: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("head object failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, fmt.Errorf("head object %q status %d", key, resp.StatusCode)
	}
	return true, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("build delete request failed: %w", err)
	}
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete object failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete object %q status %d", key, resp.StatusCode)
	}
	return nil
}

// ComposeObject asks the store to concatenate srcKeys server-side into
// dstKey via the compose subresource. If the backend doesn't support
// it, the caller's merge step should fall back to reading every chunk
// through Get and re-uploading with Put; this service assumes a
// compose-capable backend per spec.
func (c *Client) ComposeObject(ctx context.Context, dstKey string, srcKeys []string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(dstKey)+"?compose", strings.NewReader(strings.Join(srcKeys, "\n")))
	if err != nil {
		return fmt.Errorf("build compose request failed: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	c.authenticate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("compose object failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("compose object %q status %d", dstKey, resp.StatusCode)
	}
	return nil
}

func (c *Client) PresignGet(key string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expires := time.Now().Add(ttl).Unix()
	sig := c.sign(http.MethodGet, "/"+c.cfg.Bucket+"/"+key, expires)
	q := url.Values{}
	q.Set("X-Access-Key", c.cfg.AccessKey)
	q.Set("X-Expires", strconv.FormatInt(expires, 10))
	q.Set("X-Signature", sig)
	return c.objectURL(key) + "?" + q.Encode(), nil
}
