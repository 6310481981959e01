package api

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/secretsmanager/client-go/internal/crypto"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
)

// Config holds API client configuration.
type Config struct {
	// Hostname is the service host, optionally with a port.
	Hostname string
	// Transport posts requests. Defaults to HTTPTransport(HTTPClient).
	Transport PostFunc
	// HTTPClient backs the default transport, fetcher and uploader.
	HTTPClient *http.Client
	// Fetch downloads file blobs. Defaults to HTTPFetcher(HTTPClient, Retry).
	Fetch FetchFunc
	// Upload posts file blobs. Defaults to HTTPUploader(HTTPClient).
	Upload UploadFunc
	// Retry configures file download retries.
	Retry *RetryConfig
	// ServerKeys maps key ids to uncompressed server public keys.
	// Defaults to DefaultServerKeys().
	ServerKeys map[int][]byte
	// KeyIDs persists the current server key id.
	KeyIDs KeyIDStore
	// MaxAttempts bounds the attempts per request, including key rotation
	// retries.
	MaxAttempts int
	Logger      *zap.Logger
}

// Client is the transmission-key protocol client.
type Client struct {
	hostname    string
	transport   PostFunc
	fetch       FetchFunc
	upload      UploadFunc
	serverKeys  map[int][]byte
	keyIDs      KeyIDStore
	maxAttempts int
	logger      *zap.Logger
}

// NewClient creates a new API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Hostname == "" {
		return nil, errors.New("hostname is required")
	}
	if cfg.KeyIDs == nil {
		return nil, errors.New("key id store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	c := &Client{
		hostname:    cfg.Hostname,
		transport:   cfg.Transport,
		fetch:       cfg.Fetch,
		upload:      cfg.Upload,
		serverKeys:  cfg.ServerKeys,
		keyIDs:      cfg.KeyIDs,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
	if c.transport == nil {
		c.transport = HTTPTransport(httpClient)
	}
	if c.fetch == nil {
		c.fetch = HTTPFetcher(httpClient, cfg.Retry)
	}
	if c.upload == nil {
		c.upload = HTTPUploader(httpClient)
	}
	if c.serverKeys == nil {
		c.serverKeys = DefaultServerKeys()
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// Hostname returns the configured service host.
func (c *Client) Hostname() string {
	return c.hostname
}

// URL returns the endpoint URL for path.
func (c *Client) URL(path string) string {
	return fmt.Sprintf("https://%s/api/rest/sm/v1/%s", c.hostname, path)
}

// PostQuery encrypts and signs payload, posts it to path and returns the
// decrypted response body. A 2xx response with an empty body returns nil.
//
// When the server answers with a "key" error the new key id is persisted
// and the request is rebuilt with the new key, up to MaxAttempts in total.
func (c *Client) PostQuery(ctx context.Context, path string, payload any, priv *ecdsa.PrivateKey) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", path, err) //coverage:ignore
	}
	url := c.URL(path)

	lastKeyID := 0
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		keyID, err := c.keyIDs.ServerKeyID()
		if err != nil {
			return nil, fmt.Errorf("load server key id: %w", err)
		}
		tk, err := GenerateTransmissionKey(c.serverKeys, keyID)
		if err != nil {
			return nil, err
		}
		encrypted, err := EncryptAndSign(tk, body, priv)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("posting request",
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Int("key_id", keyID))

		resp, err := c.transport(ctx, url, tk.Headers(encrypted), encrypted.Payload)
		if err != nil {
			return nil, &NetworkError{Err: err, URL: url, Attempt: attempt}
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if len(resp.Body) == 0 {
				return nil, nil
			}
			plain, err := crypto.DecryptAES(tk.Key, resp.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidResponse, path, err)
			}
			return plain, nil
		}

		remote := parseRemoteError(resp.StatusCode, resp.Body)
		if !remote.IsKeyError() {
			return nil, remote
		}
		c.logger.Info("server requested transmission key rotation",
			zap.String("path", path),
			zap.Int("old_key_id", keyID),
			zap.Int("new_key_id", remote.KeyID))
		if err := c.keyIDs.SetServerKeyID(remote.KeyID); err != nil {
			return nil, fmt.Errorf("store server key id: %w", err)
		}
		lastKeyID = remote.KeyID
	}
	return nil, &KeyRotationExhaustedError{Attempts: c.maxAttempts, LastKeyID: lastKeyID}
}

// postJSON posts payload and decodes the decrypted response into result.
func (c *Client) postJSON(ctx context.Context, path string, payload any, priv *ecdsa.PrivateKey, result any) error {
	plain, err := c.PostQuery(ctx, path, payload, priv)
	if err != nil {
		return err
	}
	if result == nil || len(plain) == 0 {
		return nil
	}
	if err := json.Unmarshal(plain, result); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrInvalidResponse, path, err)
	}
	return nil
}

// Fetch downloads a file blob.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.fetch(ctx, url)
}

// Upload posts a file blob as multipart form data.
func (c *Client) Upload(ctx context.Context, url string, fields map[string]string, content []byte) (int, error) {
	return c.upload(ctx, url, fields, content)
}
