package secretsmanager

import (
	"bytes"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/storage"
)

// Transport posts one protocol request. It receives the full endpoint URL,
// the protocol headers and the encrypted body.
type Transport = api.PostFunc

// TransportResponse is what a Transport returns.
type TransportResponse = api.Response

// FileFetcher downloads an encrypted file or thumbnail blob.
type FileFetcher = api.FetchFunc

// FileUploader posts an encrypted file blob as multipart form data and
// returns the HTTP status code.
type FileUploader = api.UploadFunc

const defaultTimeout = api.DefaultTimeout

// clientConfig holds configuration for the client.
type clientConfig struct {
	storage     storage.KeyValueStorage
	token       string
	hostname    string
	transport   Transport
	httpClient  *http.Client
	fetch       FileFetcher
	upload      FileUploader
	serverKeys  map[int][]byte
	logger      *zap.Logger
	maxAttempts int
	timeout     time.Duration
}

// Option configures the client.
type Option func(*clientConfig)

// WithStorage sets the configuration storage. Required.
func WithStorage(s storage.KeyValueStorage) Option {
	return func(c *clientConfig) {
		c.storage = s
	}
}

// WithToken binds storage with a one-time token if it is not bound yet.
// The token is REGION:KEY or a bare KEY together with WithHostname.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithHostname overrides the host derived from the token region. It also
// wins over the hostname already saved in storage; the saved value is left
// as it is.
func WithHostname(hostname string) Option {
	return func(c *clientConfig) {
		c.hostname = hostname
	}
}

// WithTransport replaces the HTTPS POST used for protocol requests.
func WithTransport(t Transport) Option {
	return func(c *clientConfig) {
		c.transport = t
	}
}

// WithHTTPClient sets a custom HTTP client for the default transport,
// file downloads and uploads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithFileFetcher replaces the HTTP GET used for file downloads.
func WithFileFetcher(f FileFetcher) Option {
	return func(c *clientConfig) {
		c.fetch = f
	}
}

// WithFileUploader replaces the multipart POST used for file uploads.
func WithFileUploader(u FileUploader) Option {
	return func(c *clientConfig) {
		c.upload = u
	}
}

// WithServerKeys replaces the pinned server public key table. Keys are
// uncompressed P-256 points indexed by key id. The table is copied.
func WithServerKeys(keys map[int][]byte) Option {
	var owned map[int][]byte
	if keys != nil {
		owned = make(map[int][]byte, len(keys))
	}
	for id, key := range keys {
		owned[id] = bytes.Clone(key)
	}
	return func(c *clientConfig) {
		c.serverKeys = owned
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithMaxKeyRotationAttempts bounds the attempts per request when the
// server asks for a different transmission key.
// Default: 3
func WithMaxKeyRotationAttempts(n int) Option {
	return func(c *clientConfig) {
		c.maxAttempts = n
	}
}

// WithTimeout sets the timeout of the default HTTP client.
// Default: 30 seconds
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}
