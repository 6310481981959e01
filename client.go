package secretsmanager

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/internal/keychain"
	"github.com/secretsmanager/client-go/record"
	"github.com/secretsmanager/client-go/storage"
)

// Client fetches and decrypts secrets shared with one application.
type Client struct {
	apiClient *api.Client
	storage   storage.KeyValueStorage
	logger    *zap.Logger

	// bindMu serializes requests made before the app key is stored, so
	// only one of them performs the binding.
	bindMu sync.Mutex
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(hostname string, cfg *clientConfig) (*api.Client, error) {
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}
	return api.NewClient(api.Config{
		Hostname:    hostname,
		Transport:   cfg.transport,
		HTTPClient:  httpClient,
		Fetch:       cfg.fetch,
		Upload:      cfg.upload,
		ServerKeys:  cfg.serverKeys,
		KeyIDs:      api.StorageKeyIDs(cfg.storage),
		MaxAttempts: cfg.maxAttempts,
		Logger:      cfg.logger,
	})
}

// New creates a client over the configured storage. When WithToken is
// given and storage is not yet initialized, the token is bound first.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:     defaultTimeout,
		maxAttempts: api.DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.storage == nil {
		return nil, &ConfigurationError{Message: "storage is required"}
	}

	if cfg.token != "" {
		if err := InitializeStorage(cfg.storage, cfg.token, cfg.hostname); err != nil {
			return nil, err
		}
	}

	hostname := cfg.hostname
	if hostname == "" {
		stored, err := storage.GetString(cfg.storage, storage.KeyHostname)
		if err != nil {
			return nil, err
		}
		hostname = stored
	}
	if hostname == "" {
		return nil, &ConfigurationError{Key: storage.KeyHostname, Message: "no hostname in storage"}
	}
	if id, err := storage.GetString(cfg.storage, storage.KeyClientID); err != nil {
		return nil, err
	} else if id == "" {
		return nil, &ConfigurationError{Key: storage.KeyClientID, Message: "storage is not initialized, bind a one-time token first"}
	}

	apiClient, err := buildAPIClient(hostname, cfg)
	if err != nil {
		return nil, err //coverage:ignore
	}
	return &Client{
		apiClient: apiClient,
		storage:   cfg.storage,
		logger:    cfg.logger,
	}, nil
}

// Hostname returns the service host the client talks to.
func (c *Client) Hostname() string {
	return c.apiClient.Hostname()
}

// identity loads the device key and client id.
func (c *Client) identity() (*ecdsa.PrivateKey, string, error) {
	clientID, err := storage.GetString(c.storage, storage.KeyClientID)
	if err != nil {
		return nil, "", err
	}
	if clientID == "" {
		return nil, "", &ConfigurationError{Key: storage.KeyClientID, Message: "missing"}
	}
	der, err := storage.GetBytes(c.storage, storage.KeyPrivateKey)
	if err != nil {
		return nil, "", err
	}
	if der == nil {
		return nil, "", &ConfigurationError{Key: storage.KeyPrivateKey, Message: "missing"}
	}
	priv, err := crypto.ParsePrivateKey(der)
	if err != nil {
		return nil, "", &ConfigurationError{Key: storage.KeyPrivateKey, Err: err}
	}
	return priv, clientID, nil
}

// appKey loads the bound application key; nil when not yet bound.
func (c *Client) appKey() ([]byte, error) {
	return storage.GetBytes(c.storage, storage.KeyAppKey)
}

// boundAppKey loads the application key and fails when storage is not bound.
func (c *Client) boundAppKey() ([]byte, error) {
	key, err := c.appKey()
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, &ConfigurationError{Key: storage.KeyAppKey, Err: ErrMissingAppKey}
	}
	return key, nil
}

// ownerKey loads the app owner's public key saved at binding. New record
// and file keys are wrapped to it.
func (c *Client) ownerKey() (*ecdh.PublicKey, error) {
	raw, err := storage.GetBytes(c.storage, storage.KeyAppOwnerPublicKey)
	if err != nil {
		return nil, &ConfigurationError{Key: storage.KeyAppOwnerPublicKey, Err: err}
	}
	if raw == nil {
		return nil, &ConfigurationError{Key: storage.KeyAppOwnerPublicKey, Message: "missing, the application did not send an owner key at binding"}
	}
	pub, err := crypto.ParsePublicKey(raw)
	if err != nil {
		return nil, &ConfigurationError{Key: storage.KeyAppOwnerPublicKey, Err: err}
	}
	return pub, nil
}

// fetch performs one get_secret round trip and decrypts the result. It
// reports whether the response bound the device.
func (c *Client) fetch(ctx context.Context, uids []string) (*keychain.Secrets, bool, error) {
	appKey, err := c.appKey()
	if err != nil {
		return nil, false, err
	}
	if appKey == nil {
		c.bindMu.Lock()
		defer c.bindMu.Unlock()
		if appKey, err = c.appKey(); err != nil {
			return nil, false, err
		}
	}

	priv, clientID, err := c.identity()
	if err != nil {
		return nil, false, err
	}
	payload := &api.GetPayload{Context: api.NewContext(clientID), RequestedRecords: uids}
	if appKey == nil {
		if payload.PublicKey, err = storage.GetString(c.storage, storage.KeyPublicKey); err != nil {
			return nil, false, err
		}
	}

	resp, err := c.apiClient.GetSecrets(ctx, payload, priv)
	if err != nil {
		return nil, false, err
	}

	justBound := false
	if resp.EncryptedAppKey != "" {
		if appKey, err = c.bind(resp); err != nil {
			return nil, false, err
		}
		justBound = true
	} else if appKey == nil {
		return nil, false, &ConfigurationError{Key: storage.KeyAppKey, Err: ErrMissingAppKey}
	}

	secrets, err := keychain.Decrypt(resp, appKey)
	if err != nil {
		return nil, false, err
	}
	for _, w := range secrets.Warnings {
		c.logger.Warn("server warning", zap.String("warning", w))
	}
	return secrets, justBound, nil
}

// bind stores the app key from a binding response and drops the one-time
// client key and the public key.
func (c *Client) bind(resp *api.SecretsResponse) ([]byte, error) {
	clientKey, err := storage.GetBytes(c.storage, storage.KeyClientKey)
	if err != nil {
		return nil, err
	}
	if clientKey == nil {
		return nil, &ConfigurationError{Key: storage.KeyClientKey, Message: "binding response received but the one-time client key is gone"}
	}
	appKey, err := keychain.UnwrapAppKey(resp.EncryptedAppKey, clientKey)
	if err != nil {
		return nil, err
	}

	if err := storage.SetBytes(c.storage, storage.KeyAppKey, appKey); err != nil {
		return nil, err
	}
	if err := c.storage.Delete(storage.KeyClientKey); err != nil {
		return nil, err
	}
	if err := c.storage.Delete(storage.KeyPublicKey); err != nil {
		return nil, err
	}
	if resp.AppOwnerPublicKey != "" {
		if err := c.storage.Set(storage.KeyAppOwnerPublicKey, resp.AppOwnerPublicKey); err != nil {
			return nil, err
		}
	}
	c.logger.Info("device bound to application")
	return appKey, nil
}

// GetSecrets fetches and decrypts the records shared with the application,
// or only those with the given UIDs.
//
// The first fetch binds the device. Right after binding the records are
// fetched once more and any error from that second request is logged and
// ignored in favor of the first result.
func (c *Client) GetSecrets(ctx context.Context, uids ...string) (*Secrets, error) {
	secrets, justBound, err := c.fetch(ctx, uids)
	if err != nil {
		return nil, wrapError(err)
	}
	if justBound {
		again, _, err := c.fetch(ctx, uids)
		if err != nil {
			c.logger.Warn("fetch after binding failed, using binding response", zap.Error(err))
		} else {
			secrets = again
		}
	}
	return newSecrets(secrets), nil
}

// UpdateSecret saves rec.Data. On success rec.Revision is advanced to
// match the server.
func (c *Client) UpdateSecret(ctx context.Context, rec *Record) error {
	priv, clientID, err := c.identity()
	if err != nil {
		return err
	}
	data, err := keychain.SealJSON(rec.Data, rec.key)
	if err != nil {
		return fmt.Errorf("encrypt record %s: %w", rec.UID, err)
	}
	payload := &api.UpdatePayload{
		Context:   api.NewContext(clientID),
		RecordUID: rec.UID,
		Data:      data,
		Revision:  rec.Revision,
	}
	if err := c.apiClient.UpdateSecret(ctx, payload, priv); err != nil {
		return wrapError(err)
	}
	rec.Revision++
	return nil
}

// CreateSecret creates a record in a shared folder and returns its UID.
func (c *Client) CreateSecret(ctx context.Context, folderUID string, data *record.Data) (string, error) {
	folders, err := c.GetFolders(ctx)
	if err != nil {
		return "", err
	}
	var folder *Folder
	for _, f := range folders {
		if f.UID == folderUID {
			folder = f
			break
		}
	}
	if folder == nil {
		return "", fmt.Errorf("%w: %s", ErrFolderNotFound, folderUID)
	}

	if _, err := c.boundAppKey(); err != nil {
		return "", err
	}
	owner, err := c.ownerKey()
	if err != nil {
		return "", err
	}
	priv, clientID, err := c.identity()
	if err != nil {
		return "", err
	}

	recordKey, err := crypto.GenerateAESKey()
	if err != nil {
		return "", err //coverage:ignore
	}
	payload := &api.CreatePayload{
		Context:   api.NewContext(clientID),
		RecordUID: NewUID(),
		FolderUID: folder.UID,
	}
	if payload.RecordKey, err = keychain.SealForOwner(recordKey, owner); err != nil {
		return "", err //coverage:ignore
	}
	if payload.FolderKey, err = keychain.Seal(recordKey, folder.key); err != nil {
		return "", err //coverage:ignore
	}
	if payload.Data, err = keychain.SealJSON(data, recordKey); err != nil {
		return "", fmt.Errorf("encrypt record: %w", err)
	}

	if err := c.apiClient.CreateSecret(ctx, payload, priv); err != nil {
		return "", wrapError(err)
	}
	return payload.RecordUID, nil
}

// DeleteSecrets deletes records and returns the per-record outcome.
func (c *Client) DeleteSecrets(ctx context.Context, uids []string) ([]DeleteResult, error) {
	if len(uids) == 0 {
		return nil, errors.New("no record UIDs to delete")
	}
	priv, clientID, err := c.identity()
	if err != nil {
		return nil, err
	}
	resp, err := c.apiClient.DeleteSecrets(ctx, &api.DeletePayload{Context: api.NewContext(clientID), RecordUIDs: uids}, priv)
	if err != nil {
		return nil, wrapError(err)
	}
	results := make([]DeleteResult, 0, len(resp.Records))
	for _, r := range resp.Records {
		results = append(results, DeleteResult{RecordUID: r.RecordUID, ResponseCode: r.ResponseCode, ErrorMessage: r.ErrorMessage})
	}
	return results, nil
}

// GetFolders returns the shared folders and subfolders visible to the
// application.
func (c *Client) GetFolders(ctx context.Context) ([]*Folder, error) {
	appKey, err := c.boundAppKey()
	if err != nil {
		return nil, err
	}
	priv, clientID, err := c.identity()
	if err != nil {
		return nil, err
	}
	ctxPayload := api.NewContext(clientID)
	resp, err := c.apiClient.GetFolders(ctx, &ctxPayload, priv)
	if err != nil {
		return nil, wrapError(err)
	}
	decrypted, err := keychain.DecryptFolders(resp, appKey)
	if err != nil {
		return nil, wrapError(err)
	}
	folders := make([]*Folder, 0, len(decrypted))
	for _, f := range decrypted {
		folders = append(folders, &Folder{UID: f.UID, ParentUID: f.ParentUID, Name: f.Name, key: f.Key})
	}
	return folders, nil
}

// NewUID returns a random record or file UID: 16 random bytes in URL-safe
// base64 without padding.
func NewUID() string {
	id := uuid.New()
	return crypto.ToBase64URL(id[:])
}

// cloneData deep-copies record data through its JSON form.
func cloneData(d *record.Data) (*record.Data, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var out record.Data
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
