package api

import (
	"context"
	"crypto/ecdsa"
	"fmt"
)

// GetSecrets calls get_secret.
func (c *Client) GetSecrets(ctx context.Context, payload *GetPayload, priv *ecdsa.PrivateKey) (*SecretsResponse, error) {
	var result SecretsResponse
	if err := c.postJSON(ctx, PathGetSecret, payload, priv, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateSecret calls update_secret.
func (c *Client) UpdateSecret(ctx context.Context, payload *UpdatePayload, priv *ecdsa.PrivateKey) error {
	return c.postJSON(ctx, PathUpdateSecret, payload, priv, nil)
}

// CreateSecret calls create_secret.
func (c *Client) CreateSecret(ctx context.Context, payload *CreatePayload, priv *ecdsa.PrivateKey) error {
	return c.postJSON(ctx, PathCreateSecret, payload, priv, nil)
}

// DeleteSecrets calls delete_secret.
func (c *Client) DeleteSecrets(ctx context.Context, payload *DeletePayload, priv *ecdsa.PrivateKey) (*DeleteResponse, error) {
	var result DeleteResponse
	if err := c.postJSON(ctx, PathDeleteSecret, payload, priv, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetFolders calls get_folders.
func (c *Client) GetFolders(ctx context.Context, payload *Context, priv *ecdsa.PrivateKey) (*FoldersResponse, error) {
	var result FoldersResponse
	if err := c.postJSON(ctx, PathGetFolders, payload, priv, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AddFile calls add_file.
func (c *Client) AddFile(ctx context.Context, payload *FileUploadPayload, priv *ecdsa.PrivateKey) (*AddFileResponse, error) {
	var result AddFileResponse
	if err := c.postJSON(ctx, PathAddFile, payload, priv, &result); err != nil {
		return nil, err
	}
	if result.URL == "" {
		return nil, fmt.Errorf("%w: add_file returned no upload url", ErrInvalidResponse)
	}
	return &result, nil
}
