package secretsmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/internal/keychain"
	"github.com/secretsmanager/client-go/record"
)

// FileUpload describes a file to attach to a record.
type FileUpload struct {
	// Name is the file name. Required.
	Name string
	// Title defaults to Name.
	Title string
	// Type is the MIME type. Guessed from the extension when empty.
	Type string
	Data []byte
}

// DownloadFile downloads and decrypts the content of f.
func (c *Client) DownloadFile(ctx context.Context, f *File) ([]byte, error) {
	if f.URL == "" {
		return nil, fmt.Errorf("%w: file %s has no download url", ErrFileNotFound, f.UID)
	}
	return c.download(ctx, f, f.URL)
}

// DownloadThumbnail downloads and decrypts the thumbnail of f.
func (c *Client) DownloadThumbnail(ctx context.Context, f *File) ([]byte, error) {
	if f.ThumbnailURL == "" {
		return nil, fmt.Errorf("%w: file %s has no thumbnail", ErrFileNotFound, f.UID)
	}
	return c.download(ctx, f, f.ThumbnailURL)
}

func (c *Client) download(ctx context.Context, f *File, url string) ([]byte, error) {
	blob, err := c.apiClient.Fetch(ctx, url)
	if err != nil {
		return nil, wrapError(err)
	}
	content, err := keychain.DecryptFileContent(&keychain.File{UID: f.UID, Key: f.key}, blob)
	if err != nil {
		return nil, wrapError(err)
	}
	return content, nil
}

// UploadFile encrypts upload and attaches it to rec. The file UID is added
// to the record's fileRef field in the same request, so rec.Data and
// rec.Revision are updated only once the upload has succeeded.
func (c *Client) UploadFile(ctx context.Context, rec *Record, upload *FileUpload) (string, error) {
	if upload.Name == "" {
		return "", errors.New("file name is required")
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

	meta := keychain.FileMeta{
		Title:        upload.Title,
		Name:         upload.Name,
		Type:         upload.Type,
		Size:         int64(len(upload.Data)),
		LastModified: time.Now().UnixMilli(),
	}
	if meta.Title == "" {
		meta.Title = meta.Name
	}
	if meta.Type == "" {
		meta.Type = mime.TypeByExtension(filepath.Ext(meta.Name))
	}
	if meta.Type == "" {
		meta.Type = "application/octet-stream"
	}

	fileUID := NewUID()
	fileKey, err := crypto.GenerateAESKey()
	if err != nil {
		return "", err //coverage:ignore
	}
	content, err := crypto.EncryptAES(fileKey, upload.Data)
	if err != nil {
		return "", err //coverage:ignore
	}

	data, err := cloneData(rec.Data)
	if err != nil {
		return "", fmt.Errorf("copy record %s: %w", rec.UID, err)
	}
	if refs := data.FieldsByType("fileRef"); len(refs) > 0 {
		refs[0].Value = append(refs[0].Value, record.Text(fileUID))
	} else {
		data.AddField(record.NewField("fileRef", "", record.Text(fileUID)))
	}

	payload := &api.FileUploadPayload{
		Context:             api.NewContext(clientID),
		FileRecordUID:       fileUID,
		OwnerRecordUID:      rec.UID,
		OwnerRecordRevision: rec.Revision,
		FileSize:            len(content),
	}
	if payload.FileRecordKey, err = keychain.SealForOwner(fileKey, owner); err != nil {
		return "", err //coverage:ignore
	}
	if payload.FileRecordData, err = keychain.SealJSON(meta, fileKey); err != nil {
		return "", err //coverage:ignore
	}
	if payload.OwnerRecordData, err = keychain.SealJSON(data, rec.key); err != nil {
		return "", fmt.Errorf("encrypt record %s: %w", rec.UID, err)
	}
	if payload.LinkKey, err = keychain.Seal(fileKey, rec.key); err != nil {
		return "", err //coverage:ignore
	}

	resp, err := c.apiClient.AddFile(ctx, payload, priv)
	if err != nil {
		return "", wrapError(err)
	}
	fields := map[string]string{}
	if resp.Parameters != "" {
		if err := json.Unmarshal([]byte(resp.Parameters), &fields); err != nil {
			return "", fmt.Errorf("%w: upload parameters: %v", api.ErrInvalidResponse, err)
		}
	}

	status, err := c.apiClient.Upload(ctx, resp.URL, fields, content)
	if err != nil {
		return "", wrapError(err)
	}
	want := resp.SuccessStatusCode
	if want == 0 {
		want = http.StatusOK
	}
	if status != want {
		return "", &RemoteError{StatusCode: status, Message: fmt.Sprintf("file upload expected status %d", want)}
	}

	rec.Data = data
	rec.Revision++
	rec.Files = append(rec.Files, &File{
		UID:          fileUID,
		Title:        meta.Title,
		Name:         meta.Name,
		Type:         meta.Type,
		Size:         meta.Size,
		LastModified: time.UnixMilli(meta.LastModified),
		key:          fileKey,
	})
	c.logger.Debug("file uploaded", zap.String("record", rec.UID), zap.String("file", fileUID))
	return fileUID, nil
}
