package keychain

import (
	"crypto/ecdh"
	"encoding/json"
	"time"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/record"
)

// Secrets is a decrypted get_secret response.
type Secrets struct {
	Records   []*Record
	AppData   *AppData
	ExpiresOn time.Time
	Warnings  []string
}

// AppData describes the application the device is bound to.
type AppData struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Record is a decrypted record.
type Record struct {
	UID            string
	Key            []byte
	FolderUID      string
	FolderKey      []byte
	InnerFolderUID string
	Revision       int64
	IsEditable     bool
	Data           *record.Data
	Files          []*File
}

// File is a file attachment with decrypted metadata. Content stays remote
// until downloaded.
type File struct {
	UID          string
	Key          []byte
	Meta         FileMeta
	URL          string
	ThumbnailURL string
}

// FileMeta is the decrypted file metadata.
type FileMeta struct {
	Title        string `json:"title"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"lastModified"`
}

// UnwrapAppKey decrypts the encrypted app key of a binding response with
// the one-time client key.
func UnwrapAppKey(encryptedAppKey string, clientKey []byte) ([]byte, error) {
	key, err := open(encryptedAppKey, clientKey)
	if err != nil {
		return nil, decryptionError(ContextAppKey, "", err)
	}
	return key, nil
}

// Decrypt decrypts every folder, record and file entry of resp.
func Decrypt(resp *api.SecretsResponse, appKey []byte) (*Secrets, error) {
	out := &Secrets{Warnings: resp.Warnings}
	if resp.ExpiresOn > 0 {
		out.ExpiresOn = time.UnixMilli(resp.ExpiresOn)
	}
	if resp.AppData != "" {
		plain, err := open(resp.AppData, appKey)
		if err != nil {
			return nil, decryptionError(ContextAppData, "", err)
		}
		var data AppData
		if err := json.Unmarshal(plain, &data); err != nil {
			return nil, decryptionError(ContextAppData, "", err)
		}
		out.AppData = &data
	}

	folderKeys := make(map[string][]byte, len(resp.Folders))
	for _, f := range resp.Folders {
		folderKey, err := open(f.FolderKey, appKey)
		if err != nil {
			return nil, decryptionError(ContextFolderKey, f.FolderUID, err)
		}
		folderKeys[f.FolderUID] = folderKey

		for _, r := range f.Records {
			rec, err := decryptRecord(r, folderKey)
			if err != nil {
				return nil, err
			}
			rec.FolderUID = f.FolderUID
			rec.FolderKey = folderKey
			out.Records = append(out.Records, rec)
		}
	}

	for _, r := range resp.Records {
		key := appKey
		folderKey, ok := folderKeys[r.FolderUID]
		inResponse := r.FolderUID != "" && ok
		if inResponse {
			key = folderKey
		}
		rec, err := decryptRecord(r, key)
		if err != nil {
			return nil, err
		}
		if inResponse {
			rec.FolderKey = folderKey
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func decryptRecord(r api.RecordPayload, wrappingKey []byte) (*Record, error) {
	recordKey, err := open(r.RecordKey, wrappingKey)
	if err != nil {
		return nil, decryptionError(ContextRecordKey, r.RecordUID, err)
	}
	plain, err := open(r.Data, recordKey)
	if err != nil {
		return nil, decryptionError(ContextRecordData, r.RecordUID, err)
	}
	var data record.Data
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, decryptionError(ContextRecordData, r.RecordUID, err)
	}

	rec := &Record{
		UID:            r.RecordUID,
		Key:            recordKey,
		FolderUID:      r.FolderUID,
		InnerFolderUID: r.InnerFolderUID,
		Revision:       r.Revision,
		IsEditable:     r.IsEditable,
		Data:           &data,
	}
	for _, f := range r.Files {
		file, err := decryptFile(f, recordKey)
		if err != nil {
			return nil, err
		}
		rec.Files = append(rec.Files, file)
	}
	return rec, nil
}

func decryptFile(f api.FilePayload, recordKey []byte) (*File, error) {
	fileKey, err := open(f.FileKey, recordKey)
	if err != nil {
		return nil, decryptionError(ContextFileKey, f.FileUID, err)
	}
	plain, err := open(f.Data, fileKey)
	if err != nil {
		return nil, decryptionError(ContextFileData, f.FileUID, err)
	}
	file := &File{UID: f.FileUID, Key: fileKey, URL: f.URL, ThumbnailURL: f.ThumbnailURL}
	if err := json.Unmarshal(plain, &file.Meta); err != nil {
		return nil, decryptionError(ContextFileData, f.FileUID, err)
	}
	return file, nil
}

// DecryptFileContent decrypts a downloaded file or thumbnail blob.
func DecryptFileContent(f *File, blob []byte) ([]byte, error) {
	plain, err := crypto.DecryptAES(f.Key, blob)
	if err != nil {
		return nil, decryptionError(ContextFileData, f.UID, err)
	}
	return plain, nil
}

// open decodes a base64 value and decrypts it with key.
func open(encoded string, key []byte) ([]byte, error) {
	ct, err := crypto.DecodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	return crypto.DecryptAES(key, ct)
}

// Seal encrypts plain with key and returns standard base64.
func Seal(plain, key []byte) (string, error) {
	ct, err := crypto.EncryptAES(key, plain)
	if err != nil {
		return "", err
	}
	return crypto.ToBase64(ct), nil
}

// SealForOwner wraps a new record or file key to the app owner's public
// key and returns standard base64.
func SealForOwner(key []byte, owner *ecdh.PublicKey) (string, error) {
	ct, err := crypto.PublicEncrypt(key, owner)
	if err != nil {
		return "", err
	}
	return crypto.ToBase64(ct), nil
}

// SealJSON marshals v and seals it with key.
func SealJSON(v any, key []byte) (string, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Seal(plain, key)
}
