package keychain

import "fmt"

// Decryption steps reported in DecryptionError.Context.
const (
	ContextAppKey     = "app key"
	ContextAppData    = "app data"
	ContextFolderKey  = "folder key"
	ContextFolderData = "folder data"
	ContextRecordKey  = "record key"
	ContextRecordData = "record data"
	ContextFileKey    = "file key"
	ContextFileData   = "file data"
)

// DecryptionError reports which key or payload failed to decrypt or parse.
type DecryptionError struct {
	Context string
	UID     string
	Err     error
}

func (e *DecryptionError) Error() string {
	if e.UID == "" {
		return fmt.Sprintf("decrypt %s: %v", e.Context, e.Err)
	}
	return fmt.Sprintf("decrypt %s %s: %v", e.Context, e.UID, e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

func decryptionError(context, uid string, err error) error {
	return &DecryptionError{Context: context, UID: uid, Err: err}
}
