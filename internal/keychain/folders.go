package keychain

import (
	"encoding/json"
	"fmt"

	"github.com/secretsmanager/client-go/internal/api"
)

// Folder is a decrypted shared folder or subfolder.
type Folder struct {
	UID       string
	ParentUID string
	Name      string
	Key       []byte
}

// DecryptFolders decrypts a get_folders response. Shared folder keys are
// wrapped by the app key, subfolder keys by their parent's key, so parents
// are resolved first regardless of response order.
func DecryptFolders(resp *api.FoldersResponse, appKey []byte) ([]*Folder, error) {
	resolved := make(map[string]*Folder, len(resp.Folders))
	out := make([]*Folder, 0, len(resp.Folders))

	pending := resp.Folders
	for len(pending) > 0 {
		var next []api.FolderInfoPayload
		for _, f := range pending {
			wrapping := appKey
			if f.Parent != "" {
				parent, ok := resolved[f.Parent]
				if !ok {
					next = append(next, f)
					continue
				}
				wrapping = parent.Key
			}
			folder, err := decryptFolder(f, wrapping)
			if err != nil {
				return nil, err
			}
			resolved[folder.UID] = folder
			out = append(out, folder)
		}
		if len(next) == len(pending) {
			return nil, decryptionError(ContextFolderKey, next[0].FolderUID,
				fmt.Errorf("parent folder %s not in response", next[0].Parent))
		}
		pending = next
	}
	return out, nil
}

func decryptFolder(f api.FolderInfoPayload, wrapping []byte) (*Folder, error) {
	key, err := open(f.FolderKey, wrapping)
	if err != nil {
		return nil, decryptionError(ContextFolderKey, f.FolderUID, err)
	}
	folder := &Folder{UID: f.FolderUID, ParentUID: f.Parent, Key: key}
	if f.Data == "" {
		return folder, nil
	}
	plain, err := open(f.Data, key)
	if err != nil {
		return nil, decryptionError(ContextFolderData, f.FolderUID, err)
	}
	var data struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, decryptionError(ContextFolderData, f.FolderUID, err)
	}
	folder.Name = data.Name
	return folder, nil
}
