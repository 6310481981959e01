package api

// ClientVersion identifies this client to the service.
const ClientVersion = "mg17.0.0"

// Endpoint paths under /api/rest/sm/v1/.
const (
	PathGetSecret    = "get_secret"
	PathUpdateSecret = "update_secret"
	PathCreateSecret = "create_secret"
	PathDeleteSecret = "delete_secret"
	PathAddFile      = "add_file"
	PathGetFolders   = "get_folders"
)

// Context is the part common to every request payload.
type Context struct {
	ClientVersion string `json:"clientVersion"`
	ClientID      string `json:"clientId"`
}

// NewContext returns a Context for clientID.
func NewContext(clientID string) Context {
	return Context{ClientVersion: ClientVersion, ClientID: clientID}
}

// GetPayload is the get_secret request.
type GetPayload struct {
	Context
	// PublicKey is sent until the device is bound.
	PublicKey        string   `json:"publicKey,omitempty"`
	RequestedRecords []string `json:"requestedRecords,omitempty"`
}

// UpdatePayload is the update_secret request.
type UpdatePayload struct {
	Context
	RecordUID string `json:"recordUid"`
	Data      string `json:"data"`
	Revision  int64  `json:"revision"`
}

// CreatePayload is the create_secret request.
type CreatePayload struct {
	Context
	RecordUID string `json:"recordUid"`
	RecordKey string `json:"recordKey"`
	FolderUID string `json:"folderUid"`
	FolderKey string `json:"folderKey"`
	Data      string `json:"data"`
}

// DeletePayload is the delete_secret request.
type DeletePayload struct {
	Context
	RecordUIDs []string `json:"recordUids"`
}

// FileUploadPayload is the add_file request.
type FileUploadPayload struct {
	Context
	FileRecordUID       string `json:"fileRecordUid"`
	FileRecordKey       string `json:"fileRecordKey"`
	FileRecordData      string `json:"fileRecordData"`
	OwnerRecordUID      string `json:"ownerRecordUid"`
	OwnerRecordData     string `json:"ownerRecordData"`
	OwnerRecordRevision int64  `json:"ownerRecordRevision"`
	LinkKey             string `json:"linkKey"`
	FileSize            int    `json:"fileSize"`
}

// SecretsResponse is the decrypted get_secret response.
type SecretsResponse struct {
	EncryptedAppKey   string          `json:"encryptedAppKey,omitempty"`
	AppOwnerPublicKey string          `json:"appOwnerPublicKey,omitempty"`
	Folders           []FolderPayload `json:"folders"`
	Records           []RecordPayload `json:"records"`
	ExpiresOn         int64           `json:"expiresOn,omitempty"`
	Warnings          []string        `json:"warnings,omitempty"`
	AppData           string          `json:"appData,omitempty"`
}

// FolderPayload is a shared folder and the records inside it.
type FolderPayload struct {
	FolderUID string          `json:"folderUid"`
	FolderKey string          `json:"folderKey"`
	Records   []RecordPayload `json:"records"`
}

// RecordPayload is one encrypted record.
type RecordPayload struct {
	RecordUID      string        `json:"recordUid"`
	RecordKey      string        `json:"recordKey"`
	Data           string        `json:"data"`
	Revision       int64         `json:"revision"`
	IsEditable     bool          `json:"isEditable"`
	FolderUID      string        `json:"folderUid,omitempty"`
	InnerFolderUID string        `json:"innerFolderUid,omitempty"`
	Files          []FilePayload `json:"files,omitempty"`
}

// FilePayload is one encrypted file attached to a record.
type FilePayload struct {
	FileUID      string `json:"fileUid"`
	FileKey      string `json:"fileKey"`
	Data         string `json:"data"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// FoldersResponse is the decrypted get_folders response.
type FoldersResponse struct {
	Folders []FolderInfoPayload `json:"folders"`
}

// FolderInfoPayload describes one shared folder or subfolder. Shared
// folder keys are wrapped by the app key, subfolder keys by the parent
// folder key.
type FolderInfoPayload struct {
	FolderUID string `json:"folderUid"`
	FolderKey string `json:"folderKey"`
	Data      string `json:"data"`
	Parent    string `json:"parent,omitempty"`
}

// DeleteResponse is the decrypted delete_secret response.
type DeleteResponse struct {
	Records []DeleteStatus `json:"records"`
}

// DeleteStatus is the per-record outcome of a delete.
type DeleteStatus struct {
	RecordUID    string `json:"recordUid"`
	ResponseCode string `json:"responseCode"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// AddFileResponse tells the client where to upload the encrypted content.
type AddFileResponse struct {
	URL               string `json:"url"`
	Parameters        string `json:"parameters"`
	SuccessStatusCode int    `json:"successStatusCode"`
}
