// Package testvault is an in-process fake of the secrets manager service
// for tests. It speaks the real transmission-key protocol: requests are
// unwrapped with the fake's own server keys, signatures are checked against
// the device key sent at binding time, and responses are encrypted with
// the request's transmission key.
package testvault

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/record"
)

// Hostname is the host used by the in-process transport.
const Hostname = "vault.test"

// Folder is a shared folder held by the fake.
type Folder struct {
	UID       string
	ParentUID string
	Name      string
	Key       []byte
}

// Record is a record held by the fake, in plaintext.
type Record struct {
	UID       string
	FolderUID string
	Key       []byte
	Revision  int64
	Data      *record.Data
	Files     []*File
}

// File is a file attachment held by the fake, in plaintext.
type File struct {
	UID       string
	Key       []byte
	Title     string
	Name      string
	Type      string
	Content   []byte
	Thumbnail []byte
}

type device struct {
	clientKey []byte
	publicKey *ecdsa.PublicKey
	bound     bool
}

type injected struct {
	status int
	body   string
}

// Vault is the fake service.
type Vault struct {
	mu         sync.Mutex
	serverKeys map[int]*ecdh.PrivateKey
	requireKey int
	baseURL    string
	appKey     []byte
	ownerKey   *ecdh.PrivateKey
	appTitle   string
	devices    map[string]*device
	folders    []*Folder
	records    []*Record
	uploads    map[string]*File
	owners     map[string]string
	flat       bool
	inject     map[string][]injected
	calls      map[string]int
	keyIDs     []int

	router chi.Router
}

// New creates a vault with server keys for ids 7 and 8 and an empty app.
func New() (*Vault, error) {
	appKey, err := crypto.GenerateAESKey()
	if err != nil {
		return nil, err
	}
	owner, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	v := &Vault{
		serverKeys: map[int]*ecdh.PrivateKey{},
		baseURL:    "https://" + Hostname,
		appKey:     appKey,
		ownerKey:   owner,
		appTitle:   "Test Application",
		devices:    map[string]*device{},
		uploads:    map[string]*File{},
		inject:     map[string][]injected{},
		calls:      map[string]int{},
	}
	for _, id := range []int{7, 8} {
		if err := v.AddServerKey(id); err != nil {
			return nil, err
		}
	}
	v.router = v.routes()
	return v, nil
}

// AddServerKey generates a server key pair for id.
func (v *Vault) AddServerKey(id int) error {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.serverKeys[id] = priv
	return nil
}

// ServerKeys returns the public half of every server key, for the client
// key table.
func (v *Vault) ServerKeys() map[int][]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[int][]byte, len(v.serverKeys))
	for id, priv := range v.serverKeys {
		out[id] = priv.PublicKey().Bytes()
	}
	return out
}

// RequireKeyID makes the vault answer every request wrapped with a
// different key id with a "key" error naming id. Zero accepts any key.
func (v *Vault) RequireKeyID(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requireKey = id
}

// NewToken registers a one-time token for region and returns it in
// REGION:KEY form. The region is used verbatim, so a host works too.
func (v *Vault) NewToken(region string) (string, error) {
	clientKey, err := crypto.GenerateAESKey()
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.devices[crypto.ClientID(clientKey)] = &device{clientKey: clientKey}
	return region + ":" + crypto.ToBase64URL(clientKey), nil
}

// SetFlatFolderRecords lists folder records in the top-level record list
// with their folderUid set, instead of nesting them under the folder.
func (v *Vault) SetFlatFolderRecords(flat bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flat = flat
}

// InjectError makes the next request to path fail with status and body.
// Calls queue up in order.
func (v *Vault) InjectError(path string, status int, body string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inject[path] = append(v.inject[path], injected{status: status, body: body})
}

// AddFolder adds a shared folder, or a subfolder when parentUID is set.
func (v *Vault) AddFolder(uid, parentUID, name string) (*Folder, error) {
	key, err := crypto.GenerateAESKey()
	if err != nil {
		return nil, err
	}
	f := &Folder{UID: uid, ParentUID: parentUID, Name: name, Key: key}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.folders = append(v.folders, f)
	return f, nil
}

// AddRecord adds a record, inside folderUID when it is not empty.
func (v *Vault) AddRecord(uid, folderUID string, data *record.Data) (*Record, error) {
	key, err := crypto.GenerateAESKey()
	if err != nil {
		return nil, err
	}
	r := &Record{UID: uid, FolderUID: folderUID, Key: key, Revision: 1, Data: data}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.records = append(v.records, r)
	return r, nil
}

// AddFile attaches a file to a record.
func (v *Vault) AddFile(recordUID, uid, title, name string, content, thumbnail []byte) (*File, error) {
	key, err := crypto.GenerateAESKey()
	if err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	r := v.record(recordUID)
	if r == nil {
		return nil, fmt.Errorf("testvault: no record %s", recordUID)
	}
	f := &File{UID: uid, Key: key, Title: title, Name: name, Type: "application/octet-stream", Content: content, Thumbnail: thumbnail}
	r.Files = append(r.Files, f)
	return f, nil
}

// Record returns the stored record with uid, or nil.
func (v *Vault) Record(uid string) *Record {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.record(uid)
}

func (v *Vault) record(uid string) *Record {
	for _, r := range v.records {
		if r.UID == uid {
			return r
		}
	}
	return nil
}

// Calls returns how many requests reached path.
func (v *Vault) Calls(path string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[path]
}

// KeyIDs returns the server key id of every request, in order.
func (v *Vault) KeyIDs() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int(nil), v.keyIDs...)
}

// Bound reports whether the device with clientID has received the app key.
func (v *Vault) Bound(clientID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	d := v.devices[clientID]
	return d != nil && d.bound
}

// Handler returns the vault's HTTP handler.
func (v *Vault) Handler() http.Handler {
	return v.router
}

// Start serves the vault over TLS. Clients must use the returned server's
// Client() and its listener address as hostname.
func (v *Vault) Start() *httptest.Server {
	srv := httptest.NewTLSServer(v.router)
	v.mu.Lock()
	v.baseURL = srv.URL
	v.mu.Unlock()
	return srv
}
