package testvault

import (
	"bytes"
	"crypto/ecdh"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/secretsmanager/client-go/internal/api"
	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/internal/keychain"
	"github.com/secretsmanager/client-go/record"
)

// routes builds the router:
//
//	POST /api/rest/sm/v1/{endpoint}  protocol endpoints
//	GET  /files/{uid}                encrypted file content
//	GET  /files/{uid}/thumbnail      encrypted thumbnail
//	POST /files/upload/{uid}         multipart upload target for add_file
func (v *Vault) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Route("/api/rest/sm/v1", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/octet-stream"))
		r.Post("/{endpoint}", v.handleProtocol)
	})
	r.Route("/files", func(r chi.Router) {
		r.Get("/{uid}", v.handleDownload(false))
		r.Get("/{uid}/thumbnail", v.handleDownload(true))
		r.Post("/upload/{uid}", v.handleUpload)
	})
	return r
}

// apiError is an error reply in the service's JSON shape.
type apiError struct {
	status int
	Code   string `json:"error"`
	Msg    string `json:"message,omitempty"`
	KeyID  int    `json:"key_id,omitempty"`
}

func fail(status int, code, format string, args ...any) *apiError {
	return &apiError{status: status, Code: code, Msg: fmt.Sprintf(format, args...)}
}

func writeError(w http.ResponseWriter, e *apiError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)
	_ = json.NewEncoder(w).Encode(e)
}

func (v *Vault) handleProtocol(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "endpoint")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, fail(http.StatusBadRequest, "bad_request", "read body: %v", err))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.calls[path]++
	keyID, _ := strconv.Atoi(r.Header.Get("PublicKeyId"))
	v.keyIDs = append(v.keyIDs, keyID)

	if queue := v.inject[path]; len(queue) > 0 {
		v.inject[path] = queue[1:]
		w.WriteHeader(queue[0].status)
		_, _ = io.WriteString(w, queue[0].body)
		return
	}
	if v.requireKey != 0 && keyID != v.requireKey {
		writeError(w, &apiError{status: http.StatusUnauthorized, Code: "key", KeyID: v.requireKey})
		return
	}

	tk, plain, apiErr := v.unwrapRequest(r, keyID, body)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}

	reply, apiErr := v.dispatch(path, plain)
	if apiErr != nil {
		writeError(w, apiErr)
		return
	}
	if len(reply) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}
	encrypted, err := crypto.EncryptAES(tk, reply)
	if err != nil {
		writeError(w, fail(http.StatusInternalServerError, "internal", "%v", err))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(encrypted)
}

// unwrapRequest recovers the transmission key, decrypts the payload and
// checks the device signature. Callers hold v.mu.
func (v *Vault) unwrapRequest(r *http.Request, keyID int, body []byte) ([]byte, []byte, *apiError) {
	priv, ok := v.serverKeys[keyID]
	if !ok {
		return nil, nil, fail(http.StatusBadRequest, "invalid_key_id", "unknown key id %d", keyID)
	}
	wrapped, err := crypto.FromBase64(r.Header.Get("TransmissionKey"))
	if err != nil {
		return nil, nil, fail(http.StatusBadRequest, "bad_request", "transmission key: %v", err)
	}
	tk, err := crypto.PrivateDecrypt(wrapped, priv)
	if err != nil {
		return nil, nil, fail(http.StatusBadRequest, "bad_request", "unwrap transmission key: %v", err)
	}
	plain, err := crypto.DecryptAES(tk, body)
	if err != nil {
		return nil, nil, fail(http.StatusBadRequest, "bad_request", "decrypt payload: %v", err)
	}

	var head struct {
		ClientID  string `json:"clientId"`
		PublicKey string `json:"publicKey"`
	}
	if err := json.Unmarshal(plain, &head); err != nil {
		return nil, nil, fail(http.StatusBadRequest, "bad_request", "payload: %v", err)
	}
	dev := v.devices[head.ClientID]
	if dev == nil {
		return nil, nil, fail(http.StatusForbidden, "access_denied", "unknown client id")
	}
	if dev.publicKey == nil {
		raw, err := crypto.DecodeBase64(head.PublicKey)
		if err != nil || head.PublicKey == "" {
			return nil, nil, fail(http.StatusForbidden, "access_denied", "device public key required on first request")
		}
		pub, err := crypto.ParseVerifyingKey(raw)
		if err != nil {
			return nil, nil, fail(http.StatusBadRequest, "bad_request", "public key: %v", err)
		}
		dev.publicKey = pub
	}

	sig, err := crypto.FromBase64(strings.TrimPrefix(r.Header.Get("Authorization"), "Signature "))
	if err != nil {
		return nil, nil, fail(http.StatusUnauthorized, "signature", "malformed signature")
	}
	signed := append(append([]byte{}, wrapped...), body...)
	if err := crypto.Verify(signed, sig, dev.publicKey); err != nil {
		return nil, nil, fail(http.StatusUnauthorized, "signature", "signature does not verify")
	}
	return tk, plain, nil
}

func (v *Vault) dispatch(path string, plain []byte) ([]byte, *apiError) {
	switch path {
	case api.PathGetSecret:
		var p api.GetPayload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fail(http.StatusBadRequest, "bad_request", "%v", err)
		}
		return v.getSecret(&p)
	case api.PathUpdateSecret:
		var p api.UpdatePayload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fail(http.StatusBadRequest, "bad_request", "%v", err)
		}
		return nil, v.updateSecret(&p)
	case api.PathCreateSecret:
		var p api.CreatePayload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fail(http.StatusBadRequest, "bad_request", "%v", err)
		}
		return nil, v.createSecret(&p)
	case api.PathDeleteSecret:
		var p api.DeletePayload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fail(http.StatusBadRequest, "bad_request", "%v", err)
		}
		return v.deleteSecret(&p)
	case api.PathGetFolders:
		return v.getFolders()
	case api.PathAddFile:
		var p api.FileUploadPayload
		if err := json.Unmarshal(plain, &p); err != nil {
			return nil, fail(http.StatusBadRequest, "bad_request", "%v", err)
		}
		return v.addFile(&p)
	}
	return nil, fail(http.StatusNotFound, "not_found", "unknown endpoint %s", path)
}

func (v *Vault) folder(uid string) *Folder {
	for _, f := range v.folders {
		if f.UID == uid {
			return f
		}
	}
	return nil
}

func (v *Vault) getSecret(p *api.GetPayload) ([]byte, *apiError) {
	dev := v.devices[p.ClientID]
	resp := api.SecretsResponse{Folders: []api.FolderPayload{}, Records: []api.RecordPayload{}}

	if !dev.bound {
		resp.EncryptedAppKey = mustSeal(v.appKey, dev.clientKey)
		resp.AppOwnerPublicKey = crypto.ToBase64(v.ownerKey.PublicKey().Bytes())
		dev.bound = true
	}
	resp.AppData = mustSealJSON(keychain.AppData{Title: v.appTitle, Type: "general"}, v.appKey)

	folderIdx := map[string]int{}
	for _, r := range v.records {
		if len(p.RequestedRecords) > 0 && !slices.Contains(p.RequestedRecords, r.UID) {
			continue
		}
		if r.FolderUID == "" {
			resp.Records = append(resp.Records, v.recordPayload(r, v.appKey))
			continue
		}
		f := v.folder(r.FolderUID)
		if f == nil {
			return nil, fail(http.StatusInternalServerError, "internal", "record %s in unknown folder", r.UID)
		}
		idx, ok := folderIdx[f.UID]
		if !ok {
			idx = len(resp.Folders)
			folderIdx[f.UID] = idx
			resp.Folders = append(resp.Folders, api.FolderPayload{
				FolderUID: f.UID,
				FolderKey: mustSeal(f.Key, v.appKey),
			})
		}
		rp := v.recordPayload(r, f.Key)
		if v.flat {
			rp.FolderUID = f.UID
			resp.Records = append(resp.Records, rp)
		} else {
			resp.Folders[idx].Records = append(resp.Folders[idx].Records, rp)
		}
	}
	return marshal(resp)
}

func (v *Vault) recordPayload(r *Record, wrapping []byte) api.RecordPayload {
	rp := api.RecordPayload{
		RecordUID:  r.UID,
		RecordKey:  mustSeal(r.Key, wrapping),
		Data:       mustSealJSON(r.Data, r.Key),
		Revision:   r.Revision,
		IsEditable: true,
	}
	for _, f := range r.Files {
		fp := api.FilePayload{
			FileUID: f.UID,
			FileKey: mustSeal(f.Key, r.Key),
			Data: mustSealJSON(keychain.FileMeta{
				Title: f.Title, Name: f.Name, Type: f.Type, Size: int64(len(f.Content)),
			}, f.Key),
			URL: v.baseURL + "/files/" + f.UID,
		}
		if f.Thumbnail != nil {
			fp.ThumbnailURL = fp.URL + "/thumbnail"
		}
		rp.Files = append(rp.Files, fp)
	}
	return rp
}

func (v *Vault) updateSecret(p *api.UpdatePayload) *apiError {
	r := v.record(p.RecordUID)
	if r == nil {
		return fail(http.StatusBadRequest, "record_not_found", "record %s not found", p.RecordUID)
	}
	if p.Revision != r.Revision {
		return fail(http.StatusBadRequest, "out_of_sync", "revision %d, current %d", p.Revision, r.Revision)
	}
	var data record.Data
	if err := openJSON(p.Data, r.Key, &data); err != nil {
		return fail(http.StatusBadRequest, "bad_request", "record data: %v", err)
	}
	r.Data = &data
	r.Revision++
	return nil
}

func (v *Vault) createSecret(p *api.CreatePayload) *apiError {
	f := v.folder(p.FolderUID)
	if f == nil {
		return fail(http.StatusBadRequest, "folder_not_found", "folder %s not found", p.FolderUID)
	}
	recordKey, err := openForOwner(p.RecordKey, v.ownerKey)
	if err != nil {
		return fail(http.StatusBadRequest, "bad_request", "record key: %v", err)
	}
	folderWrapped, err := open(p.FolderKey, f.Key)
	if err != nil || !bytes.Equal(folderWrapped, recordKey) {
		return fail(http.StatusBadRequest, "bad_request", "record key not wrapped by folder key")
	}
	var data record.Data
	if err := openJSON(p.Data, recordKey, &data); err != nil {
		return fail(http.StatusBadRequest, "bad_request", "record data: %v", err)
	}
	if v.record(p.RecordUID) != nil {
		return fail(http.StatusBadRequest, "record_exists", "record %s exists", p.RecordUID)
	}
	v.records = append(v.records, &Record{UID: p.RecordUID, FolderUID: f.UID, Key: recordKey, Revision: 1, Data: &data})
	return nil
}

func (v *Vault) deleteSecret(p *api.DeletePayload) ([]byte, *apiError) {
	resp := api.DeleteResponse{}
	for _, uid := range p.RecordUIDs {
		status := api.DeleteStatus{RecordUID: uid, ResponseCode: "ok"}
		idx := slices.IndexFunc(v.records, func(r *Record) bool { return r.UID == uid })
		if idx < 0 {
			status.ResponseCode = "not_found"
			status.ErrorMessage = "record not found"
		} else {
			v.records = slices.Delete(v.records, idx, idx+1)
		}
		resp.Records = append(resp.Records, status)
	}
	return marshal(resp)
}

func (v *Vault) getFolders() ([]byte, *apiError) {
	resp := api.FoldersResponse{Folders: []api.FolderInfoPayload{}}
	for _, f := range v.folders {
		wrapping := v.appKey
		if f.ParentUID != "" {
			parent := v.folder(f.ParentUID)
			if parent == nil {
				return nil, fail(http.StatusInternalServerError, "internal", "folder %s has unknown parent", f.UID)
			}
			wrapping = parent.Key
		}
		resp.Folders = append(resp.Folders, api.FolderInfoPayload{
			FolderUID: f.UID,
			FolderKey: mustSeal(f.Key, wrapping),
			Data:      mustSealJSON(map[string]string{"name": f.Name}, f.Key),
			Parent:    f.ParentUID,
		})
	}
	return marshal(resp)
}

func (v *Vault) addFile(p *api.FileUploadPayload) ([]byte, *apiError) {
	owner := v.record(p.OwnerRecordUID)
	if owner == nil {
		return nil, fail(http.StatusBadRequest, "record_not_found", "record %s not found", p.OwnerRecordUID)
	}
	if p.OwnerRecordRevision != owner.Revision {
		return nil, fail(http.StatusBadRequest, "out_of_sync", "revision %d, current %d", p.OwnerRecordRevision, owner.Revision)
	}
	fileKey, err := openForOwner(p.FileRecordKey, v.ownerKey)
	if err != nil {
		return nil, fail(http.StatusBadRequest, "bad_request", "file record key: %v", err)
	}
	linked, err := open(p.LinkKey, owner.Key)
	if err != nil || !bytes.Equal(linked, fileKey) {
		return nil, fail(http.StatusBadRequest, "bad_request", "link key not wrapped by owner record key")
	}
	var meta keychain.FileMeta
	if err := openJSON(p.FileRecordData, fileKey, &meta); err != nil {
		return nil, fail(http.StatusBadRequest, "bad_request", "file data: %v", err)
	}
	var ownerData record.Data
	if err := openJSON(p.OwnerRecordData, owner.Key, &ownerData); err != nil {
		return nil, fail(http.StatusBadRequest, "bad_request", "owner data: %v", err)
	}
	owner.Data = &ownerData
	owner.Revision++

	v.uploads[p.FileRecordUID] = &File{UID: p.FileRecordUID, Key: fileKey, Title: meta.Title, Name: meta.Name, Type: meta.Type}
	v.pendingOwner(p.FileRecordUID, owner.UID)

	params, _ := json.Marshal(map[string]string{"key": p.FileRecordUID})
	return marshal(api.AddFileResponse{
		URL:               v.baseURL + "/files/upload/" + p.FileRecordUID,
		Parameters:        string(params),
		SuccessStatusCode: http.StatusNoContent,
	})
}

// pendingOwner remembers which record an upload attaches to.
func (v *Vault) pendingOwner(fileUID, ownerUID string) {
	if v.owners == nil {
		v.owners = map[string]string{}
	}
	v.owners[fileUID] = ownerUID
}

func (v *Vault) handleUpload(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.FormValue("key") != uid {
		http.Error(w, "policy mismatch", http.StatusForbidden)
		return
	}
	part, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	blob, err := io.ReadAll(part)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	f, ok := v.uploads[uid]
	if !ok {
		http.Error(w, "no pending upload", http.StatusNotFound)
		return
	}
	content, err := crypto.DecryptAES(f.Key, blob)
	if err != nil {
		http.Error(w, "content not encrypted with file key", http.StatusBadRequest)
		return
	}
	f.Content = content
	owner := v.record(v.owners[uid])
	if owner == nil {
		http.Error(w, "owner record gone", http.StatusConflict)
		return
	}
	owner.Files = append(owner.Files, f)
	delete(v.uploads, uid)
	delete(v.owners, uid)
	w.WriteHeader(http.StatusNoContent)
}

func (v *Vault) handleDownload(thumbnail bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := chi.URLParam(r, "uid")

		v.mu.Lock()
		defer v.mu.Unlock()
		v.calls["files"]++
		for _, rec := range v.records {
			for _, f := range rec.Files {
				if f.UID != uid {
					continue
				}
				content := f.Content
				if thumbnail {
					content = f.Thumbnail
				}
				if content == nil {
					break
				}
				blob, err := crypto.EncryptAES(f.Key, content)
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				_, _ = w.Write(blob)
				return
			}
		}
		http.NotFound(w, r)
	}
}

func open(encoded string, key []byte) ([]byte, error) {
	ct, err := crypto.DecodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	return crypto.DecryptAES(key, ct)
}

// openForOwner unwraps a key the client wrapped to the app owner.
func openForOwner(encoded string, owner *ecdh.PrivateKey) ([]byte, error) {
	ct, err := crypto.DecodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	return crypto.PrivateDecrypt(ct, owner)
}

func openJSON(encoded string, key []byte, v any) error {
	plain, err := open(encoded, key)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}

func mustSeal(plain, key []byte) string {
	s, err := keychain.Seal(plain, key)
	if err != nil {
		panic(err)
	}
	return s
}

func mustSealJSON(v any, key []byte) string {
	s, err := keychain.SealJSON(v, key)
	if err != nil {
		panic(err)
	}
	return s
}

func marshal(v any) ([]byte, *apiError) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fail(http.StatusInternalServerError, "internal", "%v", err)
	}
	return b, nil
}
