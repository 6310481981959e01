package secretsmanager

import (
	"time"

	"github.com/secretsmanager/client-go/internal/keychain"
	"github.com/secretsmanager/client-go/record"
)

// Secrets is the decrypted result of one fetch.
type Secrets struct {
	Records Records
	// AppData describes the bound application, when the server sends it.
	AppData *AppData
	// ExpiresOn is when the application's access expires. Zero if unset.
	ExpiresOn time.Time
	// Warnings are server notices such as upcoming expiry.
	Warnings []string
}

// AppData describes the application a device is bound to.
type AppData struct {
	Title string
	Type  string
}

// Record is a decrypted record.
type Record struct {
	UID            string
	FolderUID      string
	InnerFolderUID string
	Revision       int64
	IsEditable     bool
	Data           *record.Data
	Files          []*File

	key       []byte
	folderKey []byte
}

// File is a file attached to a record. Its content is downloaded and
// decrypted on demand with Client.DownloadFile.
type File struct {
	UID          string
	Title        string
	Name         string
	Type         string
	Size         int64
	LastModified time.Time
	URL          string
	ThumbnailURL string

	key []byte
}

// Folder is a shared folder or subfolder visible to the application.
type Folder struct {
	UID       string
	ParentUID string
	Name      string

	key []byte
}

// DeleteResult is the per-record outcome of DeleteSecrets.
type DeleteResult struct {
	RecordUID    string
	ResponseCode string
	ErrorMessage string
}

// Records is a list of records with lookup helpers.
type Records []*Record

// ByUID returns the record with uid, or nil.
func (rs Records) ByUID(uid string) *Record {
	for _, r := range rs {
		if r.UID == uid {
			return r
		}
	}
	return nil
}

// ByTitle returns every record whose title is exactly title.
func (rs Records) ByTitle(title string) Records {
	var out Records
	for _, r := range rs {
		if r.Title() == title {
			out = append(out, r)
		}
	}
	return out
}

func newSecrets(s *keychain.Secrets) *Secrets {
	out := &Secrets{
		Records:   make(Records, 0, len(s.Records)),
		ExpiresOn: s.ExpiresOn,
		Warnings:  s.Warnings,
	}
	if s.AppData != nil {
		out.AppData = &AppData{Title: s.AppData.Title, Type: s.AppData.Type}
	}
	for _, r := range s.Records {
		out.Records = append(out.Records, newRecord(r))
	}
	return out
}

func newRecord(r *keychain.Record) *Record {
	rec := &Record{
		UID:            r.UID,
		FolderUID:      r.FolderUID,
		InnerFolderUID: r.InnerFolderUID,
		Revision:       r.Revision,
		IsEditable:     r.IsEditable,
		Data:           r.Data,
		key:            r.Key,
		folderKey:      r.FolderKey,
	}
	for _, f := range r.Files {
		file := &File{
			UID:          f.UID,
			Title:        f.Meta.Title,
			Name:         f.Meta.Name,
			Type:         f.Meta.Type,
			Size:         f.Meta.Size,
			URL:          f.URL,
			ThumbnailURL: f.ThumbnailURL,
			key:          f.Key,
		}
		if f.Meta.LastModified > 0 {
			file.LastModified = time.UnixMilli(f.Meta.LastModified)
		}
		rec.Files = append(rec.Files, file)
	}
	return rec
}

// Title returns the record title.
func (r *Record) Title() string { return r.Data.Title }

// Type returns the record type.
func (r *Record) Type() string { return r.Data.Type }

// Notes returns the record notes, or "" when absent.
func (r *Record) Notes() string { return r.Data.Notes }

// Field returns the first standard field whose type or label is key.
func (r *Record) Field(key string) *record.Field { return r.Data.Field(key) }

// CustomField returns the first custom field whose type or label is key.
func (r *Record) CustomField(key string) *record.Field { return r.Data.CustomField(key) }

// FieldValue returns the first value of the first standard or custom field
// matching key, or "" when there is none.
func (r *Record) FieldValue(key string) string {
	f := r.Data.AnyField(key)
	if f == nil || len(f.Value) == 0 {
		return ""
	}
	return f.Value[0].String()
}

// Password returns the first value of the password field.
func (r *Record) Password() string {
	return r.FieldValue("password")
}

// SetFieldValue replaces the values of the first field matching key. The
// field is added as a standard field of type key when missing. Call
// Client.UpdateSecret to save.
func (r *Record) SetFieldValue(key string, values ...record.Value) {
	if values == nil {
		values = []record.Value{}
	}
	if f := r.Data.AnyField(key); f != nil {
		f.Value = values
		return
	}
	r.Data.AddField(record.NewField(key, "", values...))
}

// SetPassword sets the password field.
func (r *Record) SetPassword(password string) {
	r.SetFieldValue("password", record.Text(password))
}

// FindFiles returns every file whose UID, name or title is exactly name.
func (r *Record) FindFiles(name string) []*File {
	var out []*File
	for _, f := range r.Files {
		if f.UID == name || f.Name == name || f.Title == name {
			out = append(out, f)
		}
	}
	return out
}

// FindFile returns the first file whose UID, name or title is name, or nil.
func (r *Record) FindFile(name string) *File {
	if files := r.FindFiles(name); len(files) > 0 {
		return files[0]
	}
	return nil
}
