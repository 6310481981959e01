package api

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/storage"
)

// fakeServer decrypts requests the way the service does and records what
// it saw.
type fakeServer struct {
	t       *testing.T
	keys    map[int]*ecdh.PrivateKey
	device  *ecdsa.PublicKey
	handler func(keyID int, body []byte) (int, []byte)

	calls   int
	keyIDs  []int
	headers []map[string]string
}

func newFakeServer(t *testing.T, device *ecdsa.PublicKey, ids ...int) (*fakeServer, map[int][]byte) {
	t.Helper()
	s := &fakeServer{t: t, keys: map[int]*ecdh.PrivateKey{}, device: device}
	pub := map[int][]byte{}
	for _, id := range ids {
		priv, err := ecdh.P256().GenerateKey(rand.Reader)
		if err != nil {
			t.Fatalf("GenerateKey() error = %v", err)
		}
		s.keys[id] = priv
		pub[id] = priv.PublicKey().Bytes()
	}
	return s, pub
}

func (s *fakeServer) transport(_ context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
	s.calls++
	s.headers = append(s.headers, headers)

	keyID, err := strconv.Atoi(headers["PublicKeyId"])
	if err != nil {
		s.t.Fatalf("PublicKeyId header = %q", headers["PublicKeyId"])
	}
	s.keyIDs = append(s.keyIDs, keyID)

	wrapped, err := crypto.FromBase64(headers["TransmissionKey"])
	if err != nil {
		s.t.Fatalf("TransmissionKey header: %v", err)
	}
	sig, err := crypto.FromBase64(strings.TrimPrefix(headers["Authorization"], "Signature "))
	if err != nil {
		s.t.Fatalf("Authorization header: %v", err)
	}
	if err := crypto.Verify(append(append([]byte{}, wrapped...), body...), sig, s.device); err != nil {
		s.t.Errorf("signature does not verify: %v", err)
	}

	priv := s.keys[keyID]
	tk, err := crypto.PrivateDecrypt(wrapped, priv)
	if err != nil {
		s.t.Fatalf("unwrap transmission key %d: %v", keyID, err)
	}
	plain, err := crypto.DecryptAES(tk, body)
	if err != nil {
		s.t.Fatalf("decrypt payload: %v", err)
	}

	status, reply := s.handler(keyID, plain)
	if status >= 200 && status < 300 && len(reply) > 0 {
		reply, err = crypto.EncryptAES(tk, reply)
		if err != nil {
			s.t.Fatalf("encrypt reply: %v", err)
		}
	}
	return &Response{StatusCode: status, Body: reply}, nil
}

func newTestClient(t *testing.T, keys map[int][]byte, transport PostFunc) (*Client, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage(nil)
	client, err := NewClient(Config{
		Hostname:   "vault.test",
		Transport:  transport,
		ServerKeys: keys,
		KeyIDs:     StorageKeyIDs(store),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, store
}

func deviceKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error = %v", err)
	}
	return priv
}

func TestNewClient_RequiresHostname(t *testing.T) {
	_, err := NewClient(Config{KeyIDs: StorageKeyIDs(storage.NewMemoryStorage(nil))})
	if err == nil {
		t.Error("expected error for empty hostname")
	}
}

func TestNewClient_RequiresKeyIDs(t *testing.T) {
	_, err := NewClient(Config{Hostname: "vault.test"})
	if err == nil {
		t.Error("expected error for missing key id store")
	}
}

func TestNewClient_DefaultValues(t *testing.T) {
	client, err := NewClient(Config{
		Hostname: "vault.test",
		KeyIDs:   StorageKeyIDs(storage.NewMemoryStorage(nil)),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if client.maxAttempts != DefaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", client.maxAttempts, DefaultMaxAttempts)
	}
	if len(client.serverKeys) != 11 {
		t.Errorf("len(serverKeys) = %d, want 11", len(client.serverKeys))
	}
	if client.transport == nil || client.fetch == nil || client.upload == nil {
		t.Error("default transports not set")
	}
	if got, want := client.URL(PathGetSecret), "https://vault.test/api/rest/sm/v1/get_secret"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestDefaultServerKeys(t *testing.T) {
	keys := DefaultServerKeys()
	for id := 7; id <= 17; id++ {
		raw, ok := keys[id]
		if !ok {
			t.Errorf("missing server key %d", id)
			continue
		}
		if _, err := crypto.ParsePublicKey(raw); err != nil {
			t.Errorf("server key %d: %v", id, err)
		}
	}

	keys[7] = nil
	if DefaultServerKeys()[7] == nil {
		t.Error("DefaultServerKeys() must return a fresh copy")
	}
}

func TestPostQuery_RoundTrip(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, DefaultServerKeyID)
	server.handler = func(_ int, body []byte) (int, []byte) {
		var p GetPayload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Fatalf("request body: %v", err)
		}
		if p.ClientID != "client-1" || p.ClientVersion != ClientVersion {
			t.Errorf("context = %+v", p.Context)
		}
		return 200, []byte(`{"records":[{"recordUid":"r1"}]}`)
	}
	client, _ := newTestClient(t, keys, server.transport)

	resp, err := client.GetSecrets(context.Background(), &GetPayload{Context: NewContext("client-1")}, priv)
	if err != nil {
		t.Fatalf("GetSecrets() error = %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].RecordUID != "r1" {
		t.Errorf("Records = %+v", resp.Records)
	}

	h := server.headers[0]
	if h["PublicKeyId"] != "7" {
		t.Errorf("PublicKeyId = %q, want 7", h["PublicKeyId"])
	}
	if !strings.HasPrefix(h["Authorization"], "Signature ") {
		t.Errorf("Authorization = %q", h["Authorization"])
	}
}

func TestPostQuery_EmptyBody(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, DefaultServerKeyID)
	server.handler = func(int, []byte) (int, []byte) { return 200, nil }
	client, _ := newTestClient(t, keys, server.transport)

	plain, err := client.PostQuery(context.Background(), PathDeleteSecret, &DeletePayload{}, priv)
	if err != nil {
		t.Fatalf("PostQuery() error = %v", err)
	}
	if plain != nil {
		t.Errorf("PostQuery() = %q, want nil", plain)
	}
}

func TestPostQuery_KeyRotation(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, 7, 8)
	server.handler = func(keyID int, _ []byte) (int, []byte) {
		if keyID != 8 {
			return 401, []byte(`{"error":"key","key_id":8}`)
		}
		return 200, []byte(`{}`)
	}
	client, store := newTestClient(t, keys, server.transport)

	if _, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv); err != nil {
		t.Fatalf("PostQuery() error = %v", err)
	}
	if server.calls != 2 {
		t.Errorf("calls = %d, want 2", server.calls)
	}
	if server.keyIDs[0] != 7 || server.keyIDs[1] != 8 {
		t.Errorf("key ids used = %v, want [7 8]", server.keyIDs)
	}
	if v, _ := store.Get(storage.KeyServerPublicKeyID); v != "8" {
		t.Errorf("stored key id = %q, want 8", v)
	}

	// The stored id is used directly on the next call.
	if _, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv); err != nil {
		t.Fatalf("PostQuery() error = %v", err)
	}
	if server.calls != 3 {
		t.Errorf("calls = %d, want 3", server.calls)
	}
}

func TestPostQuery_KeyRotationExhausted(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, 7, 8)
	server.handler = func(keyID int, _ []byte) (int, []byte) {
		next := 8
		if keyID == 8 {
			next = 7
		}
		return 401, []byte(`{"error":"key","key_id":` + strconv.Itoa(next) + `}`)
	}
	client, _ := newTestClient(t, keys, server.transport)

	_, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv)
	if !errors.Is(err, ErrKeyRotationExhausted) {
		t.Fatalf("PostQuery() error = %v, want ErrKeyRotationExhausted", err)
	}
	var exhausted *KeyRotationExhaustedError
	if !errors.As(err, &exhausted) || exhausted.Attempts != DefaultMaxAttempts {
		t.Errorf("error = %#v", err)
	}
	if server.calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", server.calls, DefaultMaxAttempts)
	}
}

func TestPostQuery_UnsupportedKeyID(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, 7)
	server.handler = func(int, []byte) (int, []byte) {
		return 401, []byte(`{"error":"key","key_id":99}`)
	}
	client, _ := newTestClient(t, keys, server.transport)

	_, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv)
	if !errors.Is(err, ErrUnsupportedKeyID) {
		t.Fatalf("PostQuery() error = %v, want ErrUnsupportedKeyID", err)
	}
	var unsupported *UnsupportedKeyIDError
	if !errors.As(err, &unsupported) || unsupported.KeyID != 99 {
		t.Errorf("error = %#v", err)
	}
}

func TestPostQuery_RemoteError(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, 7)
	server.handler = func(int, []byte) (int, []byte) {
		return 403, []byte(`{"error":"access_denied","message":"Unable to validate application access"}`)
	}
	client, _ := newTestClient(t, keys, server.transport)

	_, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv)
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("PostQuery() error = %v, want *RemoteError", err)
	}
	if remote.StatusCode != 403 || remote.Code != "access_denied" {
		t.Errorf("RemoteError = %+v", remote)
	}
	if server.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", server.calls)
	}
}

func TestPostQuery_NetworkError(t *testing.T) {
	priv := deviceKey(t)
	_, keys := newFakeServer(t, &priv.PublicKey, 7)
	failing := func(context.Context, string, map[string]string, []byte) (*Response, error) {
		return nil, errors.New("connection refused")
	}
	client, _ := newTestClient(t, keys, failing)

	_, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("PostQuery() error = %v, want *NetworkError", err)
	}
	if netErr.URL != client.URL(PathGetSecret) || netErr.Attempt != 1 {
		t.Errorf("NetworkError = %+v", netErr)
	}
}

func TestPostQuery_UndecryptableResponse(t *testing.T) {
	priv := deviceKey(t)
	_, keys := newFakeServer(t, &priv.PublicKey, 7)
	garbage := func(context.Context, string, map[string]string, []byte) (*Response, error) {
		return &Response{StatusCode: 200, Body: make([]byte, 64)}, nil
	}
	client, _ := newTestClient(t, keys, garbage)

	_, err := client.PostQuery(context.Background(), PathGetSecret, &GetPayload{}, priv)
	if !errors.Is(err, ErrInvalidResponse) || !errors.Is(err, crypto.ErrDecryptionFailed) {
		t.Errorf("PostQuery() error = %v, want ErrInvalidResponse wrapping ErrDecryptionFailed", err)
	}
}

func TestAddFile_RequiresURL(t *testing.T) {
	priv := deviceKey(t)
	server, keys := newFakeServer(t, &priv.PublicKey, 7)
	server.handler = func(int, []byte) (int, []byte) { return 200, []byte(`{"parameters":"{}"}`) }
	client, _ := newTestClient(t, keys, server.transport)

	_, err := client.AddFile(context.Background(), &FileUploadPayload{}, priv)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("AddFile() error = %v, want ErrInvalidResponse", err)
	}
}

func TestStorageKeyIDs(t *testing.T) {
	store := storage.NewMemoryStorage(nil)
	ids := StorageKeyIDs(store)

	id, err := ids.ServerKeyID()
	if err != nil || id != DefaultServerKeyID {
		t.Errorf("ServerKeyID() = %d, %v, want %d", id, err, DefaultServerKeyID)
	}
	if err := ids.SetServerKeyID(12); err != nil {
		t.Fatalf("SetServerKeyID() error = %v", err)
	}
	if id, _ := ids.ServerKeyID(); id != 12 {
		t.Errorf("ServerKeyID() = %d, want 12", id)
	}

	_ = store.Set(storage.KeyServerPublicKeyID, "seven")
	if _, err := ids.ServerKeyID(); err == nil {
		t.Error("expected error for non-numeric key id")
	}
}
