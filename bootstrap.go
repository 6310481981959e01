package secretsmanager

import (
	"strings"

	"github.com/secretsmanager/client-go/internal/crypto"
	"github.com/secretsmanager/client-go/storage"
)

// regionHosts maps token region prefixes to service hosts.
var regionHosts = map[string]string{
	"US":  "keepersecurity.com",
	"EU":  "keepersecurity.eu",
	"AU":  "keepersecurity.com.au",
	"GOV": "govcloud.keepersecurity.us",
	"JP":  "keepersecurity.jp",
	"CA":  "keepersecurity.ca",
}

// parseToken splits a one-time token into host and client key. An
// unknown region is used as the host itself, which allows host:port
// tokens for development servers. A non-empty hostname wins over the
// token's region.
func parseToken(token, hostname string) (string, []byte, error) {
	token = strings.TrimSpace(token)
	host, encoded := "", token
	if i := strings.LastIndex(token, ":"); i >= 0 {
		region := token[:i]
		encoded = token[i+1:]
		host = region
		if h, ok := regionHosts[strings.ToUpper(region)]; ok {
			host = h
		}
	}
	if hostname != "" {
		host = hostname
	}
	if host == "" {
		return "", nil, &ConfigurationError{Key: storage.KeyHostname, Message: "token has no region and no hostname was given"}
	}

	clientKey, err := crypto.DecodeBase64(encoded)
	if err != nil || len(clientKey) == 0 {
		return "", nil, &ConfigurationError{Key: storage.KeyClientKey, Message: "token key is not valid base64"}
	}
	return host, clientKey, nil
}

// InitializeStorage binds s to the device identity derived from a one-time
// token: it stores the host, client id, client key and a fresh P-256 key
// pair. Calling it again with the same token is a no-op. A token whose
// client id differs from the stored one fails with ErrConfigurationConflict.
func InitializeStorage(s storage.KeyValueStorage, token, hostname string) error {
	host, clientKey, err := parseToken(token, hostname)
	if err != nil {
		return err
	}
	clientID := crypto.ClientID(clientKey)

	existing, err := storage.GetString(s, storage.KeyClientID)
	if err != nil {
		return err
	}
	if existing != "" {
		if existing == clientID {
			return nil
		}
		return &ConfigurationError{Key: storage.KeyClientID, Err: ErrConfigurationConflict}
	}

	priv, err := crypto.GenerateKeyPair()
	if err != nil {
		return err //coverage:ignore
	}
	privDER, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return err //coverage:ignore
	}
	pub, err := crypto.PublicKeyBytes(priv)
	if err != nil {
		return err //coverage:ignore
	}

	if err := s.Set(storage.KeyHostname, host); err != nil {
		return err
	}
	if err := s.Set(storage.KeyClientID, clientID); err != nil {
		return err
	}
	if err := storage.SetBytes(s, storage.KeyClientKey, clientKey); err != nil {
		return err
	}
	if err := storage.SetBytes(s, storage.KeyPrivateKey, privDER); err != nil {
		return err
	}
	return storage.SetBytes(s, storage.KeyPublicKey, pub)
}
