package testvault

import (
	"net/http"
	"net/http/httptest"

	"github.com/secretsmanager/client-go/internal/api"
)

// RoundTrip serves req in-process, so the vault can back an http.Client
// without a listener.
func (v *Vault) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := httptest.NewRecorder()
	v.router.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

// HTTPClient returns a client whose requests are served in-process.
func (v *Vault) HTTPClient() *http.Client {
	return &http.Client{Transport: v}
}

// Transport returns an in-process protocol transport.
func (v *Vault) Transport() api.PostFunc {
	return api.HTTPTransport(v.HTTPClient())
}
