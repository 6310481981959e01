package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	secretsmanager "github.com/secretsmanager/client-go"
	"github.com/secretsmanager/client-go/internal/testvault"
	"github.com/secretsmanager/client-go/record"
	"github.com/secretsmanager/client-go/storage"
)

const recordUID = "6ya_fdc6XTsZ7i7x9Jcodg"

type harness struct {
	vault  *testvault.Vault
	token  string
	dir    string
	env    map[string]string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	vault, err := testvault.New()
	if err != nil {
		t.Fatalf("testvault.New() error = %v", err)
	}
	data := record.New("login", "Prod Login")
	data.AddField(record.NewField("login", "", record.Text("admin")))
	data.AddField(record.NewField("password", "", record.Text("s3cr3t")))
	if _, err := vault.AddRecord(recordUID, "", data); err != nil {
		t.Fatalf("AddRecord() error = %v", err)
	}
	if _, err := vault.AddFile(recordUID, secretsmanager.NewUID(), "Cert", "cert.pem", []byte("cert body"), nil); err != nil {
		t.Fatalf("AddFile() error = %v", err)
	}
	token, err := vault.NewToken(testvault.Hostname)
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	return &harness{
		vault:  vault,
		token:  token,
		dir:    t.TempDir(),
		env:    map[string]string{},
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
	}
}

func (h *harness) config() *Config {
	return &Config{
		Stdout:  h.stdout,
		Stderr:  h.stderr,
		Getenv:  func(key string) string { return h.env[key] },
		EnvFile: filepath.Join(h.dir, ".env"),
		Options: []secretsmanager.Option{
			secretsmanager.WithHTTPClient(h.vault.HTTPClient()),
			secretsmanager.WithServerKeys(h.vault.ServerKeys()),
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) string {
	t.Helper()
	h.stdout.Reset()
	if err := run(append([]string{"ksm"}, args...), h.config()); err != nil {
		t.Fatalf("run(%v) error = %v\nstderr: %s", args, err, h.stderr.String())
	}
	return h.stdout.String()
}

func TestRun_Usage(t *testing.T) {
	h := newHarness(t)
	if err := run([]string{"ksm"}, h.config()); err == nil || !strings.Contains(err.Error(), "usage") {
		t.Errorf("run() error = %v, want usage error", err)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	h := newHarness(t)
	config := filepath.Join(h.dir, "config.json")
	h.run(t, "--config", config, "init", "--token", h.token)

	err := run([]string{"ksm", "--config", config, "frobnicate"}, h.config())
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("run() error = %v, want unknown command", err)
	}
}

func TestRun_InitRequiresToken(t *testing.T) {
	h := newHarness(t)
	err := run([]string{"ksm", "--config", filepath.Join(h.dir, "config.json"), "init"}, h.config())
	if err == nil || !strings.Contains(err.Error(), "--token") {
		t.Errorf("run(init) error = %v, want usage error", err)
	}
}

func TestRun_UnboundConfig(t *testing.T) {
	h := newHarness(t)
	err := run([]string{"ksm", "--config", filepath.Join(h.dir, "config.json"), "list"}, h.config())
	if err == nil {
		t.Fatal("run(list) on an empty configuration should fail")
	}
}

func TestRun_Commands(t *testing.T) {
	h := newHarness(t)
	config := filepath.Join(h.dir, "config.json")

	out := h.run(t, "--config", config, "init", "--token", h.token)
	if !strings.Contains(out, "bound to vault.test, 1 record(s)") {
		t.Errorf("init output = %q", out)
	}
	if _, err := os.Stat(config); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	out = h.run(t, "--config", config, "list")
	if !strings.Contains(out, recordUID) || !strings.Contains(out, "Prod Login") {
		t.Errorf("list output = %q", out)
	}

	out = h.run(t, "--config", config, "get", "keeper://"+recordUID+"/field/password")
	if out != "s3cr3t\n" {
		t.Errorf("get output = %q, want %q", out, "s3cr3t\n")
	}

	target := filepath.Join(h.dir, "cert.pem")
	h.run(t, "--config", config, "download", recordUID, "cert.pem", target)
	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(content) != "cert body" {
		t.Errorf("downloaded content = %q", content)
	}

	out = h.run(t, "--config", config, "delete", recordUID)
	if !strings.Contains(out, recordUID) || !strings.Contains(out, "ok") {
		t.Errorf("delete output = %q", out)
	}
	if h.vault.Record(recordUID) != nil {
		t.Error("record still present after delete")
	}
}

func TestRun_DownloadMissingFile(t *testing.T) {
	h := newHarness(t)
	config := filepath.Join(h.dir, "config.json")
	h.run(t, "--config", config, "init", "--token", h.token)

	err := run([]string{"ksm", "--config", config, "download", recordUID, "nope.pem", filepath.Join(h.dir, "x")}, h.config())
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Errorf("run(download) error = %v, want file not found", err)
	}
}

func TestRun_ExportConfigIntoEnv(t *testing.T) {
	h := newHarness(t)
	config := filepath.Join(h.dir, "config.json")
	h.run(t, "--config", config, "init", "--token", h.token)

	exported := strings.TrimSpace(h.run(t, "--config", config, "export-config"))
	m, err := storage.NewMemoryStorageFromBase64(exported)
	if err != nil {
		t.Fatalf("exported config does not load: %v", err)
	}
	if v, _ := m.Get(storage.KeyAppKey); v == "" {
		t.Error("exported config has no app key")
	}

	h.env[envConfig] = exported
	out := h.run(t, "get", recordUID+"/field/login")
	if out != "admin\n" {
		t.Errorf("get output = %q, want %q", out, "admin\n")
	}
}

func TestRun_EnvFile(t *testing.T) {
	h := newHarness(t)
	config := filepath.Join(h.dir, "from-env.json")
	dotenv := "KSM_TOKEN=" + h.token + "\nKSM_CONFIG_FILE=" + config + "\n"
	if err := os.WriteFile(filepath.Join(h.dir, ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out := h.run(t, "init")
	if !strings.Contains(out, "bound to vault.test") {
		t.Errorf("init output = %q", out)
	}
	f, err := storage.NewFileStorage(config)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if v, _ := f.Get(storage.KeyAppKey); v == "" {
		t.Error("KSM_CONFIG_FILE from .env was not used")
	}
}

func TestRun_Badger(t *testing.T) {
	h := newHarness(t)
	dir := filepath.Join(h.dir, "badger")

	h.run(t, "--badger", dir, "--verbose", "init", "--token", h.token)
	out := h.run(t, "--badger", dir, "get", recordUID+"/title")
	if out != "Prod Login\n" {
		t.Errorf("get output = %q, want %q", out, "Prod Login\n")
	}
	if !strings.Contains(h.stderr.String(), "DEBUG") {
		t.Error("--verbose should log at debug level")
	}
}
