// Command ksm is a small command line client for the secrets manager.
//
// Usage:
//
//	ksm [--config FILE | --badger DIR] [--verbose] <command> [args]
//
// Commands:
//
//	init --token TOKEN [--hostname HOST]   bind the configuration to an application
//	list                                   list shared records
//	get NOTATION                           print the values a notation resolves to
//	download RECORD_UID FILE OUT           save a file attachment
//	delete UID...                          delete records
//	export-config                          print the configuration as base64
//
// Configuration is read from KSM_CONFIG (base64) or a file named by
// KSM_CONFIG_FILE, falling back to client-config.json. KSM_TOKEN and
// KSM_HOSTNAME are used when the configuration is not bound yet. Variables
// may also come from a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	secretsmanager "github.com/secretsmanager/client-go"
	"github.com/secretsmanager/client-go/storage"
)

// Environment variables.
const (
	envConfig     = "KSM_CONFIG"
	envConfigFile = "KSM_CONFIG_FILE"
	envToken      = "KSM_TOKEN"
	envHostname   = "KSM_HOSTNAME"
)

const commandTimeout = 60 * time.Second

// Config holds the process environment of a run.
type Config struct {
	Stdout io.Writer
	Stderr io.Writer
	// Getenv looks up environment variables. Values from EnvFile fill in
	// whatever Getenv does not set.
	Getenv  func(string) string
	EnvFile string
	// Options are passed to every client, after the CLI's own.
	Options []secretsmanager.Option
}

// DefaultConfig returns a Config for the real process.
func DefaultConfig() *Config {
	return &Config{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Getenv:  os.Getenv,
		EnvFile: ".env",
	}
}

// env merges the process environment with the optional .env file.
type env struct {
	getenv func(string) string
	file   map[string]string
}

func loadEnv(cfg *Config) env {
	e := env{getenv: cfg.Getenv}
	if e.getenv == nil {
		e.getenv = func(string) string { return "" }
	}
	if cfg.EnvFile != "" {
		if values, err := godotenv.Read(cfg.EnvFile); err == nil {
			e.file = values
		}
	}
	return e
}

func (e env) get(key string) string {
	if v := e.getenv(key); v != "" {
		return v
	}
	return e.file[key]
}

type globalFlags struct {
	configFile string
	badgerDir  string
	verbose    bool
}

func run(args []string, cfg *Config) error {
	fs := flag.NewFlagSet("ksm", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	var g globalFlags
	fs.StringVar(&g.configFile, "config", "", "configuration file")
	fs.StringVar(&g.badgerDir, "badger", "", "Badger configuration directory")
	fs.BoolVar(&g.verbose, "verbose", false, "debug logging")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return errors.New("usage: ksm [--config FILE | --badger DIR] [--verbose] <init|list|get|download|delete|export-config> [args]")
	}

	logger := newLogger(cfg.Stderr, g.verbose)
	defer func() { _ = logger.Sync() }()

	e := loadEnv(cfg)
	s, closeStorage, err := openStorage(g, e)
	if err != nil {
		return err
	}
	defer closeStorage()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "init":
		return runInit(ctx, cfg, e, s, logger, cmdArgs)
	case "export-config":
		return runExportConfig(cfg, s)
	}

	client, err := newClient(cfg, e, s, logger, "", "")
	if err != nil {
		return err
	}
	switch cmd {
	case "list":
		return runList(ctx, client, cfg)
	case "get":
		if len(cmdArgs) != 1 {
			return errors.New("usage: ksm get <notation>")
		}
		return runGet(ctx, client, cfg, cmdArgs[0])
	case "download":
		if len(cmdArgs) != 3 {
			return errors.New("usage: ksm download <recordUid> <file> <outPath>")
		}
		return runDownload(ctx, client, cmdArgs[0], cmdArgs[1], cmdArgs[2])
	case "delete":
		if len(cmdArgs) == 0 {
			return errors.New("usage: ksm delete <uid>...")
		}
		return runDelete(ctx, client, cfg, cmdArgs)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

// newLogger writes JSON logs at Info, or console logs at Debug when
// verbose, to w.
func newLogger(w io.Writer, verbose bool) *zap.Logger {
	if verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel))
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.InfoLevel))
}

// openStorage picks the configuration backend: --badger, --config,
// KSM_CONFIG, KSM_CONFIG_FILE, then the default file.
func openStorage(g globalFlags, e env) (storage.KeyValueStorage, func(), error) {
	noop := func() {}
	switch {
	case g.badgerDir != "":
		b, err := storage.OpenBadgerStorage(g.badgerDir)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { _ = b.Close() }, nil
	case g.configFile != "":
		f, err := storage.NewFileStorage(g.configFile)
		return f, noop, err
	case e.get(envConfig) != "":
		m, err := storage.NewMemoryStorageFromBase64(e.get(envConfig))
		return m, noop, err
	}
	f, err := storage.NewFileStorage(e.get(envConfigFile))
	return f, noop, err
}

func newClient(cfg *Config, e env, s storage.KeyValueStorage, logger *zap.Logger, token, hostname string) (*secretsmanager.Client, error) {
	if token == "" {
		token = e.get(envToken)
	}
	if hostname == "" {
		hostname = e.get(envHostname)
	}
	opts := []secretsmanager.Option{
		secretsmanager.WithStorage(s),
		secretsmanager.WithLogger(logger),
	}
	if token != "" {
		opts = append(opts, secretsmanager.WithToken(token))
	}
	if hostname != "" {
		opts = append(opts, secretsmanager.WithHostname(hostname))
	}
	return secretsmanager.New(append(opts, cfg.Options...)...)
}

func runInit(ctx context.Context, cfg *Config, e env, s storage.KeyValueStorage, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(cfg.Stderr)
	token := fs.String("token", "", "one-time access token")
	hostname := fs.String("hostname", "", "service host, overrides the token region")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" && e.get(envToken) == "" {
		return errors.New("usage: ksm init --token TOKEN [--hostname HOST]")
	}

	client, err := newClient(cfg, e, s, logger, *token, *hostname)
	if err != nil {
		return err
	}
	secrets, err := client.GetSecrets(ctx)
	if err != nil {
		return fmt.Errorf("bind: %w", err)
	}
	fmt.Fprintf(cfg.Stdout, "bound to %s, %d record(s) shared\n", client.Hostname(), len(secrets.Records))
	return nil
}

func runExportConfig(cfg *Config, s storage.KeyValueStorage) error {
	m := storage.NewMemoryStorage(nil)
	if err := storage.Copy(m, s); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	out, err := m.Base64Config()
	if err != nil {
		return err //coverage:ignore
	}
	_, err = fmt.Fprintln(cfg.Stdout, out)
	return err
}

func runList(ctx context.Context, client *secretsmanager.Client, cfg *Config) error {
	secrets, err := client.GetSecrets(ctx)
	if err != nil {
		return fmt.Errorf("get secrets: %w", err)
	}
	w := tabwriter.NewWriter(cfg.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UID\tTYPE\tTITLE")
	for _, r := range secrets.Records {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.UID, r.Type(), r.Title())
	}
	return w.Flush()
}

func runGet(ctx context.Context, client *secretsmanager.Client, cfg *Config, notation string) error {
	values, err := client.GetNotationResults(ctx, notation)
	if err != nil {
		return err
	}
	for _, v := range values {
		if _, err := fmt.Fprintln(cfg.Stdout, v); err != nil {
			return err
		}
	}
	return nil
}

func runDownload(ctx context.Context, client *secretsmanager.Client, recordUID, name, out string) error {
	secrets, err := client.GetSecrets(ctx, recordUID)
	if err != nil {
		return fmt.Errorf("get secrets: %w", err)
	}
	rec := secrets.Records.ByUID(recordUID)
	if rec == nil {
		return fmt.Errorf("%w: %s", secretsmanager.ErrRecordNotFound, recordUID)
	}
	file := rec.FindFile(name)
	if file == nil {
		return fmt.Errorf("%w: %q in record %s", secretsmanager.ErrFileNotFound, name, recordUID)
	}
	content, err := client.DownloadFile(ctx, file)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	return os.WriteFile(out, content, 0o600)
}

func runDelete(ctx context.Context, client *secretsmanager.Client, cfg *Config, uids []string) error {
	results, err := client.DeleteSecrets(ctx, uids)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	w := tabwriter.NewWriter(cfg.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.RecordUID, r.ResponseCode, r.ErrorMessage)
	}
	return w.Flush()
}
