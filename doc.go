// Package secretsmanager provides a Go client SDK for a zero-knowledge
// secrets manager.
//
// A device is bound to an application once with a one-time access token.
// Binding stores an ECDSA P-256 device key and the application key in a
// storage.KeyValueStorage; every later request is encrypted with a fresh
// transmission key and signed with the device key. Records are decrypted
// locally through the key hierarchy app key, folder key, record key.
//
// Basic usage:
//
//	cfg, err := storage.NewFileStorage("client-config.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client, err := secretsmanager.New(
//	    secretsmanager.WithStorage(cfg),
//	    secretsmanager.WithToken("US:ONE_TIME_TOKEN"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	secrets, err := client.GetSecrets(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range secrets.Records {
//	    fmt.Println(r.UID, r.Title())
//	}
//
//	// Pull a single value with notation
//	password, err := client.GetNotation(ctx, "keeper://6ya_fdc6XTsZ7i7x9Jcodg/field/password")
package secretsmanager
