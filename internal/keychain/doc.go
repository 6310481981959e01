// Package keychain walks the key hierarchy of a get_secret response:
//
//	app key -> folder key -> record key -> record data
//	                                    -> file key -> file metadata
//
// Records nested under a folder unwrap their record key with that folder's
// key. A record in the flat list that names a folder resolved in the same
// response also uses that folder's key; every other flat record uses the
// app key.
//
// Every authentication failure is returned as a *DecryptionError naming the
// step and the UID being processed. Nothing is skipped.
package keychain
