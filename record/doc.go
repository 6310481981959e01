// Package record models decrypted record data: the title, record type,
// standard and custom fields, and notes.
//
// A field is a tagged union keyed by its type string. Every field carries a
// list of values, even when the field type is single-valued. Value elements
// are decoded into concrete types according to the field type:
//
//	login, password, url, text, ...   -> Text
//	date, birthDate, expirationDate   -> Number
//	checkbox                          -> Bool
//	name                              -> Name
//	phone                             -> Phone
//	host                              -> Host
//	securityQuestion                  -> SecurityQuestion
//	address                           -> Address
//	paymentCard                       -> PaymentCard
//	bankAccount                       -> BankAccount
//	keyPair                           -> KeyPair
//
// Field types outside this table decode by JSON shape: strings to Text,
// numbers to Number, booleans to Bool, objects to Object.
//
// Structured values expose their members through [Structured.Property]
// using a fixed accessor table per type; no reflection is involved.
package record
