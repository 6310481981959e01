package record

import (
	"maps"
	"slices"
)

// accessors maps property names to getters for one structured type.
type accessors[T any] map[string]func(T) string

func (a accessors[T]) get(v T, name string) (string, bool) {
	fn, ok := a[name]
	if !ok {
		return "", false
	}
	return fn(v), true
}

func (a accessors[T]) names() []string {
	return slices.Sorted(maps.Keys(a))
}

// Name is the value of a name field.
type Name struct {
	First  string `json:"first,omitempty"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last,omitempty"`
}

var nameAccessors = accessors[Name]{
	"first":  func(v Name) string { return v.First },
	"middle": func(v Name) string { return v.Middle },
	"last":   func(v Name) string { return v.Last },
}

func (v Name) String() string                      { return compactJSON(v) }
func (Name) isValue()                              {}
func (v Name) Property(name string) (string, bool) { return nameAccessors.get(v, name) }
func (Name) PropertyNames() []string               { return nameAccessors.names() }

// Phone is the value of a phone field.
type Phone struct {
	Region string `json:"region,omitempty"`
	Number string `json:"number,omitempty"`
	Ext    string `json:"ext,omitempty"`
	Type   string `json:"type,omitempty"`
}

var phoneAccessors = accessors[Phone]{
	"region": func(v Phone) string { return v.Region },
	"number": func(v Phone) string { return v.Number },
	"ext":    func(v Phone) string { return v.Ext },
	"type":   func(v Phone) string { return v.Type },
}

func (v Phone) String() string                      { return compactJSON(v) }
func (Phone) isValue()                              {}
func (v Phone) Property(name string) (string, bool) { return phoneAccessors.get(v, name) }
func (Phone) PropertyNames() []string               { return phoneAccessors.names() }

// Host is the value of a host field.
type Host struct {
	HostName string `json:"hostName,omitempty"`
	Port     string `json:"port,omitempty"`
}

var hostAccessors = accessors[Host]{
	"hostName": func(v Host) string { return v.HostName },
	"port":     func(v Host) string { return v.Port },
}

func (v Host) String() string                      { return compactJSON(v) }
func (Host) isValue()                              {}
func (v Host) Property(name string) (string, bool) { return hostAccessors.get(v, name) }
func (Host) PropertyNames() []string               { return hostAccessors.names() }

// SecurityQuestion is the value of a securityQuestion field.
type SecurityQuestion struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

var securityQuestionAccessors = accessors[SecurityQuestion]{
	"question": func(v SecurityQuestion) string { return v.Question },
	"answer":   func(v SecurityQuestion) string { return v.Answer },
}

func (v SecurityQuestion) String() string { return compactJSON(v) }
func (SecurityQuestion) isValue()         {}
func (v SecurityQuestion) Property(name string) (string, bool) {
	return securityQuestionAccessors.get(v, name)
}
func (SecurityQuestion) PropertyNames() []string { return securityQuestionAccessors.names() }

// Address is the value of an address field.
type Address struct {
	Street1 string `json:"street1,omitempty"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

var addressAccessors = accessors[Address]{
	"street1": func(v Address) string { return v.Street1 },
	"street2": func(v Address) string { return v.Street2 },
	"city":    func(v Address) string { return v.City },
	"state":   func(v Address) string { return v.State },
	"zip":     func(v Address) string { return v.Zip },
	"country": func(v Address) string { return v.Country },
}

func (v Address) String() string                      { return compactJSON(v) }
func (Address) isValue()                              {}
func (v Address) Property(name string) (string, bool) { return addressAccessors.get(v, name) }
func (Address) PropertyNames() []string               { return addressAccessors.names() }

// PaymentCard is the value of a paymentCard field.
type PaymentCard struct {
	CardNumber         string `json:"cardNumber,omitempty"`
	CardExpirationDate string `json:"cardExpirationDate,omitempty"`
	CardSecurityCode   string `json:"cardSecurityCode,omitempty"`
}

var paymentCardAccessors = accessors[PaymentCard]{
	"cardNumber":         func(v PaymentCard) string { return v.CardNumber },
	"cardExpirationDate": func(v PaymentCard) string { return v.CardExpirationDate },
	"cardSecurityCode":   func(v PaymentCard) string { return v.CardSecurityCode },
}

func (v PaymentCard) String() string { return compactJSON(v) }
func (PaymentCard) isValue()         {}
func (v PaymentCard) Property(name string) (string, bool) {
	return paymentCardAccessors.get(v, name)
}
func (PaymentCard) PropertyNames() []string { return paymentCardAccessors.names() }

// BankAccount is the value of a bankAccount field.
type BankAccount struct {
	AccountType   string `json:"accountType,omitempty"`
	RoutingNumber string `json:"routingNumber,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	OtherType     string `json:"otherType,omitempty"`
}

var bankAccountAccessors = accessors[BankAccount]{
	"accountType":   func(v BankAccount) string { return v.AccountType },
	"routingNumber": func(v BankAccount) string { return v.RoutingNumber },
	"accountNumber": func(v BankAccount) string { return v.AccountNumber },
	"otherType":     func(v BankAccount) string { return v.OtherType },
}

func (v BankAccount) String() string { return compactJSON(v) }
func (BankAccount) isValue()         {}
func (v BankAccount) Property(name string) (string, bool) {
	return bankAccountAccessors.get(v, name)
}
func (BankAccount) PropertyNames() []string { return bankAccountAccessors.names() }

// KeyPair is the value of a keyPair field.
type KeyPair struct {
	PublicKey  string `json:"publicKey,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

var keyPairAccessors = accessors[KeyPair]{
	"publicKey":  func(v KeyPair) string { return v.PublicKey },
	"privateKey": func(v KeyPair) string { return v.PrivateKey },
}

func (v KeyPair) String() string                      { return compactJSON(v) }
func (KeyPair) isValue()                              {}
func (v KeyPair) Property(name string) (string, bool) { return keyPairAccessors.get(v, name) }
func (KeyPair) PropertyNames() []string               { return keyPairAccessors.names() }
