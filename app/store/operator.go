package store

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// Operator is the configured account allowed to manage mirror configs through the
// REST API. The control plane carries a single static operator instead of a user
// database, credentials come from startup options.
type Operator struct {
	Login    string `json:"login"`
	Password string `json:"password"` // bcrypt hash, never the plain password
}

// HashAndSalt replaces a plain password with its bcrypt hash
func (o *Operator) HashAndSalt() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "failed to hash operator password")
	}
	o.Password = string(hash)
	return nil
}

// ComparePassword checking password for match
func ComparePassword(passwordHash, passwordString string) bool {
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(passwordString)) == nil
}
