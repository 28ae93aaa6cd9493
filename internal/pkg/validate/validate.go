package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Email.
var v = validator.New()

// Email validates an address against the standard local@domain.tld shape.
// The validator's email tag accepts dotless domains, so the TLD requirement
// is enforced separately.
func Email(addr string) error {
	if err := v.Var(addr, "required,email"); err != nil {
		return fmt.Errorf("invalid email address %q", addr)
	}
	domain := addr[strings.LastIndex(addr, "@")+1:]
	if !strings.Contains(domain, ".") {
		return fmt.Errorf("email domain %q has no TLD", domain)
	}
	return nil
}
