package mailer

import (
	"fmt"
	"net/mail"
	"strings"
)

// validateAddress checks that addr is a bare RFC 5322 address with a
// dotted domain.
func validateAddress(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return err
	}
	if parsed.Name != "" || parsed.Address != addr {
		return fmt.Errorf("%q must be a bare address", addr)
	}
	if !isValidDomain(domainOf(addr)) {
		return fmt.Errorf("%q has an invalid domain", addr)
	}
	return nil
}

func domainOf(addr string) string {
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return ""
	}
	return addr[at+1:]
}

func isValidDomain(domain string) bool {
	if domain == "" {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return strings.Contains(domain, ".")
}
