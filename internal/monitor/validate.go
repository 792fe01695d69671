package monitor

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// ValidationError reports user input that was rejected before any state changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

var (
	domainPattern   = regexp.MustCompile(`^([a-zA-Z0-9-_]+\.)*[a-zA-Z0-9][a-zA-Z0-9-_]+\.[a-zA-Z]{2,11}$`)
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,16}$`)
)

// ValidAddress accepts a domain name or a dotted IPv4 address.
func ValidAddress(addr string) bool {
	if domainPattern.MatchString(addr) {
		return true
	}
	ip, err := netip.ParseAddr(addr)
	return err == nil && ip.Is4()
}

func ValidPort(port int) bool {
	return port >= 1 && port <= 65535
}

// ValidUsername matches Minecraft account names.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}

func validateServer(in ServerInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(in.Address) == "" {
		return &ValidationError{Field: "address", Message: "is required"}
	}
	if !ValidAddress(in.Address) {
		return &ValidationError{Field: "address", Message: "must be a domain name or IPv4 address"}
	}
	if in.Port != 0 && !ValidPort(in.Port) {
		return &ValidationError{Field: "port", Message: "must be between 1 and 65535"}
	}
	if in.MaxPlayers < 0 {
		return &ValidationError{Field: "maxPlayers", Message: "must not be negative"}
	}
	return nil
}
