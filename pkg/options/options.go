package options

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/pflag"
)

// IOptions defines methods to implement a generic options group.
type IOptions interface {
	// Validate validates all the required options.
	Validate() []error

	// AddFlags adds flags related to the given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// ValidateAddress takes an address as a string and validates it.
// If the input address is not in a valid host:port format, an error is returned.
func ValidateAddress(addr string) error {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q is not in a valid format (host:port): %w", addr, err)
	}
	if host != "" && net.ParseIP(host) == nil {
		// Allow hostnames; only reject the empty segments SplitHostPort lets through.
		if host == ":" {
			return fmt.Errorf("%q contains an invalid host", addr)
		}
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("%q contains an invalid port: %w", addr, err)
	}

	return nil
}
