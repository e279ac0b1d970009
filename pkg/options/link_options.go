package options

import (
	"errors"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*LinkOptions)(nil)

// LinkOptions contains configuration for the vehicle link.
type LinkOptions struct {
	// Address of the flight-controller endpoint (e.g., "udp://:14540").
	Address string `json:"address" mapstructure:"address"`

	// HandshakeTimeout bounds the whole connect attempt.
	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`

	// PollInterval is how often the handshake progress is checked.
	PollInterval time.Duration `json:"poll-interval" mapstructure:"poll-interval"`
}

// NewLinkOptions creates a LinkOptions object with default parameters.
func NewLinkOptions() *LinkOptions {
	return &LinkOptions{
		Address:          "udp://:14540",
		HandshakeTimeout: 30 * time.Second,
		PollInterval:     500 * time.Millisecond,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *LinkOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if o.Address == "" {
		errs = append(errs, errors.New("link address is required"))
	}
	if o.HandshakeTimeout <= 0 {
		errs = append(errs, errors.New("link handshake timeout must be positive"))
	}
	if o.PollInterval <= 0 || o.PollInterval > o.HandshakeTimeout {
		errs = append(errs, errors.New("link poll interval must be positive and below the handshake timeout"))
	}

	return errs
}

// AddFlags adds flags related to the vehicle link to the specified FlagSet.
func (o *LinkOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Address, "link.address", o.Address, "Flight-controller endpoint address.")
	fs.DurationVar(&o.HandshakeTimeout, "link.handshake-timeout", o.HandshakeTimeout, "Overall timeout for the link handshake.")
	fs.DurationVar(&o.PollInterval, "link.poll-interval", o.PollInterval, "Polling interval while waiting for the handshake.")
}
