package link

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrInvalidConnectionString is returned for strings not matching
	// protocol:host:port.
	ErrInvalidConnectionString = errors.New("link: invalid connection string")

	// ErrUnsupportedProtocol is returned when the endpoint protocol cannot
	// be dialed by this core.
	ErrUnsupportedProtocol = errors.New("link: unsupported protocol")
)

var connStringPattern = regexp.MustCompile(`^(tcp|udp|udpin):[^:]+:[0-9]+$`)

// Endpoint is the transport descriptor of one vehicle: the local address the
// link binds to. The remote peer is never configured, it is learned from
// inbound traffic.
type Endpoint struct {
	Protocol string `yaml:"protocol"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
}

// ParseConnectionString parses a protocol:host:port descriptor such as
// "udp:0.0.0.0:14550".
func ParseConnectionString(s string) (Endpoint, error) {
	if !connStringPattern.MatchString(s) {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrInvalidConnectionString, s)
	}
	parts := strings.SplitN(s, ":", 3)
	port, err := strconv.Atoi(parts[2])
	if err != nil || port < 0 || port > 65535 {
		return Endpoint{}, fmt.Errorf("%w: port in %q", ErrInvalidConnectionString, s)
	}
	return Endpoint{Protocol: parts[0], Host: parts[1], Port: port}, nil
}

// String renders the endpoint back to its connection-string form.
func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%s:%d", e.Protocol, e.Host, e.Port)
}

// BindAddr returns the host:port the link binds to.
func (e Endpoint) BindAddr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}
