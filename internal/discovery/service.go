package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Service represents a postoffice server found on the network
type Service struct {
	// Instance is the advertised instance name (e.g., "postoffice")
	Instance string

	// Hostname is the mDNS hostname (e.g., "mailhost.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the advertised TCP port
	Port int

	// Metadata contains the TXT record data
	Metadata map[string]string

	// DiscoveredAt is when the service was seen
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the service
func (s *Service) String() string {
	return fmt.Sprintf("%s (%s) at %s", s.Instance, s.Hostname, s.Address())
}

// Address returns host:port suitable for net.Dial
func (s *Service) Address() string {
	return net.JoinHostPort(s.IP, strconv.Itoa(s.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (s *Service) GetMetadata(key string) string {
	if s.Metadata == nil {
		return ""
	}
	return s.Metadata[key]
}
