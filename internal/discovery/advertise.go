package discovery

import (
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"
)

const (
	// DefaultService is the mDNS service type postoffice servers announce
	DefaultService = "_postoffice._tcp"

	// DefaultDomain is the mDNS domain (typically "local.")
	DefaultDomain = "local."

	// DefaultInstance is used when no instance name is configured
	DefaultInstance = "postoffice"
)

// Config describes how a server announces itself.
type Config struct {
	Instance string
	Service  string
	Domain   string
	Text     []string
}

// withDefaults fills empty fields.
func (c Config) withDefaults() Config {
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.Service == "" {
		c.Service = DefaultService
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
	return c
}

// Validate checks that the service type has the "_name._tcp" shape DNS-SD
// requires. Empty fields are valid and take defaults.
func (c Config) Validate() error {
	c = c.withDefaults()

	labels := strings.Split(c.Service, ".")
	if len(labels) != 2 || len(labels[0]) < 2 || !strings.HasPrefix(labels[0], "_") || labels[1] != "_tcp" {
		return fmt.Errorf("service type %q must look like _name._tcp", c.Service)
	}
	for _, txt := range c.Text {
		if txt == "" || strings.HasPrefix(txt, "=") {
			return fmt.Errorf("invalid TXT record %q", txt)
		}
	}
	return nil
}

// Advertiser is a running mDNS announcement.
type Advertiser struct {
	server *zeroconf.Server
	config Config
	port   int
	logger *zap.Logger
}

// Advertise announces a server listening on port until Shutdown is called.
func Advertise(config Config, port int, logger *zap.Logger) (*Advertiser, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("cannot advertise invalid port %d", port)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config = config.withDefaults()

	srv, err := zeroconf.Register(config.Instance, config.Service, config.Domain, port, config.Text, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	logger.Info("Advertising service",
		zap.String("instance", config.Instance),
		zap.String("service", config.Service),
		zap.String("domain", config.Domain),
		zap.Int("port", port),
	)

	return &Advertiser{server: srv, config: config, port: port, logger: logger}, nil
}

// Shutdown withdraws the announcement. It is safe to call on a nil Advertiser.
func (a *Advertiser) Shutdown() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("Stopped advertising service",
		zap.String("instance", a.config.Instance),
		zap.Int("port", a.port),
	)
}
