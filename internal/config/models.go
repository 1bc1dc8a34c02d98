package config

import (
	"github.com/muurk/postoffice/internal/discovery"
	"github.com/muurk/postoffice/internal/server"
)

// CurrentVersion is the config file format this build reads and writes.
const CurrentVersion = 1

// File represents the entire configuration file.
type File struct {
	Version   int        `yaml:"version"`
	Server    *Server    `yaml:"server"`
	Logging   *Logging   `yaml:"logging,omitempty"`
	Advertise *Advertise `yaml:"advertise,omitempty"`
}

// Server holds listener settings.
type Server struct {
	Name       string `yaml:"name,omitempty"`        // Tags every log line
	Host       string `yaml:"host"`                  // Empty = all interfaces
	Port       int    `yaml:"port"`                  // 0 = OS-assigned
	RecvBuffer int    `yaml:"recv_buffer,omitempty"` // SO_RCVBUF bytes (0 = server default, -1 = OS default)
}

// Logging holds log output settings.
type Logging struct {
	Level string `yaml:"level"` // debug, info, warn, error (empty = silent)
}

// Advertise holds mDNS service announcement settings.
type Advertise struct {
	Enabled  bool     `yaml:"enabled"`
	Instance string   `yaml:"instance,omitempty"` // Instance name shown to browsers
	Service  string   `yaml:"service,omitempty"`  // e.g. "_postoffice._tcp"
	Domain   string   `yaml:"domain,omitempty"`   // Usually "local."
	Text     []string `yaml:"text,omitempty"`     // TXT records, "key=value"
}

// DefaultPort is the port used when the config does not name one.
const DefaultPort = 1110

// Default returns a configuration with default values.
func Default() *File {
	return &File{
		Version: CurrentVersion,
		Server: &Server{
			Name: server.DefaultName,
			Port: DefaultPort,
		},
		Logging: &Logging{
			Level: "info",
		},
		Advertise: &Advertise{
			Enabled:  false,
			Instance: discovery.DefaultInstance,
			Service:  discovery.DefaultService,
			Domain:   discovery.DefaultDomain,
		},
	}
}

// fillDefaults replaces missing sections with their defaults.
func (f *File) fillDefaults() {
	def := Default()
	if f.Server == nil {
		f.Server = def.Server
	}
	if f.Logging == nil {
		f.Logging = def.Logging
	}
	if f.Advertise == nil {
		f.Advertise = def.Advertise
	}
}
