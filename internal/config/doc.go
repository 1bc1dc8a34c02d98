// Package config provides configuration file management for postoffice servers.
//
// The configuration is a small YAML document describing the listener, the log
// level and optional mDNS advertisement. Command line flags override values
// loaded from the file.
//
// # Configuration File Location
//
// Without an explicit path the file is looked up in platform-appropriate
// locations:
//   - Linux: $XDG_CONFIG_HOME/postoffice/config.yaml or $HOME/.config/postoffice/config.yaml
//   - macOS: $HOME/.config/postoffice/config.yaml
//   - Windows: %LOCALAPPDATA%\postoffice\config.yaml
//
// # File Format
//
//	version: 1
//	server:
//	  name: pop3
//	  host: ""
//	  port: 1110
//	  recv_buffer: 1048576
//	logging:
//	  level: info
//	advertise:
//	  enabled: true
//	  instance: postoffice
//	  service: _postoffice._tcp
//	  domain: local.
//
// # Usage Example
//
//	file, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.New(file.ServerConfig(logger), handler)
//
// A missing file yields the defaults. Sections left out of the file take
// their default values.
//
// # Thread Safety
//
// Save is serialized by a package mutex and writes atomically (temporary file
// plus rename).
package config
