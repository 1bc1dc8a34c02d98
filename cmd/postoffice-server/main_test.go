package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/muurk/postoffice/internal/config"
	"github.com/muurk/postoffice/internal/logging"
)

// newServeFlags returns a command carrying the serve flags, parsed from args.
func newServeFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	cmd.Flags().StringVar(&name, "name", "", "")
	cmd.Flags().StringVar(&host, "host", "", "")
	cmd.Flags().IntVar(&port, "port", config.DefaultPort, "")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "")
	cmd.Flags().BoolVar(&advertise, "advertise", false, "")
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	return cmd
}

func TestApplyServeFlags(t *testing.T) {
	tests := []struct {
		name          string
		args          []string
		wantName      string
		wantHost      string
		wantPort      int
		wantAdvertise bool
	}{
		{
			name:     "no flags keeps file values",
			wantName: "postoffice",
			wantPort: config.DefaultPort,
		},
		{
			name:     "port zero overrides",
			args:     []string{"--port", "0"},
			wantName: "postoffice",
			wantPort: 0,
		},
		{
			name:          "all flags",
			args:          []string{"--name", "mail", "--host", "127.0.0.1", "--port", "2110", "--advertise"},
			wantName:      "mail",
			wantHost:      "127.0.0.1",
			wantPort:      2110,
			wantAdvertise: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := config.Default()
			applyServeFlags(newServeFlags(t, tt.args...), file)

			if file.Server.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", file.Server.Name, tt.wantName)
			}
			if file.Server.Host != tt.wantHost {
				t.Errorf("Host = %q, want %q", file.Server.Host, tt.wantHost)
			}
			if file.Server.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", file.Server.Port, tt.wantPort)
			}
			if file.Advertise.Enabled != tt.wantAdvertise {
				t.Errorf("Advertise.Enabled = %v, want %v", file.Advertise.Enabled, tt.wantAdvertise)
			}
		})
	}
}

func TestApplyServeFlags_NameRenamesInstance(t *testing.T) {
	file := config.Default()
	applyServeFlags(newServeFlags(t, "--name", "mail"), file)
	if file.Advertise.Instance != "mail" {
		t.Errorf("Advertise.Instance = %q, want mail", file.Advertise.Instance)
	}
}

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  string
		want string
	}{
		{"file value", nil, "", "info"},
		{"env beats file", nil, "warn", "warn"},
		{"flag beats env", []string{"--log-level", "debug"}, "warn", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(logging.LogLevelEnvVar, tt.env)
			got := resolveLogLevel(newServeFlags(t, tt.args...), config.Default())
			if got != tt.want {
				t.Errorf("resolveLogLevel() = %q, want %q", got, tt.want)
			}
		})
	}
}
