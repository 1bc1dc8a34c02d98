package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/postoffice/internal/config"
	"github.com/muurk/postoffice/internal/discovery"
	"github.com/muurk/postoffice/internal/ui"
)

// Command flags
var (
	forceInit    bool
	scanTimeout  int
	scanInstance string
	scanService  string
	scanPlain    bool
)

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(discoverCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Example: `  # Write to the OS config directory
  postoffice-server config init

  # Write next to the binary, replacing an existing file
  postoffice-server config init --config ./postoffice.yaml --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		p, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot access config file: %w", err)
	}

	if err := config.Default().Save(path); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration that 'serve' would use, with defaults
filled in for anything the file leaves out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := config.Load(configPath)
		if err != nil {
			return err
		}
		data, err := file.Marshal()
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find postoffice servers on the local network",
	Long: `Browse mDNS for servers started with --advertise and list the
address each one announced.`,
	Example: `  # List everything answering within 5 seconds
  postoffice-server discover

  # Plain output for scripts
  postoffice-server discover --plain

  # Wait for one named server
  postoffice-server discover --instance mail --timeout 10`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", int(discovery.DefaultScanTimeout/time.Second), "Scan timeout in seconds")
	discoverCmd.Flags().StringVar(&scanInstance, "instance", "", "Stop at the first server with this instance name")
	discoverCmd.Flags().StringVar(&scanService, "service", discovery.DefaultService, "DNS-SD service type to browse")
	discoverCmd.Flags().BoolVar(&scanPlain, "plain", false, "Print results as text instead of the interactive screen")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	scanner := discovery.NewScanner()
	scanner.Timeout = time.Duration(scanTimeout) * time.Second
	scanner.Service = scanService

	ctx := cmd.Context()

	if scanInstance != "" {
		svc, err := scanner.Find(ctx, scanInstance)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s\n", svc.Instance, svc.Address())
		return nil
	}

	if !scanPlain && ui.IsTerminal() {
		final, err := tea.NewProgram(ui.NewScanModel(scanner.Service, scanner.Timeout, scanner.Scan)).Run()
		if err != nil {
			return fmt.Errorf("discovery screen failed: %w", err)
		}
		if m, ok := final.(ui.ScanModel); ok && m.Err != nil {
			return m.Err
		}
		return nil
	}

	fmt.Printf("Scanning for %s (timeout: %ds)...\n\n", scanner.Service, scanTimeout)

	services, err := scanner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(services) == 0 {
		fmt.Println("No servers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start the server with --advertise")
		fmt.Println("  - Multicast traffic may be blocked between subnets")
		fmt.Println("  - Try increasing --timeout")
		return nil
	}

	fmt.Printf("Found %d server(s):\n\n", len(services))
	for i, svc := range services {
		fmt.Printf("%d. %s\n", i+1, svc.Instance)
		fmt.Printf("   Address:  %s\n", svc.Address())
		if svc.Hostname != "" {
			fmt.Printf("   Host:     %s\n", svc.Hostname)
		}
		if len(svc.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", svc.Metadata)
		}
		fmt.Println()
	}
	return nil
}
