// Postoffice-server runs a line-oriented TCP server with the built-in echo
// protocol.
//
// It binds a port, greets every client and answers each command line until
// the client quits or disconnects. Optionally it announces itself over mDNS
// so clients on the local network can find it.
//
// Usage:
//
//	postoffice-server serve [flags]
//
// See 'postoffice-server --help' for available commands.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/postoffice/internal/config"
	"github.com/muurk/postoffice/internal/discovery"
	"github.com/muurk/postoffice/internal/echo"
	"github.com/muurk/postoffice/internal/logging"
	"github.com/muurk/postoffice/internal/server"
	"github.com/muurk/postoffice/internal/ui"
	"github.com/muurk/postoffice/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "postoffice-server",
	Short: "Line-oriented TCP server",
	Long: `A small TCP server for line-oriented text protocols.

Every client is greeted on connect and each line it sends is dispatched
by its first word. The built-in echo protocol answers NOOP, ECHO, STAT,
HELP and QUIT.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var configPath string

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: OS config directory)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Serve command and flags
var (
	name      string
	host      string
	port      int
	logLevel  string
	advertise bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start accepting client connections.

Settings come from the config file; flags given on the command line
override it. The log level is taken from --log-level, then the
POSTOFFICE_LOG_LEVEL environment variable, then the config file.`,
	Example: `  # Listen on the default port
  postoffice-server serve

  # Let the OS pick a port and log every line
  postoffice-server serve --port 0 --log-level debug

  # Announce the server over mDNS
  postoffice-server serve --advertise`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&name, "name", "", "Server name used in greetings and logs")
	serveCmd.Flags().StringVar(&host, "host", "", "Interface to bind (empty = all interfaces)")
	serveCmd.Flags().IntVar(&port, "port", config.DefaultPort, "TCP port (0 = OS-assigned)")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().BoolVar(&advertise, "advertise", false, "Announce the server over mDNS")
}

func runServe(cmd *cobra.Command, args []string) error {
	file, err := config.Load(configPath)
	if err != nil {
		return err
	}
	applyServeFlags(cmd, file)
	if err := file.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(resolveLogLevel(cmd, file))
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	srv, err := server.New(file.ServerConfig(logger), echo.New(file.Server.Name))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var adv *discovery.Advertiser
	if file.Advertise.Enabled {
		adv, err = discovery.Advertise(file.DiscoveryConfig(), srv.Port(), logger)
		if err != nil {
			// The server is still reachable by address.
			logger.Warn("mDNS advertising failed", zap.Error(err))
		}
	}
	defer adv.Shutdown()

	fmt.Println(startupHeader(srv, file))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Run()
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping server...")
		if err := srv.Close(); err != nil {
			logger.Warn("Failed to close listener", zap.Error(err))
		}
		<-errChan
		fmt.Println(ui.Status(true, "Server stopped"))
		return nil
	case err := <-errChan:
		fmt.Println(ui.Status(false, "Server stopped"))
		return err
	}
}

// applyServeFlags copies explicitly set flags over the file values
func applyServeFlags(cmd *cobra.Command, file *config.File) {
	flags := cmd.Flags()
	if flags.Changed("name") {
		file.Server.Name = name
		file.Advertise.Instance = name
	}
	if flags.Changed("host") {
		file.Server.Host = host
	}
	if flags.Changed("port") {
		file.Server.Port = port
	}
	if flags.Changed("advertise") {
		file.Advertise.Enabled = advertise
	}
}

func resolveLogLevel(cmd *cobra.Command, file *config.File) string {
	if cmd.Flags().Changed("log-level") {
		return logLevel
	}
	if env := os.Getenv(logging.LogLevelEnvVar); env != "" {
		return env
	}
	return file.LogLevel()
}

func startupHeader(srv *server.Server, file *config.File) *ui.Header {
	adv := "off"
	if file.Advertise.Enabled {
		adv = file.DiscoveryConfig().Service
	}
	return ui.NewHeader("Postoffice Server", "postoffice-server serve",
		ui.Param{Key: "Name", Value: srv.Name()},
		ui.Param{Key: "Address", Value: srv.Addr().String()},
		ui.Param{Key: "Port", Value: strconv.Itoa(srv.Port())},
		ui.Param{Key: "Protocol", Value: "echo"},
		ui.Param{Key: "Advertise", Value: adv},
	)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("postoffice-server %s\n", version.Full())
	},
}
