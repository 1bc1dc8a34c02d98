// Package ui renders the curated terminal output of the postoffice commands.
//
// It is deliberately small: a startup header listing the effective server
// settings and coloured one-line status messages. Styling uses lipgloss and
// the shared palette in styles.go.
//
// # Components
//
//   - Header: Title, command path and ordered parameters in a rounded box
//   - Status: Green or red single line for outcomes
//
// When stdout is not a terminal (systemd, pipes, CI), Header.String and Status
// fall back to plain text so log collectors do not receive escape sequences.
//
// Example:
//
//	h := ui.NewHeader("Postoffice Server", "postoffice-server serve",
//	    ui.Param{Key: "Port", Value: "1110"},
//	    ui.Param{Key: "Handler", Value: "echo"},
//	)
//	fmt.Println(h)
//
// # Logging Integration
//
// Zap logging is controlled separately via the POSTOFFICE_LOG_LEVEL
// environment variable or the --log-level flag. The header is printed once
// at startup, right after the listener is bound.
package ui
