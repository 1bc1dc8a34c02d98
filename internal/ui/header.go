package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Param is one labelled value shown in a header. Params keep their order.
type Param struct {
	Key   string
	Value string
}

// Header represents a command header with title, command, and parameters.
// The server prints one at startup.
type Header struct {
	Title   string  // e.g., "POSTOFFICE SERVER"
	Command string  // e.g., "postoffice-server serve"
	Params  []Param // e.g., {"Port", "1110"}
	Width   int     // Terminal width for responsive rendering
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params ...Param) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := h.Width
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}

	titleLine := HeaderTitleStyle.Render(strings.ToUpper(h.Title))
	commandLine := HeaderCommandStyle.Render(h.Command)
	topSection := lipgloss.JoinVertical(lipgloss.Left, titleLine, commandLine)

	if len(h.Params) == 0 {
		return headerBorder(width).Render(topSection)
	}

	dividerWidth := width - 6 // Account for border and padding
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	divider := lipgloss.NewStyle().
		Foreground(PrimaryColor).
		Render(strings.Repeat("─", dividerWidth))

	keyWidth := h.keyWidth()
	paramLines := make([]string, 0, len(h.Params))
	for _, p := range h.Params {
		key := HeaderParamKeyStyle.Render(fmt.Sprintf("%-*s", keyWidth+1, p.Key+":"))
		paramLines = append(paramLines, key+" "+HeaderParamValueStyle.Render(p.Value))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, topSection, divider, strings.Join(paramLines, "\n"))
	return headerBorder(width).Render(content)
}

// Plain returns the header without styling, for logs and non-terminals
func (h *Header) Plain() string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(h.Title))
	if h.Command != "" {
		b.WriteString(" (" + h.Command + ")")
	}
	b.WriteString("\n")

	keyWidth := h.keyWidth()
	for _, p := range h.Params {
		fmt.Fprintf(&b, "  %-*s %s\n", keyWidth+1, p.Key+":", p.Value)
	}
	return b.String()
}

// String renders for a terminal and falls back to plain text otherwise
func (h *Header) String() string {
	if IsTerminal() {
		return h.Render()
	}
	return h.Plain()
}

func (h *Header) keyWidth() int {
	w := 0
	for _, p := range h.Params {
		if len(p.Key) > w {
			w = len(p.Key)
		}
	}
	return w
}

func headerBorder(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2) // Account for border characters
}

// Status renders a one-line status message, green when ok and red otherwise
func Status(ok bool, msg string) string {
	if !IsTerminal() {
		return msg
	}
	if ok {
		return StatusOKStyle.Render(msg)
	}
	return StatusErrorStyle.Render(msg)
}
