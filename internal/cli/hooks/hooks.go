// Package hooks turns engine events into TUI messages, console lines or log
// records.
package hooks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
)

// FileDiscoveredMsg signals that the walker accepted a document.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a document's status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   converter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg carries the final report.
type RunCompleteMsg struct{ Report converter.Report }

// TUIProgram is the part of *tea.Program the hooks need.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// NoOpTUIProgram drops every message.
type NoOpTUIProgram struct{}

func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// Mode selects where events go.
type Mode int

const (
	// ModeConsole prints one line per finished document.
	ModeConsole Mode = iota
	// ModeTUI forwards every event to the TUI program.
	ModeTUI
	// ModeVerbose logs every event through the logger.
	ModeVerbose
)

// CLIHooks implements converter.Hooks for the command line. It is safe for
// concurrent use by the engine's workers.
type CLIHooks struct {
	logger  *slog.Logger
	mode    Mode
	program TUIProgram
	out     io.Writer
	mu      sync.Mutex
}

// NewCLIHooks creates hooks for mode. program is only used in ModeTUI and
// out only in ModeConsole; nil values fall back to no-ops.
func NewCLIHooks(logger *slog.Logger, mode Mode, program TUIProgram, out io.Writer) *CLIHooks {
	if program == nil {
		program = &NoOpTUIProgram{}
	}
	if out == nil {
		out = io.Discard
	}
	return &CLIHooks{logger: logger, mode: mode, program: program, out: out}
}

// OnFileDiscovered implements converter.Hooks.
func (h *CLIHooks) OnFileDiscovered(path string) error {
	switch h.mode {
	case ModeTUI:
		h.program.Send(FileDiscoveredMsg{Path: path})
	case ModeVerbose:
		h.logger.Debug("Document discovered", slog.String("path", path))
	}
	return nil
}

// OnFileStatusUpdate implements converter.Hooks.
func (h *CLIHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	switch h.mode {
	case ModeTUI:
		h.program.Send(FileStatusUpdateMsg{Path: path, Status: status, Message: message, Duration: duration})
	case ModeVerbose:
		h.logStatus(path, status, message, duration)
	default:
		h.printStatus(path, status, message)
	}
	return nil
}

func (h *CLIHooks) logStatus(path string, status converter.Status, message string, duration time.Duration) {
	level := slog.LevelDebug
	msg := "Document status updated"
	attrs := []any{slog.String("path", path), slog.String("status", string(status))}
	if duration > 0 {
		attrs = append(attrs, slog.Duration("duration", duration))
	}
	switch status {
	case converter.StatusSuccess, converter.StatusSkipped:
		level = slog.LevelInfo
		if message != "" {
			attrs = append(attrs, slog.String("message", message))
		}
	case converter.StatusFailed:
		level = slog.LevelError
		msg = "Document failed"
		attrs = append(attrs, slog.String("error", message))
	}
	h.logger.Log(context.Background(), level, msg, attrs...)
}

func (h *CLIHooks) printStatus(path string, status converter.Status, message string) {
	var line string
	switch status {
	case converter.StatusSuccess:
		line = fmt.Sprintf("✓ %s\n", path)
	case converter.StatusFailed:
		line = fmt.Sprintf("✗ %s: %s\n", path, message)
	case converter.StatusSkipped:
		line = fmt.Sprintf("- %s (skipped: %s)\n", path, message)
	default:
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.out, line)
}

// OnRunComplete implements converter.Hooks. Outside the TUI the summary is
// printed by the caller.
func (h *CLIHooks) OnRunComplete(report converter.Report) error {
	if h.mode == ModeTUI {
		h.program.Send(RunCompleteMsg{Report: report})
	}
	return nil
}
