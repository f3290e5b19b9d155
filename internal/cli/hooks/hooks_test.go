package hooks

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var _ TUIProgram = (*tea.Program)(nil)

type MockTUIProgram struct {
	mock.Mock
}

func (m *MockTUIProgram) Send(msg tea.Msg) {
	m.Called(msg)
}

var _ converter.Hooks = (*CLIHooks)(nil)

func jsonLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestCLIHooks_TUIModeForwardsEvents(t *testing.T) {
	prog := new(MockTUIProgram)
	prog.On("Send", FileDiscoveredMsg{Path: "a.md"}).Once()
	prog.On("Send", FileStatusUpdateMsg{Path: "a.md", Status: converter.StatusSuccess, Message: "/out/a.md", Duration: time.Second}).Once()
	prog.On("Send", mock.AnythingOfType("RunCompleteMsg")).Once()

	var logBuf, out bytes.Buffer
	h := NewCLIHooks(jsonLogger(&logBuf), ModeTUI, prog, &out)
	require.NoError(t, h.OnFileDiscovered("a.md"))
	require.NoError(t, h.OnFileStatusUpdate("a.md", converter.StatusSuccess, "/out/a.md", time.Second))
	require.NoError(t, h.OnRunComplete(converter.Report{}))

	prog.AssertExpectations(t)
	assert.Empty(t, logBuf.String())
	assert.Empty(t, out.String())
}

func TestCLIHooks_VerboseModeLogs(t *testing.T) {
	var logBuf bytes.Buffer
	h := NewCLIHooks(jsonLogger(&logBuf), ModeVerbose, nil, nil)
	require.NoError(t, h.OnFileDiscovered("a.md"))
	require.NoError(t, h.OnFileStatusUpdate("a.md", converter.StatusProcessing, "", 0))
	require.NoError(t, h.OnFileStatusUpdate("a.md", converter.StatusFailed, "parse error", 5*time.Millisecond))

	lines := strings.Split(strings.TrimSpace(logBuf.String()), "\n")
	require.Len(t, lines, 3)
	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, "ERROR", last["level"])
	assert.Equal(t, "Document failed", last["msg"])
	assert.Equal(t, "a.md", last["path"])
	assert.Equal(t, "parse error", last["error"])
}

func TestCLIHooks_ConsoleModePrintsFinalStates(t *testing.T) {
	var logBuf, out bytes.Buffer
	h := NewCLIHooks(jsonLogger(&logBuf), ModeConsole, nil, &out)
	require.NoError(t, h.OnFileDiscovered("a.md"))
	require.NoError(t, h.OnFileStatusUpdate("a.md", converter.StatusProcessing, "", 0))
	require.NoError(t, h.OnFileStatusUpdate("a.md", converter.StatusSuccess, "/out/a.md", time.Millisecond))
	require.NoError(t, h.OnFileStatusUpdate("b.md", converter.StatusFailed, "boom", 0))
	require.NoError(t, h.OnFileStatusUpdate("c.md", converter.StatusSkipped, "binary content detected", 0))
	require.NoError(t, h.OnRunComplete(converter.Report{}))

	assert.Equal(t, "✓ a.md\n✗ b.md: boom\n- c.md (skipped: binary content detected)\n", out.String())
	assert.Empty(t, logBuf.String())
}
