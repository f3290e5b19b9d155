package converter_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmadden/readme-docs-migration-github/internal/testutil"
	"github.com/jmadden/readme-docs-migration-github/pkg/converter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const guideExpected = "---\ntitle: Guide\ndeprecated: false\nhidden: false\nmetadata:\n  robots: index\n---\n\n# Intro\n\nHello.\n"

// migration lays out a working root with a docs/ source tree and returns
// options writing to root/out.
type migration struct {
	t    *testing.T
	root string
	opts converter.Options
}

func newMigration(t *testing.T) *migration {
	t.Helper()
	root := t.TempDir()
	return &migration{
		t:    t,
		root: root,
		opts: converter.Options{
			RootPath:    root,
			InputPath:   "docs",
			OutputPath:  filepath.Join(root, "out"),
			Concurrency: 2,
			Logger:      discardHandler(),
		},
	}
}

func (m *migration) doc(rel, content string) {
	testutil.CreateDummyFile(m.t, filepath.Join(m.root, "docs", filepath.FromSlash(rel)), content)
}

func (m *migration) out(rel string) string {
	return filepath.Join(m.opts.OutputPath, filepath.FromSlash(rel))
}

func (m *migration) run() (converter.Report, error) {
	return converter.GenerateDocs(context.Background(), m.opts)
}

func auditRowsOfType(t *testing.T, path, typ string) [][]string {
	t.Helper()
	var rows [][]string
	for _, r := range readCSV(t, path)[1:] {
		if r[0] == typ {
			rows = append(rows, r)
		}
	}
	return rows
}

func TestGenerateDocs_ConvertsTree(t *testing.T) {
	m := newMigration(t)
	m.doc("guide.md", "---\nsidebar_label: \"Guide\"\nsidebar_position: 2\n---\n# Intro\n\nHello.\n")
	m.doc("sub/tip.md", ":::tip\nDo X.\n:::\n")
	m.doc("sub/imports.md", "import Tabs from '@theme/Tabs';\n\n# Tabs\n\ntext\n")
	m.doc("broken.md", "<Note>\n\ntext\n")
	m.doc("ignored.mdx", "# Not included\n")

	report, err := m.run()
	require.NoError(t, err)

	assert.Equal(t, guideExpected, testutil.ReadFile(t, m.out("guide.md")))
	assert.Equal(t,
		"---\ntitle: Untitled\ndeprecated: false\nhidden: false\nmetadata:\n  robots: index\n---\n\n"+
			"<Callout icon=\"👍\" theme=\"okay\">\n  **Tip**\n\n  Do X.\n</Callout>\n",
		testutil.ReadFile(t, m.out("sub/tip.md")))
	imports := testutil.ReadFile(t, m.out("sub/imports.md"))
	assert.Contains(t, imports, "title: Tabs\n")
	assert.NotContains(t, imports, "import Tabs")
	assert.NoFileExists(t, m.out("broken.md"))
	assert.NoFileExists(t, m.out("ignored.md"))

	assert.Equal(t, 4, report.Summary.TotalFilesScanned)
	assert.Equal(t, 3, report.Summary.ProcessedCount)
	assert.Equal(t, 1, report.Summary.ErrorCount)
	assert.False(t, report.Summary.FatalErrorOccurred)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "broken.md", report.Errors[0].Path)
	assert.False(t, report.Errors[0].IsFatal)
	assert.Equal(t, converter.ReportSchemaVersion, report.Summary.SchemaVersion)
	assert.Equal(t, filepath.Join(m.opts.OutputPath, converter.AuditLogFileName), report.Summary.AuditLogPath)

	auditPath := m.out(converter.AuditLogFileName)
	failed := auditRowsOfType(t, auditPath, converter.AuditProcessingFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "broken.md", failed[0][1])
	for _, r := range readCSV(t, auditPath)[1:] {
		if r[1] == "broken.md" {
			assert.Equal(t, converter.AuditProcessingFailed, r[0], "a failed document contributes only its failure row")
		}
	}
	removed := auditRowsOfType(t, auditPath, converter.AuditRemovedImports)
	require.Len(t, removed, 1)
	assert.Equal(t, "sub/imports.md", removed[0][1])
	assert.Equal(t, "import Tabs from '@theme/Tabs';", removed[0][3])

	assert.FileExists(t, m.out(converter.LandingFileName))
	assert.FileExists(t, m.out("sub/"+converter.LandingFileName))
	assert.FileExists(t, m.out(converter.ReportFileName))
	assert.NoFileExists(t, m.out(converter.ManifestFileName))
}

func TestGenerateDocs_SkipsBinaryAndIgnored(t *testing.T) {
	m := newMigration(t)
	m.doc("ok.md", "# OK\n")
	m.doc("blob.md", "\x00\x01\x02\x03binary")
	m.doc("drafts/wip.md", "# WIP\n")
	m.opts.IgnorePatterns = []string{"drafts/"}

	report, err := m.run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.ProcessedCount)
	assert.Equal(t, 2, report.Summary.SkippedCount)

	reasons := map[string]string{}
	for _, s := range report.SkippedFiles {
		reasons[s.Path] = s.Reason
	}
	assert.Equal(t, map[string]string{"blob.md": converter.SkipReasonBinary, "drafts": converter.SkipReasonIgnored}, reasons)
}

func TestGenerateDocs_UploadsImages(t *testing.T) {
	m := newMigration(t)
	testutil.CreateDummyFile(t, filepath.Join(m.root, "static", "img", "a.png"), "png")
	m.doc("pics.md", "# Pics\n\n![Alt](/img/a.png)\n\n![Gone](/img/missing.png)\n\n![Again](/img/a.png)\n")

	local := filepath.Join(m.root, "static", "img", "a.png")
	up := new(testutil.MockUploader)
	up.On("Upload", mock.Anything, local).Return("https://files.readme.io/a.png", nil).Once()
	m.opts.UploadImages = true
	m.opts.ImagesRoot = "static"
	m.opts.ImageUploader = up

	report, err := m.run()
	require.NoError(t, err)
	up.AssertExpectations(t)

	out := testutil.ReadFile(t, m.out("pics.md"))
	assert.Contains(t, out, "![Alt](https://files.readme.io/a.png)")
	assert.Contains(t, out, "![Again](https://files.readme.io/a.png)")
	assert.Contains(t, out, "![Gone](/img/missing.png)")

	assert.Equal(t, 1, report.Summary.UploadedCount)
	assert.Equal(t, 1, report.Summary.WarningCount)
	assert.Equal(t, "readme", report.Summary.Flags.Uploader)

	assert.Equal(t, [][]string{
		converter.ManifestHeader,
		{"pics.md", "/img/a.png", local, "https://files.readme.io/a.png"},
	}, readCSV(t, m.out(converter.ManifestFileName)))

	auditPath := m.out(converter.AuditLogFileName)
	found := auditRowsOfType(t, auditPath, converter.AuditFoundImages)
	require.Len(t, found, 1)
	assert.Equal(t, "/img/a.png\n/img/missing.png", found[0][4])
	missing := auditRowsOfType(t, auditPath, converter.AuditImageNotFound)
	require.Len(t, missing, 1)
	assert.Equal(t, "/img/missing.png", missing[0][4])
}

func TestGenerateDocs_UploadFailureKeepsDocument(t *testing.T) {
	m := newMigration(t)
	testutil.CreateDummyFile(t, filepath.Join(m.root, "img", "a.png"), "png")
	m.doc("pics.md", "![A](img/a.png)\n")

	up := new(testutil.MockUploader)
	up.On("Upload", mock.Anything, mock.Anything).Return("", errors.New("503 unavailable"))
	m.opts.UploadImages = true
	m.opts.ImageUploader = up

	report, err := m.run()
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.ProcessedCount)
	assert.Equal(t, 0, report.Summary.UploadedCount)
	assert.Contains(t, testutil.ReadFile(t, m.out("pics.md")), "![A](img/a.png)")

	failed := auditRowsOfType(t, m.out(converter.AuditLogFileName), converter.AuditUploadFailed)
	require.Len(t, failed, 1)
	assert.Contains(t, failed[0][2], "503 unavailable")
}

func TestGenerateDocs_MoveMapFlatAndMirror(t *testing.T) {
	m := newMigration(t)
	m.doc("a/b/page.md", "# Page\n")
	m.doc("a/other.md", "# Other\n")
	m.doc("a/lost.md", "# Lost\n")
	testutil.CreateDummyDir(t, m.out("guides"))
	testutil.CreateDummyFile(t, filepath.Join(m.root, "moves.csv"), "file,destination\nPAGE.md,out/guides\nlost.md,out/nowhere\n")
	m.opts.MoveMapPath = "moves.csv"
	m.opts.Flat = true
	m.opts.MirrorPath = filepath.Join(m.root, "mirror")

	report, err := m.run()
	require.NoError(t, err)
	assert.Equal(t, 3, report.Summary.ProcessedCount)

	assert.FileExists(t, m.out("guides/page.md"))
	assert.FileExists(t, m.out("other.md"))
	assert.FileExists(t, m.out("lost.md"))
	assert.NoFileExists(t, m.out("a/b/page.md"))

	mirror := func(rel string) string { return filepath.Join(m.opts.MirrorPath, filepath.FromSlash(rel)) }
	assert.Equal(t, testutil.ReadFile(t, m.out("guides/page.md")), testutil.ReadFile(t, mirror("a/b/page.md")))
	assert.FileExists(t, mirror("a/other.md"))
	assert.FileExists(t, mirror(converter.AuditLogFileName))
	assert.FileExists(t, mirror(converter.ReportFileName))
	assert.FileExists(t, mirror("a/b/"+converter.LandingFileName))

	auditPath := m.out(converter.AuditLogFileName)
	moved := auditRowsOfType(t, auditPath, converter.AuditMoved)
	require.Len(t, moved, 1)
	assert.Equal(t, "a/b/page.md", moved[0][1])
	destMissing := auditRowsOfType(t, auditPath, converter.AuditMoveDestMissing)
	require.Len(t, destMissing, 1)
	assert.Equal(t, "a/lost.md", destMissing[0][1])
}

func TestGenerateDocs_StopOnError(t *testing.T) {
	m := newMigration(t)
	m.doc("a_broken.md", "<Note>\n\ntext\n")
	m.doc("z_fine.md", "# Fine\n")
	m.opts.OnErrorMode = converter.OnErrorStop
	m.opts.Concurrency = 1

	report, err := m.run()
	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrFatalRun)
	assert.True(t, report.Summary.FatalErrorOccurred)
	require.NotEmpty(t, report.Errors)
	assert.True(t, report.Errors[0].IsFatal)
	assert.FileExists(t, m.out(converter.ReportFileName))
	assert.NoFileExists(t, m.out(converter.LandingFileName), "finalization is skipped after a fatal stop")

	rows := readCSV(t, m.out(converter.AuditLogFileName))
	last := rows[len(rows)-1]
	assert.Equal(t, converter.AuditRunFailed, last[0], "the run failure is the final audit row")
	assert.Empty(t, last[1])
	assert.Contains(t, last[2], "a_broken.md")
}

func TestGenerateDocs_SuccessfulRunHasNoRunFailedRow(t *testing.T) {
	m := newMigration(t)
	m.doc("guide.md", "# Guide\n")

	_, err := m.run()
	require.NoError(t, err)
	assert.Empty(t, auditRowsOfType(t, m.out(converter.AuditLogFileName), converter.AuditRunFailed))
}

func TestGenerateDocs_Cancelled(t *testing.T) {
	m := newMigration(t)
	m.doc("a.md", "# A\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := converter.GenerateDocs(ctx, m.opts)
	assert.ErrorIs(t, err, converter.ErrFatalRun)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerateDocs_InvalidOptions(t *testing.T) {
	m := newMigration(t)
	m.opts.Logger = nil
	_, err := m.run()
	assert.ErrorIs(t, err, converter.ErrConfigValidation)

	m = newMigration(t)
	_, err = m.run()
	assert.ErrorIs(t, err, converter.ErrConfigValidation, "source directory does not exist")

	m = newMigration(t)
	m.doc("a.md", "# A\n")
	m.opts.MoveMapPath = "missing.csv"
	_, err = m.run()
	assert.ErrorIs(t, err, converter.ErrFatalRun)
	assert.ErrorIs(t, err, converter.ErrMoveMap)
}

func TestGenerateDocs_Hooks(t *testing.T) {
	m := newMigration(t)
	m.doc("a.md", "# A\n")
	m.doc("bad.md", "<Note>\n\ntext\n")

	hooks := new(testutil.MockHooks)
	hooks.On("OnFileDiscovered", mock.Anything).Return(nil).Twice()
	hooks.On("OnFileStatusUpdate", mock.Anything, converter.StatusProcessing, "", mock.Anything).Return(nil).Twice()
	hooks.On("OnFileStatusUpdate", "a.md", converter.StatusSuccess, m.out("a.md"), mock.Anything).Return(nil).Once()
	hooks.On("OnFileStatusUpdate", "bad.md", converter.StatusFailed, mock.AnythingOfType("string"), mock.Anything).Return(errors.New("ui gone")).Once()
	hooks.On("OnRunComplete", mock.MatchedBy(func(r converter.Report) bool {
		return r.Summary.ProcessedCount == 1 && r.Summary.ErrorCount == 1
	})).Return(nil).Once()
	m.opts.EventHooks = hooks

	_, err := m.run()
	require.NoError(t, err, "hook errors are logged, not propagated")
	hooks.AssertExpectations(t)
}
