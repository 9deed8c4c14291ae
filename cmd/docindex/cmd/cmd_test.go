package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docindex/internal/errors"
	"github.com/Aman-CERP/docindex/internal/ui"
	"github.com/Aman-CERP/docindex/pkg/version"
)

// isolate keeps the user config and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{
		"SEARCH_ENDPOINT", "SEARCH_USER", "SEARCH_PASS",
		"DOCINDEX_BACKEND", "DOCINDEX_ALIAS", "DOCINDEX_PREFIX",
		"DOCINDEX_DATA_DIR", "DOCINDEX_LOG_LEVEL", "NO_COLOR",
		"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

// project writes a two-page corpus and a config file for backend, and
// returns the corpus root and the config path.
func project(t *testing.T, backend string, extra string) (string, string) {
	t.Helper()
	isolate(t)

	root := t.TempDir()
	for rel, body := range map[string]string{
		"_docs/index.md":             "# Welcome\n",
		"_docs/guides/deploy.md":     "# Deploy\nShip it.\n",
		"_docs/guides/_partial.md":   "skipped",
		"_docs/guides/checklist.txt": "skipped",
	} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}

	cfgPath := filepath.Join(t.TempDir(), "docindex.yaml")
	cfg := "indexing_directories: [_docs]\n" +
		"engine:\n" +
		"  backend: " + backend + "\n" +
		"  data_dir: " + filepath.Join(t.TempDir(), "data") + "\n" +
		extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return root, cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	stdout := &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	_ = finish()
	return stdout.String(), err
}

func TestRunCmd_MemoryBackend(t *testing.T) {
	// Given: a corpus and an in-memory engine
	root, cfg := project(t, "memory", "")

	// When: running an ingestion
	out, err := execute(t, "run", "--config", cfg, "--root", root)

	// Then: plain progress and the summary are printed
	require.NoError(t, err)
	assert.Contains(t, out, ui.Separator)
	assert.Contains(t, out, "[PROVISION] created documentation_index_")
	assert.Contains(t, out, "Complete: 2 records from 2 files")
	assert.Contains(t, out, "Alias docs: [] -> [documentation_index_")
}

func TestRunCmd_IngestAlias(t *testing.T) {
	root, cfg := project(t, "memory", "")

	out, err := execute(t, "ingest", "--config", cfg, "--root", root, "--mode", "atomic")

	require.NoError(t, err)
	assert.Contains(t, out, "(atomic)")
}

func TestRunCmd_DirFlagOverridesConfig(t *testing.T) {
	// Given: a second documentation directory
	root, cfg := project(t, "memory", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "_other"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "_other", "page.md"), []byte("x"), 0o644))

	// When: overriding with --dir
	out, err := execute(t, "run", "--config", cfg, "--root", root, "--dir", "_other")

	// Then: only that directory is ingested
	require.NoError(t, err)
	assert.Contains(t, out, "Complete: 1 records from 1 files")
}

func TestRunCmd_InvalidMode(t *testing.T) {
	root, cfg := project(t, "memory", "")

	_, err := execute(t, "run", "--config", cfg, "--root", root, "--mode", "instant")

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestRunCmd_MissingDirectoryFails(t *testing.T) {
	root, cfg := project(t, "memory", "")

	_, err := execute(t, "run", "--config", cfg, "--root", root, "--dir", "_missing")

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeFileNotFound, docerrors.GetCode(err))
	assert.Contains(t, docerrors.FormatForCLI(err), "Code: ERR_201_FILE_NOT_FOUND")
}

func TestCommands_BleveLifecycle(t *testing.T) {
	// Given: a corpus ingested twice into a local bleve engine
	root, cfg := project(t, "bleve", "")
	_, err := execute(t, "run", "--config", cfg, "--root", root)
	require.NoError(t, err)
	_, err = execute(t, "run", "--config", cfg, "--root", root)
	require.NoError(t, err)

	// When: asking for status
	out, err := execute(t, "status", "--config", cfg, "--json")
	require.NoError(t, err)

	// Then: two generations exist and the alias resolves to one of them
	var status ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "docs", status.Alias)
	require.Len(t, status.Generations, 2)
	require.Len(t, status.Bound, 1)
	assert.Equal(t, 1, status.Orphans())
	require.NotNil(t, status.LastRun)
	assert.Equal(t, "CUT_OVER", status.LastRun.State)
	assert.Equal(t, status.Bound[0], status.LastRun.Index)
	assert.Equal(t, 2, status.LastRun.Records)

	// And: the history lists both runs
	out, err = execute(t, "runs", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "CUT_OVER"))
	assert.Contains(t, out, "REJECTED")

	// And: gc lists the replaced generation
	var orphan string
	for _, g := range status.Generations {
		if !g.Bound {
			orphan = g.Name
		}
	}
	out, err = execute(t, "gc", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, orphan)
	assert.Contains(t, out, "run with --delete")

	// And: gc --delete removes it and keeps the bound one
	out, err = execute(t, "gc", "--config", cfg, "--delete")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+orphan)

	out, err = execute(t, "gc", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No orphaned generations")
}

func TestGCCmd_RefusesBoundIndex(t *testing.T) {
	root, cfg := project(t, "bleve", "")
	_, err := execute(t, "run", "--config", cfg, "--root", root)
	require.NoError(t, err)

	out, err := execute(t, "status", "--config", cfg, "--json")
	require.NoError(t, err)
	var status ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Len(t, status.Bound, 1)

	out, err = execute(t, "gc", "--config", cfg, "--delete", status.Bound[0])

	require.Error(t, err)
	assert.Contains(t, out, "refusing to delete")
}

func TestGCCmd_RefusesForeignIndex(t *testing.T) {
	_, cfg := project(t, "memory", "")

	out, err := execute(t, "gc", "--config", cfg, "--delete", "customer_data")

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeEngineRejected, docerrors.GetCode(err))
	assert.Contains(t, out, "not a generation of documentation_index_*")
}

func TestGCCmd_NamesRequireDelete(t *testing.T) {
	_, cfg := project(t, "memory", "")

	_, err := execute(t, "gc", "--config", cfg, "documentation_index_ab12cd34")

	assert.Equal(t, docerrors.ErrCodeInvalidInput, docerrors.GetCode(err))
}

func TestStatusCmd_Text(t *testing.T) {
	_, cfg := project(t, "memory", "")

	out, err := execute(t, "status", "--config", cfg, "--no-color")

	require.NoError(t, err)
	assert.Contains(t, out, "Alias Status: docs")
	assert.Contains(t, out, "Bound to: (none)")
	assert.Contains(t, out, "Generations (documentation_index_*)")
}

func TestRunsCmd_LedgerDisabled(t *testing.T) {
	_, cfg := project(t, "memory", "ledger:\n  enabled: false\n")

	_, err := execute(t, "runs", "--config", cfg)

	require.Error(t, err)
	assert.Equal(t, docerrors.ErrCodeConfigInvalid, docerrors.GetCode(err))
}

func TestDoctorCmd_JSON(t *testing.T) {
	// Given: a healthy corpus and engine
	root, cfg := project(t, "memory", "")

	// When: running doctor with JSON output
	out, err := execute(t, "doctor", "--config", cfg, "--root", root, "--json")

	// Then: no required check failed; the unbound alias is only a warning
	require.NoError(t, err)
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status int    `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "degraded", report.Status)
	assert.Len(t, report.Checks, 7)
}

func TestDoctorCmd_MissingCorpusFails(t *testing.T) {
	_, cfg := project(t, "memory", "")

	out, err := execute(t, "doctor", "--config", cfg, "--root", filepath.Join(t.TempDir(), "nope"))

	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] corpus")
}

func TestConfigShowCmd_RedactsPassword(t *testing.T) {
	_, cfg := project(t, "opensearch", "  endpoint: https://search.internal:9200\n  password: hunter2\n")

	out, err := execute(t, "config", "show", "--config", cfg)

	require.NoError(t, err)
	assert.Contains(t, out, "from "+cfg)
	assert.Contains(t, out, "indexing_directories")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "hunter2")
}

func TestConfigPathCmd(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join("docindex", "config.yaml"))
	assert.Contains(t, out, ".docindex.yaml")
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docindex "+version.Version)

	out, err = execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version, strings.TrimSpace(out))

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
}

func TestRootCmd_ProfilingFlags(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	heap := filepath.Join(dir, "heap.prof")

	_, err := execute(t, "version", "--profile-cpu", cpu, "--profile-mem", heap)

	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, heap)
}

func TestConfigInitCmd(t *testing.T) {
	// Given: an empty working directory
	isolate(t)
	dir := t.TempDir()
	oldDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(oldDir) }()

	// When: initialising
	out, err := execute(t, "config", "init")

	// Then: the template is written and loads
	require.NoError(t, err)
	assert.Contains(t, out, "Created .docindex.yaml")
	assert.FileExists(t, filepath.Join(dir, ".docindex.yaml"))

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "from .docindex.yaml")

	// And: a second init leaves the file alone
	require.NoError(t, os.WriteFile(".docindex.yaml", []byte("indexing_directories: [_api]\n"), 0o644))
	out, err = execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")
	data, err := os.ReadFile(".docindex.yaml")
	require.NoError(t, err)
	assert.Equal(t, "indexing_directories: [_api]\n", string(data))
}
