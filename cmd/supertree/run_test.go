package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdilauro/dm-utils/pkg/supertree/checksum"
	"github.com/tdilauro/dm-utils/pkg/supertree/config"
	"github.com/tdilauro/dm-utils/pkg/supertree/journal"
	"github.com/tdilauro/dm-utils/pkg/supertree/listing"
	"github.com/tdilauro/dm-utils/pkg/supertree/parse"
	"github.com/tdilauro/dm-utils/pkg/supertree/pipeline"
)

const sha256ABC = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"

// testConfig returns defaults with every output under a temporary
// directory and the built-in walker as the listing source.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	resetGlobals(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Read(viper.New(), "")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.Listing.Source = listing.SourceWalk
	cfg.Output.Path = filepath.Join(dir, "manifest.csv")
	cfg.Journal.Path = filepath.Join(dir, "journal")
	return cfg
}

// makeRoot builds root/{a.txt, sub/b.txt}.
func makeRoot(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("hello"), 0o644))
	return root
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func runOnce(t *testing.T, cfg *config.Config, args []string, fromListing string) (pipeline.Stats, error) {
	t.Helper()
	job, err := newManifestJob(cfg, args, fromListing, false)
	require.NoError(t, err)
	defer job.close()
	return job.run(context.Background())
}

func TestRun_WritesManifestAndJournal(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.File = filepath.Join(t.TempDir(), "supertree.prom")
	root := makeRoot(t)

	stats, err := runOnce(t, cfg, []string{root}, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Entries)
	assert.Equal(t, int64(8), stats.Bytes)

	rows := readCSV(t, cfg.Output.Path)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"seq", "depth", "tree", "prefix", "path", "name", "type", "sha256", "size"}, rows[0])
	assert.Equal(t, root, rows[1][4])
	assert.Equal(t, "0", rows[1][1])
	assert.Equal(t, filepath.Join(root, "a.txt"), rows[2][4])
	assert.Equal(t, sha256ABC, rows[2][7])
	assert.Equal(t, "2", rows[4][1])

	j, err := journal.Open(cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusOK, runs[0].Status)
	assert.Equal(t, int64(4), runs[0].Entries)
	assert.Equal(t, []string{root}, runs[0].Roots)
	assert.Equal(t, "sha256", runs[0].Algorithm)

	prom, err := os.ReadFile(cfg.Metrics.File)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "supertree_last_run_success 1")
	assert.Contains(t, string(prom), "supertree_bytes_hashed_total 8")
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	root := makeRoot(t)

	cfg := testConfig(t)
	_, err := runOnce(t, cfg, []string{root}, "")
	require.NoError(t, err)
	sequential, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	cfg.Workers = 0
	cfg.Output.Path = filepath.Join(t.TempDir(), "parallel.csv")
	_, err = runOnce(t, cfg, []string{root}, "")
	require.NoError(t, err)
	parallel, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)

	assert.Equal(t, string(sequential), string(parallel))
}

func TestRun_FromListing(t *testing.T) {
	cfg := testConfig(t)
	root := makeRoot(t)

	listingPath := filepath.Join(t.TempDir(), "listing.txt")
	text := strings.Join([]string{
		parse.Quote(root) + "/",
		"└── " + parse.Quote(filepath.Join(root, "a.txt")),
		"",
	}, "\n")
	require.NoError(t, os.WriteFile(listingPath, []byte(text), 0o644))

	stats, err := runOnce(t, cfg, nil, listingPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Entries)

	rows := readCSV(t, cfg.Output.Path)
	require.Len(t, rows, 3)
	assert.Equal(t, sha256ABC, rows[2][7])
}

func TestRun_MalformedListingLeavesNoOutput(t *testing.T) {
	cfg := testConfig(t)
	root := makeRoot(t)

	listingPath := filepath.Join(t.TempDir(), "listing.txt")
	text := parse.Quote(root) + "/\ngarbage\n"
	require.NoError(t, os.WriteFile(listingPath, []byte(text), 0o644))

	_, err := runOnce(t, cfg, nil, listingPath)
	require.Error(t, err)
	assert.Equal(t, exitMalformedLine, exitCode(err))
	assert.NoFileExists(t, cfg.Output.Path)

	entries, err := os.ReadDir(filepath.Dir(cfg.Output.Path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}
}

func TestRun_OutputErrorIsJournaled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Path = filepath.Join(t.TempDir(), "missing", "out.csv")
	root := makeRoot(t)

	_, err := runOnce(t, cfg, []string{root}, "")
	require.Error(t, err)
	assert.Equal(t, exitOutputWrite, exitCode(err))

	j, err := journal.Open(cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()
	runs, err := j.List(1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.StatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)
}

func TestRun_NoJournal(t *testing.T) {
	cfg := testConfig(t)
	viper.Set("no_journal", true)

	job, err := newManifestJob(cfg, []string{makeRoot(t)}, "", false)
	require.NoError(t, err)
	defer job.close()
	assert.Nil(t, job.journal)

	_, err = job.run(context.Background())
	require.NoError(t, err)
	assert.NoDirExists(t, cfg.Journal.Path)
}

func TestNewManifestJob_Rejects(t *testing.T) {
	root := makeRoot(t)

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		args        []string
		fromListing string
		watching    bool
		wantCode    int
		contains    string
	}{
		{name: "missing root", args: []string{filepath.Join(root, "nope")}, wantCode: exitUnreadableRoot},
		{name: "unknown digest", mutate: func(c *config.Config) { c.Digest.Algorithm = "crc99" }, args: []string{root}, wantCode: exitFailure, contains: "crc99"},
		{name: "unknown format", mutate: func(c *config.Config) { c.Output.Format = "xml" }, args: []string{root}, wantCode: exitFailure, contains: "xml"},
		{name: "no valid columns", mutate: func(c *config.Config) { c.Output.Columns = []string{"bogus"} }, args: []string{root}, wantCode: exitFailure, contains: "columns"},
		{name: "unknown source", mutate: func(c *config.Config) { c.Listing.Source = "ftp" }, args: []string{root}, wantCode: exitFailure, contains: "ftp"},
		{name: "negative workers", mutate: func(c *config.Config) { c.Workers = -1 }, args: []string{root}, wantCode: exitFailure, contains: "workers"},
		{name: "roots with listing", args: []string{root}, fromListing: "-", wantCode: exitFailure, contains: "--from-listing"},
		{name: "watch with listing", fromListing: "-", watching: true, wantCode: exitFailure, contains: "--watch"},
		{name: "watch to stdout", mutate: func(c *config.Config) { c.Output.Path = "-" }, args: []string{root}, watching: true, wantCode: exitFailure, contains: "--output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			_, err := newManifestJob(cfg, tt.args, tt.fromListing, tt.watching)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, exitCode(err))
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestNewManifestJob_Defaults(t *testing.T) {
	cfg := testConfig(t)
	t.Chdir(makeRoot(t))

	job, err := newManifestJob(cfg, nil, "", false)
	require.NoError(t, err)
	defer job.close()

	assert.Equal(t, []string{"."}, job.roots)
	assert.Equal(t, 1, job.tuning.Workers)
	assert.False(t, job.progress)
	assert.NotNil(t, job.journal)
}

func TestNewManifestJob_DigestLabelsColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.Digest.Algorithm = "md5"
	cfg.Output.Columns = []string{"path,checksum", "owner"}

	job, err := newManifestJob(cfg, []string{makeRoot(t)}, "", false)
	require.NoError(t, err)
	defer job.close()

	require.Len(t, job.columns, 3)
	assert.Equal(t, "md5", job.columns[1].Label)
	assert.True(t, needsNames(job.columns))
}

func TestResolveWorkers(t *testing.T) {
	seq, err := resolveWorkers(1)
	require.NoError(t, err)
	assert.Equal(t, 1, seq.Workers)
	assert.Equal(t, 0, seq.Window)

	auto, err := resolveWorkers(0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, auto.Workers, 2)
	assert.GreaterOrEqual(t, auto.Window, auto.Workers)

	fixed, err := resolveWorkers(3)
	require.NoError(t, err)
	assert.Equal(t, 3, fixed.Workers)

	_, err = resolveWorkers(-2)
	assert.Error(t, err)
}

func TestRunStatus(t *testing.T) {
	assert.Equal(t, journal.StatusOK, runStatus(nil))
	assert.Equal(t, journal.StatusInterrupted, runStatus(context.Canceled))
	assert.Equal(t, journal.StatusFailed, runStatus(checksum.ErrUnknownAlgorithm))
}

func TestSummary(t *testing.T) {
	s := summary("out.csv", pipeline.Stats{Entries: 12345, Bytes: 2048, Duration: 1500 * time.Millisecond})
	assert.Equal(t, "Wrote 12,345 entries (2.0 KiB hashed) to out.csv in 1.5s", s)

	s = summary("out.csv", pipeline.Stats{Entries: 3, Unreadable: 1, Skipped: 2})
	assert.Contains(t, s, "; 1 unreadable")
	assert.Contains(t, s, "; 2 malformed lines skipped")
}

func TestIgnorer(t *testing.T) {
	cfg := testConfig(t)
	dir := filepath.Dir(cfg.Output.Path)
	cfg.Metrics.File = filepath.Join(dir, "supertree.prom")

	j, err := journal.Open(cfg.Journal.Path)
	require.NoError(t, err)
	defer j.Close()

	job := &manifestJob{cfg: cfg, journal: j}
	ignored := job.ignorer()

	assert.True(t, ignored(cfg.Output.Path))
	assert.True(t, ignored(filepath.Join(dir, ".manifest.csv.123456.tmp")))
	assert.True(t, ignored(filepath.Join(dir, "supertree.prom.98765")))
	assert.True(t, ignored(filepath.Join(cfg.Journal.Path, "000001.vlog")))
	assert.False(t, ignored(filepath.Join(dir, "data.bin")))
	assert.False(t, ignored(filepath.Join(dir, "sub", "manifest.csv")))
}

func TestWatch_RewritesOnChange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Watch.Debounce = 50 * time.Millisecond
	root := makeRoot(t)

	job, err := newManifestJob(cfg, []string{root}, "", true)
	require.NoError(t, err)
	defer job.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- job.watch(ctx) }()

	manifestHas := func(name string) func() bool {
		return func() bool {
			data, err := os.ReadFile(cfg.Output.Path)
			return err == nil && strings.Contains(string(data), name)
		}
	}
	require.Eventually(t, manifestHas("a.txt"), 5*time.Second, 20*time.Millisecond)

	// Give the watcher time to register the roots before changing them.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "new.txt"), []byte("x"), 0o644))
	require.Eventually(t, manifestHas("new.txt"), 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
