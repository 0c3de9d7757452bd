package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallConfig = `universe:
  particle_count: 200
regions:
  max_stars: 30
  mass_points: 8
  generation_workers: 2
gravity:
  workers: 2
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallConfig), 0644))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		format, level string
		wantErr       bool
	}{
		{"json", "info", false},
		{"text", "debug", false},
		{"TEXT", "warn", false},
		{"xml", "info", true},
		{"json", "loud", true},
	}
	for _, tt := range tests {
		_, err := newLogger(tt.format, tt.level)
		if (err != nil) != tt.wantErr {
			t.Errorf("newLogger(%q, %q) error mismatch: got %v, want error %v", tt.format, tt.level, err, tt.wantErr)
		}
	}
}

func TestRunThenInspect(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "badger")

	execute(t, "run", "--config", cfgPath, "--log-level", "error",
		"--max-ticks", "20", "--badger", db, "--catalog", filepath.Join(dir, "life.db"),
		"--output-dir", filepath.Join(dir, "out"), "--pilot-dwell", "5", "--progress", "1h")

	out := execute(t, "inspect", "--config", cfgPath, "--log-level", "error", "--badger", db)
	assert.Contains(t, out, "tick")
	assert.Contains(t, out, "20")
	assert.Contains(t, out, "regions statistical")

	list := execute(t, "inspect", "--config", cfgPath, "--log-level", "error", "--badger", db, "--list")
	assert.Contains(t, list, latestSnapshot)

	_, err := os.Stat(filepath.Join(dir, "out", "telemetry.csv"))
	assert.NoError(t, err)

	// A second run resumes where the first stopped.
	execute(t, "run", "--config", cfgPath, "--log-level", "error",
		"--max-ticks", "25", "--badger", db, "--resume", latestSnapshot, "--progress", "1h")
	out = execute(t, "inspect", "--config", cfgPath, "--log-level", "error", "--badger", db, "--list=false", latestSnapshot)
	assert.Contains(t, out, "25")
	resume = ""
}

func TestRunResumeFallsBack(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(corrupt, []byte(`{"version": 1, "tick": `), 0644))
	db := filepath.Join(dir, "badger")

	for _, from := range []string{corrupt, filepath.Join(dir, "absent.json"), "nothing-saved"} {
		t.Run(filepath.Base(from), func(t *testing.T) {
			execute(t, "run", "--config", cfgPath, "--log-level", "error",
				"--max-ticks", "3", "--progress", "1h", "--output-dir=", "--catalog=",
				"--badger", db, "--resume", from)

			// A fresh universe ran instead.
			out := execute(t, "inspect", "--config", cfgPath, "--log-level", "error",
				"--badger", db, "--list=false", latestSnapshot)
			assert.Regexp(t, `tick\s+3\n`, out)
			assert.Regexp(t, `cycle\s+1\n`, out)
		})
	}
	resume = ""
}

func TestSurvey(t *testing.T) {
	out := execute(t, "survey", "--config", writeConfig(t), "--log-level", "error",
		"--universes", "2", "--regions", "1", "--catalog", ":memory:", "--top", "5", "--age", "8")
	assert.Contains(t, out, "UNIVERSE")
}
