package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyglow/skyglow-go/internal/app"
	"github.com/skyglow/skyglow-go/internal/buildinfo"
	"github.com/skyglow/skyglow-go/internal/logger"
	"github.com/skyglow/skyglow-go/internal/pipeline"
)

type station struct {
	config string
	images string
}

func newStation(t *testing.T) station {
	t.Helper()
	dir := t.TempDir()
	config := filepath.Join(dir, "config.yaml")
	yaml := `
main:
  name: hilltop
database:
  type: sqlite
  sqlite:
    path: ` + filepath.Join(dir, "skyglow.db") + `
processing:
  workers: 2
logging:
  console:
    enabled: false
  file_output:
    enabled: false
`
	require.NoError(t, os.WriteFile(config, []byte(yaml), 0o600))

	images := filepath.Join(dir, "20240110")
	require.NoError(t, os.MkdirAll(images, 0o755))
	return station{config: config, images: images}
}

// exec runs one command line against the station and returns its output
func (s station) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	sess := &session{
		build: buildinfo.NewContext("0.9.0", "2024-02-01"),
		opts:  []app.Option{app.WithLogger(logger.NewDiscardLogger())},
	}
	root := rootCommand(sess)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", s.config}, args...))

	err := root.ExecuteContext(context.Background())
	require.NoError(t, sess.Close())
	return out.String(), err
}

func (s station) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, err := s.exec(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestSetupAndShow(t *testing.T) {
	s := newStation(t)

	out := s.mustExec(t, "setup", "camera", "Canon EOS 6D", "--extension", ".tif",
		"--bayer", "rggb", "--width", "64", "--length", "48", "--bias", "2048", "--default")
	assert.Contains(t, out, `camera "Canon EOS 6D" saved`)
	s.mustExec(t, "setup", "observer", "Doe", "Jane", "--affiliation", "Dark Sky Club", "--default")
	s.mustExec(t, "setup", "location", "Observatory", "Hilltop",
		"--longitude", "24.9", "--latitude", "60.2", "--utc-offset", "2", "--default")
	out = s.mustExec(t, "setup", "roi", "[8:16,8:24]", "--default")
	assert.Contains(t, out, "roi [8:16,8:24] saved")
	s.mustExec(t, "setup", "optics", "--focal-length", "24", "--f-number", "2.8")

	out = s.mustExec(t, "setup", "show")
	for _, want := range []string{
		"Canon EOS 6D", "Jane Doe", "Observatory - Hilltop", "[8:16,8:24]",
		"focal_length", "roi",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	s := newStation(t)

	_, err := s.exec(t, "setup", "camera", "X", "--bayer", "XYZW")
	require.Error(t, err)
	_, err = s.exec(t, "setup", "camera", "X", "--header", "RAW")
	require.Error(t, err)
	_, err = s.exec(t, "setup", "roi", "8,16,8,24")
	require.Error(t, err)
	_, err = s.exec(t, "setup", "location", "Observatory", "Hilltop")
	require.Error(t, err, "coordinates are required")
}

func TestRegisterRequiresDefaults(t *testing.T) {
	s := newStation(t)

	_, err := s.exec(t, "register", s.images)
	require.Error(t, err)
	var runErr *pipeline.RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, pipeline.ExitFailure, runErr.ExitCode())
}

func TestEmptyRun(t *testing.T) {
	s := newStation(t)
	s.mustExec(t, "setup", "camera", "Canon EOS 6D", "--extension", ".tif", "--default")
	s.mustExec(t, "setup", "observer", "Doe", "Jane", "--default")
	s.mustExec(t, "setup", "location", "Observatory", "Hilltop", "--longitude", "24.9", "--latitude", "60.2", "--default")
	s.mustExec(t, "setup", "roi", "[8:16,8:24]", "--default")

	out := s.mustExec(t, "run", s.images)
	assert.Contains(t, out, "no-files")
	assert.Contains(t, out, "registered 0 of 0 files (0 skipped, 0 failed), measured 0 of 0 pending (0 flagged)")

	out = s.mustExec(t, "stats", "--json")
	assert.Contains(t, out, `"exit_code": 0`)

	out = s.mustExec(t, "export", "--selector", "all")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "csv_version;tstamp;date_id"))

	csvPath := filepath.Join(t.TempDir(), "night.csv")
	s.mustExec(t, "export", "-o", csvPath)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "csv_version;"))

	out = s.mustExec(t, "delete", "measurements", "--selector", "all")
	assert.Contains(t, out, "would affect 0 measurements")
	out = s.mustExec(t, "delete", "images", "--selector", "all", "--yes")
	assert.Contains(t, out, "deleted 0 images")

	out = s.mustExec(t, "purge")
	assert.Contains(t, out, "purged 0 expired observer versions")
}

func TestPublishWithoutEndpoint(t *testing.T) {
	s := newStation(t)
	_, err := s.exec(t, "publish")
	require.Error(t, err)

	_, err = s.exec(t, "run", "--publish", "--no-publish")
	require.Error(t, err, "the flags are mutually exclusive")
}

func TestCalibrateUnknownCamera(t *testing.T) {
	s := newStation(t)
	_, err := s.exec(t, "calibrate", "Nikon Z6")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Nikon Z6")
}

func TestSelectorValidation(t *testing.T) {
	s := newStation(t)
	_, err := s.exec(t, "export", "--selector", "range", "--start", "20240110")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	s := newStation(t)
	out := s.mustExec(t, "version")
	assert.Equal(t, "skyglow 0.9.0 (built 2024-02-01)\n", out)
}

func TestMissingConfigFile(t *testing.T) {
	sess := &session{build: buildinfo.NewContext("", "")}
	root := rootCommand(sess)
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml"), "stats"})
	require.Error(t, root.Execute())
	require.NoError(t, sess.Close())
}
