package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge_Layering(t *testing.T) {
	e := New()
	e.FromList([]string{"PATH=/bin", "HOME=/root", "=broken", "noequals"})
	e.Set("HOME", "/home/fuzz")
	out := e.Merge([]string{"EXTRA=${HOME}/x", "PATH=${PATH}:/opt/bin"})
	assert.Equal(t, []string{"EXTRA=/home/fuzz/x", "HOME=/home/fuzz", "PATH=/bin:/opt/bin"}, out)
}

func TestMerge_OverrideSeesBaseOnly(t *testing.T) {
	e := New()
	e.FromList([]string{"LD_LIBRARY_PATH=/lib"})
	e.Set("LD_LIBRARY_PATH", "/opt/lib:${LD_LIBRARY_PATH}")
	e.Set("SAME_LAYER", "${LD_LIBRARY_PATH}")
	out := e.Merge([]string{"LD_LIBRARY_PATH=${LD_LIBRARY_PATH}:/usr/local/lib"})
	assert.Equal(t, []string{
		"LD_LIBRARY_PATH=/opt/lib:/lib:/usr/local/lib",
		"SAME_LAYER=/lib",
	}, out)
}

func TestMerge_UnknownReferenceKept(t *testing.T) {
	e := New()
	e.FromList(nil)
	out := e.Merge([]string{"A=${MISSING}-${B", "B=1"})
	assert.Equal(t, []string{"A=${MISSING}-${B", "B=1"}, out)
}

func TestMerge_DefaultsToOSEnvironment(t *testing.T) {
	t.Setenv("FUZZBRIDGE_ENV_MARKER", "yes")
	out := New().Merge(nil)
	assert.Contains(t, out, "FUZZBRIDGE_ENV_MARKER=yes")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.env")
	b := filepath.Join(dir, "b.env")
	require.NoError(t, os.WriteFile(a, []byte("# comment\nASAN_OPTIONS=detect_leaks=0\nMODE=a\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("export MODE=\"b\"\n"), 0o600))

	e := New()
	e.FromList(nil)
	require.NoError(t, e.LoadFiles(a, b))
	assert.Equal(t, []string{"ASAN_OPTIONS=detect_leaks=0", "MODE=b"}, e.Merge(nil))
}

func TestLoadFiles_Missing(t *testing.T) {
	err := New().LoadFiles(filepath.Join(t.TempDir(), "nope.env"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUnset(t *testing.T) {
	e := New()
	e.Set("A", "1")
	e.Set("B", "2")
	e.Unset("A")
	e.FromList(nil)
	assert.Equal(t, []string{"B=2"}, e.Merge(nil))
}
