package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseSize(t *testing.T) {
	cases := map[string]int64{
		"150":    150 * 1000 * 1000,
		"1":      1000 * 1000,
		"150MB":  150 * 1000 * 1000,
		"512KB":  512 * 1000,
		"2GB":    2 * 1000 * 1000 * 1000,
		" 10MB ": 10 * 1000 * 1000,
		"1.5MB":  1500 * 1000,
		// largest whole megabyte count that fits in an int64
		"9223372036854": 9223372036854 * 1000 * 1000,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "0", "-3", "lots", "0MB", "1.5", "2.", "9223372036855", "18446744073710"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func Test_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artipart.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: /in
destination: /out
max_size: 150MB
workers: 4
manifest: true
exclude_dirs: [obj]
exclude_files:
  - clrjit.dll
`), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/in", cfg.Source)
	assert.Equal(t, "/out", cfg.Destination)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Manifest)
	assert.Equal(t, []string{"obj"}, cfg.ExcludeDirs)
	assert.Equal(t, []string{"clrjit.dll"}, cfg.ExcludeFiles)
	assert.Equal(t, "info", cfg.LogLevel, "defaults survive")
	require.NoError(t, cfg.Validate())

	size, err := cfg.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(150*1000*1000), size)
}

func Test_LoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: [not, a, number]"), 0644))
	_, err = LoadFile(path)
	assert.Error(t, err)
}

func Test_Validate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "source, destination and size are required")

	cfg.Source = "/in"
	cfg.Destination = "/out"
	cfg.MaxSize = "nonsense"
	assert.Error(t, cfg.Validate())

	cfg.MaxSize = "150"
	assert.NoError(t, cfg.Validate())

	cfg.Workers = -1
	assert.Error(t, cfg.Validate())

	cfg.Workers = 2
	cfg.LogLevel = "verbose"
	assert.Error(t, cfg.Validate())
}
