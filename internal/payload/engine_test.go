package payload

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"artipart/internal/manifest"
	"artipart/pkg/models"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func writeSized(t *testing.T, root, rel string, size int, fill byte) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{fill}, size), 0644))
}

// sampleTree lays out the a/b/c/d tree: 120, 80, 50 and 40 bytes.
func sampleTree(t *testing.T) string {
	src := t.TempDir()
	writeSized(t, src, "a.dll", 120, 'a')
	writeSized(t, src, "sub/b.dll", 80, 'b')
	writeSized(t, src, "sub/deeper/c.exe", 50, 'c')
	writeSized(t, src, "d.dll", 40, 'd')
	writeSized(t, src, "obj/ignored.dll", 10, 'x')
	writeSized(t, src, "notes.txt", 10, 'n')
	return src
}

func partitionFiles(t *testing.T, dest string, index int) []string {
	t.Helper()
	root := filepath.Join(dest, manifest.PartitionDir(index))
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func Test_AssembleLaysOutPartitions(t *testing.T) {
	src := sampleTree(t)
	dest := filepath.Join(t.TempDir(), "payload")

	engine := NewEngine(Options{
		Source:        src,
		Destination:   dest,
		MaxSize:       150,
		Exclusions:    models.NewExclusionSet([]string{"obj"}, nil),
		WriteManifest: true,
	})

	m, err := engine.Assemble(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Partitions, 3)
	assert.Equal(t, []string{"a.dll"}, partitionFiles(t, dest, 0))
	assert.ElementsMatch(t, []string{"sub/b.dll", "sub/deeper/c.exe"}, partitionFiles(t, dest, 1))
	assert.Equal(t, []string{"d.dll"}, partitionFiles(t, dest, 2))
	assert.NoDirExists(t, filepath.Join(dest, "3"))

	for _, rel := range []string{"sub/b.dll", "sub/deeper/c.exe"} {
		want, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(rel)))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dest, "1", "binaries", filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s copied byte for byte", rel)
	}

	assert.Equal(t, int64(290), m.TotalSize)
	assert.Equal(t, "1/binaries", m.Partitions[1].Dir)
	assert.Equal(t, "sub/b.dll", m.Partitions[1].Files[0].Path)
	assert.NotEmpty(t, m.Partitions[1].Files[0].Digest)

	loaded, err := manifest.NewManager(dest).Load()
	require.NoError(t, err)
	assert.Equal(t, m.Partitions, loaded.Partitions)

	require.NoError(t, engine.Verify(loaded))
}

func Test_AssembleConcurrentMatchesSequential(t *testing.T) {
	src := t.TempDir()
	for i, size := range []int{90, 70, 65, 60, 33, 31, 20, 12, 9, 5} {
		writeSized(t, src, filepath.Join("dir", string(rune('a'+i)), "lib.dll"), size, byte('a'+i))
	}

	sequential := filepath.Join(t.TempDir(), "seq")
	concurrent := filepath.Join(t.TempDir(), "par")

	m1, err := NewEngine(Options{Source: src, Destination: sequential, MaxSize: 100}).Assemble(context.Background())
	require.NoError(t, err)
	m2, err := NewEngine(Options{Source: src, Destination: concurrent, MaxSize: 100, Workers: 4}).Assemble(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(m1.Partitions), len(m2.Partitions))
	for i := range m1.Partitions {
		assert.Equal(t, m1.Partitions[i].Files, m2.Partitions[i].Files)
		assert.ElementsMatch(t, partitionFiles(t, sequential, i), partitionFiles(t, concurrent, i))
	}
}

func Test_AssembleDropsOversizedLoudly(t *testing.T) {
	src := t.TempDir()
	writeSized(t, src, "huge.dll", 200, 'h')

	core, logs := observer.New(zapcore.InfoLevel)
	dest := t.TempDir()

	m, err := NewEngine(Options{
		Source:      src,
		Destination: dest,
		MaxSize:     150,
		Logger:      zap.New(core),
	}).Assemble(context.Background())
	require.NoError(t, err)

	assert.Empty(t, m.Partitions)
	require.Len(t, m.Dropped, 1)
	assert.Equal(t, "huge.dll", m.Dropped[0].Path)
	assert.NoDirExists(t, filepath.Join(dest, "0"))
	assert.GreaterOrEqual(t, logs.FilterLevelExact(zapcore.WarnLevel).Len(), 1)
}

func Test_AssembleRejectsBadConfig(t *testing.T) {
	src := t.TempDir()

	cases := map[string]Options{
		"missing source":   {Source: filepath.Join(src, "nope"), Destination: t.TempDir(), MaxSize: 10},
		"empty source":     {Destination: t.TempDir(), MaxSize: 10},
		"empty dest":       {Source: src, MaxSize: 10},
		"zero max size":    {Source: src, Destination: t.TempDir()},
		"negative size":    {Source: src, Destination: t.TempDir(), MaxSize: -5},
		"negative workers": {Source: src, Destination: t.TempDir(), MaxSize: 10, Workers: -1},
	}

	for name, opts := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewEngine(opts).Assemble(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func Test_AssembleIsRepeatable(t *testing.T) {
	src := sampleTree(t)

	m1, err := NewEngine(Options{Source: src, Destination: t.TempDir(), MaxSize: 150}).Assemble(context.Background())
	require.NoError(t, err)
	m2, err := NewEngine(Options{Source: src, Destination: t.TempDir(), MaxSize: 150}).Assemble(context.Background())
	require.NoError(t, err)

	assert.Equal(t, m1.Partitions, m2.Partitions)
}

func Test_VerifyDetectsTampering(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()

	engine := NewEngine(Options{Source: src, Destination: dest, MaxSize: 150, WriteManifest: true})
	m, err := engine.Assemble(context.Background())
	require.NoError(t, err)

	// Same size, different content.
	writeSized(t, filepath.Join(dest, "0", "binaries"), "a.dll", 120, 'z')
	assert.Error(t, engine.Verify(m))

	require.NoError(t, os.Remove(filepath.Join(dest, "2", "binaries", "d.dll")))
	assert.Error(t, engine.Verify(m))
}

func Test_AssembleAbortsOnCopyFailure(t *testing.T) {
	src := sampleTree(t)
	dest := t.TempDir()

	// A regular file where partition 1's directory belongs.
	require.NoError(t, os.WriteFile(filepath.Join(dest, "1"), []byte("in the way"), 0644))

	m, err := NewEngine(Options{
		Source:        src,
		Destination:   dest,
		MaxSize:       150,
		Workers:       2,
		WriteManifest: true,
	}).Assemble(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "partition 1")
	assert.Nil(t, m)
	assert.NoFileExists(t, filepath.Join(dest, manifest.FileName))
}
