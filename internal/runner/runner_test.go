package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"filepub/internal/logging"
	"filepub/pkg/models"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelError)
}

func touch(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, content, 0o644))
}

// capturePub records published records and can fail or run a hook
// per call.
type capturePub struct {
	records   []models.FileRecord
	failFor   map[string]error
	onPublish func(models.FileRecord)
}

func (p *capturePub) Publish(record models.FileRecord, maxAttempts int) error {
	if p.onPublish != nil {
		p.onPublish(record)
	}
	if err, ok := p.failFor[record.Name]; ok {
		return err
	}
	p.records = append(p.records, record)
	return nil
}

func TestRun_DryRunTwoFiles(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "file1.txt"), []byte("12345678"))
	touch(t, filepath.Join(root, "subdir", "file2.txt"), nil)

	sum, err := Run(context.Background(), Options{
		Root:   root,
		DryRun: true,
		Log:    testLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 2, Errored: 0}, sum)
}

func TestRun_PublishesEveryFile(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.txt"), []byte("a"))
	touch(t, filepath.Join(root, "sub", "b.txt"), []byte("bb"))

	pub := &capturePub{}
	sum, err := Run(context.Background(), Options{
		Root:      root,
		Publisher: pub,
		Log:       testLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 2, Errored: 0}, sum)
	require.Len(t, pub.records, 2)

	names := []string{pub.records[0].Name, pub.records[1].Name}
	require.ElementsMatch(t, []string{"a.txt", "b.txt"}, names)
}

func TestRun_BadRoot(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Root: filepath.Join(t.TempDir(), "missing"),
		Log:  testLogger(),
	})
	require.ErrorIs(t, err, ErrBadRoot)

	file := filepath.Join(t.TempDir(), "plain.txt")
	touch(t, file, nil)
	_, err = Run(context.Background(), Options{Root: file, Log: testLogger()})
	require.ErrorIs(t, err, ErrBadRoot)
}

func TestRun_FileVanishesBeforeExtraction(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.txt"), []byte("a"))
	touch(t, filepath.Join(root, "b.txt"), []byte("b"))
	touch(t, filepath.Join(root, "c.txt"), []byte("c"))

	// Delete c.txt while the scan is underway: it was already
	// discovered but cannot be extracted anymore.
	pub := &capturePub{}
	pub.onPublish = func(models.FileRecord) {
		os.Remove(filepath.Join(root, "c.txt"))
	}

	sum, err := Run(context.Background(), Options{
		Root:      root,
		Publisher: pub,
		Log:       testLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 2, Errored: 1}, sum)
	require.Len(t, pub.records, 2)
}

func TestRun_PublishErrorCountedAndScanContinues(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "good1.txt"), nil)
	touch(t, filepath.Join(root, "bad.txt"), nil)
	touch(t, filepath.Join(root, "good2.txt"), nil)

	pub := &capturePub{failFor: map[string]error{
		"bad.txt": errors.New("publishing after 3 attempts: broken pipe"),
	}}

	sum, err := Run(context.Background(), Options{
		Root:      root,
		Publisher: pub,
		Log:       testLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, Summary{Processed: 2, Errored: 1}, sum)
}

func TestRun_EmptyRoot(t *testing.T) {
	sum, err := Run(context.Background(), Options{
		Root:   t.TempDir(),
		DryRun: true,
		Log:    testLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, Summary{}, sum)
}

func TestRun_Interrupted(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.txt"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := Run(ctx, Options{Root: root, DryRun: true, Log: testLogger()})
	require.ErrorIs(t, err, ErrInterrupted)
	require.Equal(t, 0, sum.Processed)
}

func TestRun_CancelMidScanStopsEarly(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		touch(t, filepath.Join(root, name), nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	pub := &capturePub{}
	pub.onPublish = func(models.FileRecord) { cancel() }

	sum, err := Run(ctx, Options{Root: root, Publisher: pub, Log: testLogger()})
	require.ErrorIs(t, err, ErrInterrupted)
	// The item in flight finishes, nothing after it starts.
	require.Equal(t, 1, sum.Processed)
}
