package runner

import (
	"context"
	"errors"
	"fmt"
	"os"

	"filepub/internal/logging"
	"filepub/internal/metadata"
	"filepub/internal/scanner"
	"filepub/pkg/models"
)

// Publisher is the sink for extracted records. The rabbit client
// satisfies it; tests and dry-run inject their own.
type Publisher interface {
	Publish(record models.FileRecord, maxAttempts int) error
}

var (
	// ErrBadRoot means the root path does not exist or is not a directory.
	ErrBadRoot = errors.New("invalid root path")
	// ErrInterrupted means the run was cancelled between files.
	ErrInterrupted = errors.New("interrupted")
)

const (
	progressEvery      = 1000
	defaultMaxAttempts = 3
)

type Options struct {
	Root        string
	DryRun      bool
	Publisher   Publisher
	MaxAttempts int
	Log         *logging.Logger
}

// Summary is the outcome of a run: how many files made it through the
// pipeline and how many failed along the way.
type Summary struct {
	Processed int
	Errored   int
}

/*
Run drives the scan pipeline: walk the tree, extract metadata for each
file, publish (or just log in dry-run mode).

A failure on a single file is logged with the offending path, counted,
and skipped; the scan keeps going. Only three things end a run early:
an invalid root (nothing is attempted), a walker-level error, and
cancellation of ctx, which is checked between files and surfaces as
ErrInterrupted. The Summary is valid in every case.
*/
func Run(ctx context.Context, opts Options) (Summary, error) {
	log := opts.Log

	info, err := os.Stat(opts.Root)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %v", ErrBadRoot, err)
	}
	if !info.IsDir() {
		return Summary{}, fmt.Errorf("%w: %s", ErrBadRoot, opts.Root)
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var sum Summary
	err = scanner.Walk(opts.Root, log, func(path string) error {
		select {
		case <-ctx.Done():
			return ErrInterrupted
		default:
		}

		record, err := metadata.Extract(path)
		if err != nil {
			sum.Errored++
			log.Errorf("error processing %s: %v", path, err)
			return nil
		}

		if opts.DryRun {
			log.Infof("[dry-run] would publish: %+v", record)
		} else if err := opts.Publisher.Publish(record, maxAttempts); err != nil {
			sum.Errored++
			log.Errorf("error processing %s: %v", path, err)
			return nil
		}

		sum.Processed++
		if sum.Processed%progressEvery == 0 {
			log.Infof("processed %d files so far...", sum.Processed)
		}
		return nil
	})
	if err != nil {
		return sum, err
	}

	log.Infof("scan complete: %d files processed, %d errors", sum.Processed, sum.Errored)
	return sum, nil
}
