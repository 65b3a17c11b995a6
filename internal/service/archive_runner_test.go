package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

type fakeArchiver struct {
	cutoffs []time.Time
	err     error
}

func (f *fakeArchiver) ArchiveEvents(_ context.Context, before time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, before)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestArchiveRunnerCutoff(t *testing.T) {
	t.Parallel()
	arch := &fakeArchiver{}
	r := NewArchiveRunner(arch, 30, time.Hour, slog.Default())
	r.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	n, err := r.RunOnce(context.Background())
	assert.NoError(t, err)
	check.Equal(t, int64(3), n)
	assert.Equal(t, 1, len(arch.cutoffs))
	check.Equal(t, time.Date(2026, 9, 16, 12, 0, 0, 0, time.UTC), arch.cutoffs[0])
}

func TestArchiveRunnerWrapsError(t *testing.T) {
	t.Parallel()
	arch := &fakeArchiver{err: errors.New("bucket missing")}
	r := NewArchiveRunner(arch, 7, time.Hour, slog.Default())

	_, err := r.RunOnce(context.Background())
	check.Error(t, err)
	check.True(t, errors.Is(err, arch.err))
}
