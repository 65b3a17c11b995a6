package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

type memBlobs struct {
	objects  map[string][]byte
	dropPut  bool
	shortPut bool
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if m.shortPut {
		b = b[:len(b)/2]
	}
	if !m.dropPut {
		m.objects[path] = b
	}
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, jsonlContentType)
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(context.Context, string) ([]domain.BlobInfo, error) { return nil, nil }

func (m *memBlobs) Stat(_ context.Context, path string) (domain.BlobInfo, error) {
	b, ok := m.objects[path]
	if !ok {
		return domain.BlobInfo{}, domain.ErrNotFound
	}
	return domain.BlobInfo{Path: path, Size: int64(len(b))}, nil
}

type memEvents struct {
	events  []domain.Event
	deleted bool
	listErr error
}

func (m *memEvents) ListBefore(_ context.Context, before time.Time) ([]domain.Event, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Event
	for _, e := range m.events {
		if e.Time().Before(before) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.deleted = true
	var keep []domain.Event
	var n int64
	for _, e := range m.events {
		if e.Time().Before(before) {
			n++
			continue
		}
		keep = append(keep, e)
	}
	m.events = keep
	return n, nil
}

func TestArchivePath(t *testing.T) {
	t.Parallel()
	cut := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	check.Equal(t, "archive/events/2026/10/16/1792108800.jsonl", ArchivePath(cut))
}

func TestArchiveEventsUploadsThenPrunes(t *testing.T) {
	t.Parallel()
	blobs := newMemBlobs()
	store := &memEvents{events: []domain.Event{
		{ID: "old-1", Kind: domain.EventAuctionCreated, Timestamp: 100},
		{ID: "old-2", Kind: domain.EventAuctionBid, Timestamp: 200},
		{ID: "new", Kind: domain.EventAuctionEnded, Timestamp: 5000},
	}}
	arch := NewArchiver(blobs, blobs, store)
	cut := time.Unix(1000, 0)

	n, err := arch.ArchiveEvents(context.Background(), cut)
	assert.NoError(t, err)
	check.Equal(t, int64(2), n)
	check.Equal(t, 1, len(store.events))
	check.Equal(t, "new", store.events[0].ID)

	body, ok := blobs.objects[ArchivePath(cut)]
	assert.True(t, ok)
	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var e domain.Event
		assert.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		ids = append(ids, e.ID)
	}
	check.Equal(t, []string{"old-1", "old-2"}, ids)
}

func TestArchiveEventsNothingToDo(t *testing.T) {
	t.Parallel()
	blobs := newMemBlobs()
	store := &memEvents{}
	n, err := NewArchiver(blobs, blobs, store).ArchiveEvents(context.Background(), time.Unix(1000, 0))
	assert.NoError(t, err)
	check.Equal(t, int64(0), n)
	check.False(t, store.deleted)
	check.Equal(t, 0, len(blobs.objects))
}

func TestArchiveEventsKeepsRowsWhenUploadMissing(t *testing.T) {
	t.Parallel()
	blobs := newMemBlobs()
	blobs.dropPut = true
	store := &memEvents{events: []domain.Event{{ID: "old", Timestamp: 1}}}

	_, err := NewArchiver(blobs, blobs, store).ArchiveEvents(context.Background(), time.Unix(1000, 0))
	check.Error(t, err)
	check.False(t, store.deleted)
	check.Equal(t, 1, len(store.events))
}

func TestArchiveEventsKeepsRowsWhenUploadTruncated(t *testing.T) {
	t.Parallel()
	blobs := newMemBlobs()
	blobs.shortPut = true
	store := &memEvents{events: []domain.Event{{ID: "old-1", Timestamp: 1}, {ID: "old-2", Timestamp: 2}}}

	_, err := NewArchiver(blobs, blobs, store).ArchiveEvents(context.Background(), time.Unix(1000, 0))
	check.Error(t, err)
	check.False(t, store.deleted)
	check.Equal(t, 2, len(store.events))
}

func TestContentTypeAndNotFound(t *testing.T) {
	t.Parallel()
	check.Equal(t, jsonlContentType, contentTypeFor("archive/events/2026/10/16/1792108800.jsonl"))
	check.Equal(t, "", contentTypeFor("archive/events/readme.txt"))

	nsk := &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."}
	check.True(t, errors.Is(notFoundOr(fmt.Errorf("get: %w", nsk)), domain.ErrNotFound))
	denied := &smithy.GenericAPIError{Code: "AccessDenied"}
	check.False(t, errors.Is(notFoundOr(denied), domain.ErrNotFound))
	check.True(t, errors.Is(notFoundOr(denied), denied))
}

func TestArchiveEventsQueryError(t *testing.T) {
	t.Parallel()
	blobs := newMemBlobs()
	store := &memEvents{listErr: errors.New("db down")}
	_, err := NewArchiver(blobs, blobs, store).ArchiveEvents(context.Background(), time.Unix(1000, 0))
	check.Error(t, err)
	check.False(t, store.deleted)
}
