package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// multipartThreshold is the batch size above which archives are uploaded
// through the multipart manager.
const multipartThreshold = 16 * 1024 * 1024

// EventArchiveStore is the part of domain.EventStore the archiver needs.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ObjectStat reads back an uploaded object's metadata.
type ObjectStat interface {
	Stat(ctx context.Context, path string) (domain.BlobInfo, error)
}

// EventArchiver implements domain.Archiver. It writes every event older than
// the cutoff to one JSONL object, confirms the stored object has the full
// size, and only then prunes the rows from the database.
type EventArchiver struct {
	writer domain.BlobWriter
	reader ObjectStat
	events EventArchiveStore
}

// NewArchiver creates an EventArchiver.
func NewArchiver(writer domain.BlobWriter, reader ObjectStat, events EventArchiveStore) *EventArchiver {
	return &EventArchiver{writer: writer, reader: reader, events: events}
}

// ArchiveEvents moves events older than before to object storage and returns
// how many rows were pruned.
func (a *EventArchiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := ArchivePath(before)
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	info, err := a.reader.Stat(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events verify: %w", err)
	}
	if info.Size != int64(len(buf)) {
		return 0, fmt.Errorf("s3blob: archive events verify: %s holds %d of %d bytes", path, info.Size, len(buf))
	}

	n, err := a.events.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events prune: %w", err)
	}
	return n, nil
}

// ArchivePath is the object key for an archive cut at before, partitioned by
// day:
//
//	archive/events/2026/10/16/1792108800.jsonl
func ArchivePath(before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/events/%s/%d.jsonl", before.Format("2006/01/02"), before.Unix())
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*EventArchiver)(nil)
