package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// FeedHandler serves the committed-event feed from the signal bus stream and
// the cold-storage archive. Either source may be nil.
type FeedHandler struct {
	bus     domain.SignalBus
	stream  string
	archive domain.BlobReader
	logger  *slog.Logger
}

// NewFeedHandler creates a FeedHandler reading stream on bus.
func NewFeedHandler(bus domain.SignalBus, stream string, archive domain.BlobReader, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{bus: bus, stream: stream, archive: archive, logger: logger.With(slog.String("handler", "feed"))}
}

type feedEntry struct {
	StreamID string       `json:"stream_id"`
	Event    domain.Event `json:"event"`
}

// Recent returns events appended to the stream after the given stream id.
// Clients poll with the last stream_id they saw.
// GET /api/events/recent?after=0&count=100
func (h *FeedHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.bus == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream not configured")
		return
	}
	after := r.URL.Query().Get("after")
	if after == "" {
		after = "0"
	}
	count := 100
	if n, err := strconv.Atoi(r.URL.Query().Get("count")); err == nil && n > 0 {
		count = min(n, 1000)
	}

	msgs, err := h.bus.StreamRead(r.Context(), h.stream, after, count)
	if err != nil {
		writeServiceError(w, r, h.logger, "read event stream", err)
		return
	}
	out := make([]feedEntry, 0, len(msgs))
	for _, m := range msgs {
		var e domain.Event
		if err := json.Unmarshal(m.Payload, &e); err != nil {
			h.logger.WarnContext(r.Context(), "skipping malformed stream entry",
				slog.String("stream_id", m.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, feedEntry{StreamID: m.ID, Event: e})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

type archiveObject struct {
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
}

// ListArchives lists archived event files by their path under the archive
// prefix, as accepted by GetArchive.
// GET /api/archive
func (h *FeedHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	infos, err := h.archive.List(r.Context(), archivePrefix)
	if err != nil {
		writeServiceError(w, r, h.logger, "list archives", err)
		return
	}
	out := make([]archiveObject, 0, len(infos))
	for _, info := range infos {
		out = append(out, archiveObject{Path: strings.TrimPrefix(info.Path, archivePrefix), Size: info.Size, LastModified: info.LastModified.Unix()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": out})
}

const archivePrefix = "archive/events/"

// GetArchive streams one archived JSONL file.
// GET /api/archive/{path...}
func (h *FeedHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusServiceUnavailable, "archive not configured")
		return
	}
	path := archivePrefix + r.PathValue("path")
	if strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}
	body, err := h.archive.Get(r.Context(), path)
	if err != nil {
		writeServiceError(w, r, h.logger, "get archive", err)
		return
	}
	defer body.Close()
	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "archive copy interrupted", slog.String("error", err.Error()))
	}
}
