package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const pgBatchSize = 50

// PGHandler is an slog.Handler that batches ERROR+ logs into system_logs.
type PGHandler struct {
	db     *gorm.DB
	mu     *sync.Mutex
	buffer *[]models.SystemLog
	attrs  []slog.Attr
	ticker *time.Ticker
	done   chan struct{}
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	buf := make([]models.SystemLog, 0, pgBatchSize)
	h := &PGHandler{
		db:     db,
		mu:     &sync.Mutex{},
		buffer: &buf,
		ticker: time.NewTicker(5 * time.Second),
		done:   make(chan struct{}),
	}
	go h.flushLoop()
	return h
}

func (h *PGHandler) flushLoop() {
	for {
		select {
		case <-h.ticker.C:
			h.Flush()
		case <-h.done:
			h.Flush()
			return
		}
	}
}

// Flush writes buffered entries synchronously.
func (h *PGHandler) Flush() {
	h.mu.Lock()
	if len(*h.buffer) == 0 {
		h.mu.Unlock()
		return
	}
	batch := *h.buffer
	*h.buffer = make([]models.SystemLog, 0, pgBatchSize)
	h.mu.Unlock()

	if err := h.db.CreateInBatches(batch, pgBatchSize).Error; err != nil {
		// Not through slog: this handler would receive its own failure.
		slog.New(StdoutHandler()).Error("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

func (h *PGHandler) Stop() {
	h.ticker.Stop()
	close(h.done)
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "app_id":
			entry.AppID = a.Value.String()
		case "trace_id":
			entry.TraceID = a.Value.String()
		case "user_id":
			s := a.Value.String()
			entry.UserID = &s
		case "action":
			entry.Action = a.Value.String()
		case "target_type":
			entry.TargetType = a.Value.String()
		case "target_id":
			entry.TargetID = a.Value.String()
		case "reference_code":
			entry.ReferenceCode = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		case "latency_ms":
			if f, ok := a.Value.Any().(float64); ok {
				entry.LatencyMs = int(math.Round(f))
			}
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	h.mu.Lock()
	*h.buffer = append(*h.buffer, entry)
	needFlush := len(*h.buffer) >= pgBatchSize
	h.mu.Unlock()

	if needFlush {
		go h.Flush()
	}
	return nil
}

// WithAttrs keeps logger-scoped attrs (e.g. slog.With("app_id", ...)) so they
// land in their columns.
func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
