package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/metrics"
	"ttemp-link/internal/repository"
)

// ClickData is one click to persist.
type ClickData struct {
	LinkID     uuid.UUID
	Slug       string
	OccurredAt time.Time
	Info       ClickInfo
}

// ClickSink accepts clicks from the redirect handler. Implementations never return
// errors to the caller: a failed click is logged and counted.
type ClickSink interface {
	Submit(ctx context.Context, data ClickData)
}

// Recorder persists clicks: one event row plus the daily and lifetime counters, in a
// single storage transaction.
type Recorder struct {
	storage repository.ClickStorage
	log     *zap.Logger
}

var _ ClickSink = (*Recorder)(nil)

func NewRecorder(storage repository.ClickStorage, log *zap.Logger) *Recorder {
	return &Recorder{
		storage: storage,
		log:     log.With(zap.String("component", "analytics.recorder")),
	}
}

// Record writes the click and returns any storage error.
func (r *Recorder) Record(ctx context.Context, data ClickData) error {
	occurredAt := data.OccurredAt.UTC()
	if data.OccurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	event := &domain.ClickEvent{
		LinkID:         data.LinkID,
		CreatedAt:      occurredAt,
		ReferrerDomain: data.Info.ReferrerDomain,
		DeviceType:     data.Info.Device.DeviceType,
		BrowserName:    data.Info.Device.Browser,
		BrowserVersion: data.Info.Device.BrowserVersion,
		OSName:         data.Info.Device.OS,
		OSVersion:      data.Info.Device.OSVersion,
		CountryCode:    data.Info.Geo.CountryCode,
		CountryName:    data.Info.Geo.CountryName,
		Region:         data.Info.Geo.Region,
		City:           data.Info.Geo.City,
	}
	if event.DeviceType == "" {
		event.DeviceType = domain.DeviceUnknown
	}
	if event.BrowserName == "" {
		event.BrowserName = domain.UnknownBrowser
	}

	if err := r.storage.RecordClick(ctx, event, occurredAt); err != nil {
		return fmt.Errorf("failed to record click for %s: %w", data.Slug, err)
	}
	return nil
}

// Submit records the click synchronously, swallowing the error.
func (r *Recorder) Submit(ctx context.Context, data ClickData) {
	if err := r.Record(ctx, data); err != nil {
		metrics.ClicksRecordedTotal.WithLabelValues("error").Inc()
		r.log.Error("failed to record click", zap.String("slug", data.Slug), zap.Error(err))
		return
	}
	metrics.ClicksRecordedTotal.WithLabelValues("ok").Inc()
}
