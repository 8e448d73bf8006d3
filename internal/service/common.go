package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
	"github.com/alpi-dev/alpi/internal/repository"
	apperrors "github.com/alpi-dev/alpi/pkg/util/errorutil"
)

// Side effect kinds reported to the metrics recorder.
const (
	sideEffectNotification = "notification"
	sideEffectEvent        = "event_publish"
	sideEffectTask         = "reassignment_task"
	sideEffectComment      = "comment"
)

// sideEffects runs the post-commit work of an operation. Failures are logged
// and counted, never returned.
type sideEffects struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    observability.Recorder
}

func newSideEffects(dispatcher events.Dispatcher, logger *zap.Logger, metrics observability.Recorder) sideEffects {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return sideEffects{dispatcher: dispatcher, logger: logger, metrics: metrics}
}

func (s sideEffects) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		fields := []zap.Field{zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID)}
		if event.TicketID != nil {
			fields = append(fields, zap.Int64("ticket_id", *event.TicketID))
		}
		s.failed(sideEffectEvent, err, fields...)
	}
}

func (s sideEffects) failed(kind string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("kind", kind), zap.Error(err))
	s.logger.Warn("side effect failed", fields...)
	s.metrics.RecordSideEffectFailure(kind)
}

// mapRepoError translates repository sentinels into domain errors.
func mapRepoError(err error, resource string, details map[string]any) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently, reload and retry", details)
	}
	return apperrors.MapError(err)
}

// stringPreview shortens body to at most max bytes without splitting a
// UTF-8 sequence.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:runeBoundary(body, max)]
	}
	return body[:runeBoundary(body, max-3)] + "..."
}

// runeBoundary steps n back to the start of the rune it falls in.
func runeBoundary(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}

func errorCode(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(apperrors.ToDomainError(err).Code)
}
