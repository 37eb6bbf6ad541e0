package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/totegamma/ethsign"
	"github.com/totegamma/ethsign/internal/domain"
)

var tracer = otel.Tracer("usecase")

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

func verify(v Verifier, message, signature []byte, claimed common.Address, subject string) error {
	ok, err := v.Verify(message, signature, claimed)
	if err != nil {
		return domain.CollaboratorError{Collaborator: "verifier", Cause: err}
	}
	if !ok {
		return domain.InvalidSignatureError{Subject: subject}
	}
	return nil
}

// withinSkew reports whether a client asserted time is close enough to now.
// A zero skew disables the check.
func withinSkew(now, asserted time.Time, skew time.Duration) bool {
	if skew <= 0 {
		return true
	}
	d := now.Sub(asserted)
	if d < 0 {
		d = -d
	}
	return d <= skew
}

// seconds drops sub-second precision so stored times match the signed encoding.
func seconds(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func emit(ctx context.Context, sink EventSink, clock Clock, typ string, id uint64) {
	if sink == nil {
		return
	}
	err := sink.Emit(ctx, ethsign.Event{Type: typ, ID: id, Timestamp: clock.Now()})
	if err != nil {
		span := trace.SpanFromContext(ctx)
		span.RecordError(err)
		slog.ErrorContext(
			ctx, "failed to emit event",
			slog.String("error", err.Error()),
			slog.String("event", typ),
			slog.Uint64("id", id),
			slog.String("traceID", span.SpanContext().TraceID().String()),
			slog.String("module", "usecase"),
		)
	}
}

func collaborator(name string, err error) error {
	return domain.CollaboratorError{Collaborator: name, Cause: err}
}
