package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tm65023/Story/internal/telemetry/domain"
)

// emitTimeout bounds a single async emit.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is the longest Drain should be given during shutdown. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

var inflight sync.WaitGroup

// EmitAsync runs Emit in a goroutine so the caller is not blocked. Failures are logged with slog.Default.
//
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
// The emit runs on context.Background() with emitTimeout so request cancellation does not abort it.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.Event) {
	EmitAsyncLogged(slog.Default(), emitter, event)
}

// EmitAsyncLogged is EmitAsync reporting failures to logger.
func EmitAsyncLogged(logger *slog.Logger, emitter EventEmitter, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	inflight.Add(1)
	go func() {
		defer inflight.Done()
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			logger.Warn("telemetry: async emit failed", "event_type", event.Type, "error", err)
		}
	}()
}

// Drain waits for in-flight async emits. It returns ctx.Err() if ctx ends first.
// Call it after the HTTP server has stopped accepting requests.
func Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
