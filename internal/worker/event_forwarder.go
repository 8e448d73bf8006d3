package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/events"
	"github.com/alpi-dev/alpi/internal/observability"
)

var (
	// ErrQueueFull is returned when the forwarder cannot accept another event.
	ErrQueueFull = errors.New("event forwarder queue full")
	// ErrForwarderClosed is returned for events dispatched after Close.
	ErrForwarderClosed = errors.New("event forwarder stopped")
)

// EventForwarder relays dispatched events to external bridges from a
// background goroutine, so broker latency stays out of request handling.
type EventForwarder struct {
	bridges  []*events.Bridge
	queue    chan events.Event
	stop     chan struct{}
	done     chan struct{}
	mu       sync.RWMutex
	closed   bool
	logger   *zap.Logger
	recorder observability.Recorder
}

// NewEventForwarder builds a forwarder with a queue of size events.
func NewEventForwarder(size int, logger *zap.Logger, recorder observability.Recorder, bridges ...*events.Bridge) *EventForwarder {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = observability.NewMetrics()
	}
	return &EventForwarder{
		bridges:  bridges,
		queue:    make(chan events.Event, size),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger,
		recorder: recorder,
	}
}

// Register subscribes the forwarder to every event type.
func (f *EventForwarder) Register(d events.Dispatcher) {
	for _, t := range events.AllEventTypes {
		d.Subscribe(t, f.enqueue)
	}
}

// enqueue holds the read lock across the send so Close cannot signal the
// loop between the closed check and the send.
func (f *EventForwarder) enqueue(_ context.Context, e events.Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrForwarderClosed
	}
	select {
	case f.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery loop until Close.
func (f *EventForwarder) Start() {
	go f.run()
}

func (f *EventForwarder) run() {
	defer close(f.done)
	for {
		select {
		case e := <-f.queue:
			f.forward(e)
		case <-f.stop:
			for {
				select {
				case e := <-f.queue:
					f.forward(e)
				default:
					return
				}
			}
		}
	}
}

func (f *EventForwarder) forward(e events.Event) {
	ctx := context.Background()
	for _, b := range f.bridges {
		if err := b.Handle(ctx, e); err != nil {
			f.recorder.RecordSideEffectFailure("event_publish")
			f.logger.Warn("event forward failed",
				zap.String("bridge", b.Name()),
				zap.String("event_type", string(e.Type)),
				zap.String("event_id", e.ID),
				zap.Error(err),
			)
		}
	}
}

// Close stops accepting events, drains the queue and waits for the loop to
// exit or ctx to expire.
func (f *EventForwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.stop)
	}
	f.mu.Unlock()
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
