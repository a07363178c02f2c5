package authsession

import (
	"context"
	"sync"
	"sync/atomic"
)

// eventDispatcher hands session events to a sink on one goroutine so the
// session operations never wait on sink I/O. A nil dispatcher is valid and
// discards everything.
type eventDispatcher struct {
	sink  EventSink
	queue chan SessionEvent
	drop  bool

	stop     chan struct{}
	stopOnce sync.Once
	loopDone sync.WaitGroup

	dropped atomic.Uint64
}

func newEventDispatcher(cfg EventsConfig, sink EventSink) *eventDispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &eventDispatcher{
		sink:  sink,
		queue: make(chan SessionEvent, max(cfg.BufferSize, 1)),
		drop:  cfg.DropIfFull,
		stop:  make(chan struct{}),
	}
	d.loopDone.Go(d.loop)
	return d
}

func (d *eventDispatcher) loop() {
	ctx := context.Background()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		case <-d.stop:
			d.drain(ctx)
			return
		}
	}
}

// drain delivers whatever was queued before stop.
func (d *eventDispatcher) drain(ctx context.Context) {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(ctx, ev)
		default:
			return
		}
	}
}

func (d *eventDispatcher) stopped() bool {
	select {
	case <-d.stop:
		return true
	default:
		return false
	}
}

// Emit queues ev. In drop mode a full queue counts a drop and returns at
// once; otherwise Emit blocks until there is room, ctx ends, or Close.
func (d *eventDispatcher) Emit(ctx context.Context, ev SessionEvent) {
	if d == nil || d.stopped() {
		return
	}
	if d.drop {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- ev:
	case <-cancelled:
	case <-d.stop:
	}
}

// Close stops accepting events, flushes the queue into the sink and waits
// for the loop to exit.
func (d *eventDispatcher) Close() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.stop)
		d.loopDone.Wait()
	})
}

func (d *eventDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
