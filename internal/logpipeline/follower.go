package logpipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/acidprime/garden/pkg/common"
)

// notReadySentinel is the stream-open error message the spec singles out
// for silent treatment: a pod that exists but has no ready container yet.
const notReadySentinel = "HTTP request failed"

// ConsumerStream is the write-only sink of converted entries the caller
// supplies. The core never reads from it.
type ConsumerStream[T any] interface {
	Write(entry T) error
}

// Converter turns one internal LogEntry's fields into the caller's
// consumer-facing shape. The core treats it as opaque.
type Converter[T any] func(timestamp time.Time, message, containerName, level string) T

// Options configures one Follower.Start call.
type Options struct {
	Namespace string
	Resources []Resource

	// Tail, if non-nil, is only honored on a fresh attach (never a retry).
	Tail *int64
	// Since is a duration string ("10s", "5m", "1h", "2d"); empty means unset.
	Since string
	// LimitBytes is mandatory in spirit (the spec forces callers to decide);
	// nil means "unbounded".
	LimitBytes *int64

	RetryInterval time.Duration
	DedupCapacity int
	Filter        FilterConfig
}

func (o Options) retryInterval() time.Duration {
	if o.RetryInterval <= 0 {
		return common.DefaultRetryInterval
	}
	return o.RetryInterval
}

type eventKind int

const (
	eventData eventKind = iota
	eventStreamError
	eventStreamClosed
)

type followerEvent struct {
	kind  eventKind
	key   string
	chunk []byte
	err   error
}

// Follower is the multi-container log follower's control loop: it owns the
// connection registry and dedup buffer, and is the only goroutine that
// mutates either. Stream lifecycle callbacks and Sink writes from other
// goroutines are funnelled through a single channel so that ownership
// holds structurally, matching spec §5's "single logical executor".
type Follower[T any] struct {
	adapter   ClusterAdapter
	converter Converter[T]
	consumer  ConsumerStream[T]
	logger    zerolog.Logger
	opts      Options

	registry *ConnectionRegistry
	dedup    *DedupBuffer
	filter   *contentFilter

	events chan followerEvent

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
	done     chan struct{}
}

// New builds a Follower. Call Start to begin reconciling.
func New[T any](adapter ClusterAdapter, converter Converter[T], consumer ConsumerStream[T], opts Options, logger zerolog.Logger) *Follower[T] {
	return &Follower[T]{
		adapter:   adapter,
		converter: converter,
		consumer:  consumer,
		logger:    logger.With().Str("component", "follower").Logger(),
		opts:      opts,
		registry:  NewConnectionRegistry(),
		dedup:     NewDedupBuffer(opts.DedupCapacity),
		filter:    newContentFilter(opts.Filter),
		events:    make(chan followerEvent, 64),
		done:      make(chan struct{}),
	}
}

// Start kicks off an immediate reconcile and schedules one every
// opts.RetryInterval thereafter (default 10s). The schedule is cron.Every:
// an interval under one second is rounded up to one second, any sub-second
// part is dropped, and ticks land on whole-second boundaries. It returns a latch that
// closes only once Stop has run to completion; the loop itself never
// completes on its own.
func (f *Follower[T]) Start(ctx context.Context) <-chan struct{} {
	f.ctx, f.cancel = context.WithCancel(ctx)
	go f.run()
	return f.done
}

// Stop aborts every live stream, cancels the reconcile schedule, and
// resolves the latch Start returned. It is idempotent and never raises.
func (f *Follower[T]) Stop() {
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
	})
	<-f.done
}

func (f *Follower[T]) run() {
	defer close(f.done)

	schedule := cron.Every(f.opts.retryInterval())
	f.reconcile()
	timer := time.NewTimer(time.Until(schedule.Next(nowFunc())))
	defer timer.Stop()

	for {
		select {
		case <-f.ctx.Done():
			f.teardown()
			return
		case ev := <-f.events:
			f.handleEvent(ev)
		case <-timer.C:
			f.reconcile()
			timer.Reset(time.Until(schedule.Next(nowFunc())))
		}
	}
}

// teardown aborts every registered stream, ignoring errors (spec §4.1.4).
func (f *Follower[T]) teardown() {
	for _, c := range f.registry.All() {
		if c.Policy != nil {
			c.Policy.Destroy()
		}
		if c.Stream != nil {
			c.Stream.Abort()
		}
	}
}

func (f *Follower[T]) handleEvent(ev followerEvent) {
	switch ev.kind {
	case eventData:
		f.handleData(ev.key, ev.chunk)
	case eventStreamError:
		f.handleStreamError(ev.key, ev.err)
	case eventStreamClosed:
		f.handleStreamClosed(ev.key)
	}
}

func (f *Follower[T]) handleData(key string, chunk []byte) {
	conn, ok := f.registry.Get(key)
	if !ok {
		return
	}
	if conn.Policy != nil {
		conn.Policy.Touch()
	}
	for _, line := range SplitLines(chunk) {
		parsed, ok := Parse(line)
		if !ok {
			continue
		}
		if !f.filter.accept(parsed.Message) {
			continue
		}
		if !f.dedup.Accept(conn.Ref.DedupKey(), parsed.Message, parsed.DedupTimeMs()) {
			continue
		}
		entry := f.converter(parsed.Timestamp, parsed.Message, conn.Ref.ContainerName, DefaultLevel)
		if err := f.consumer.Write(entry); err != nil {
			f.logger.Debug().Err(err).Str("key", key).Msg("consumer write failed")
		}
	}
}

func (f *Follower[T]) handleStreamError(key string, err error) {
	conn, ok := f.registry.Get(key)
	if !ok {
		return
	}
	conn.Status = StatusError
	if err != nil && strings.Contains(err.Error(), notReadySentinel) {
		return
	}
	f.logger.Trace().Str("level", "silly").Err(err).Str("key", key).Msg("stream error")
}

func (f *Follower[T]) handleStreamClosed(key string) {
	conn, ok := f.registry.Get(key)
	if !ok {
		return
	}
	wasError := conn.Status == StatusError
	conn.Status = StatusClosed
	conn.Stream = nil
	if conn.Policy != nil {
		conn.Policy.Destroy()
		conn.Policy = nil
	}
	if !wasError {
		f.logger.Trace().Str("level", "silly").Str("key", key).Msg("stream closed")
	}
}

// reconcile is the periodic pass described in spec §4.1.2.
func (f *Follower[T]) reconcile() {
	targets, err := f.adapter.EnumerateContainers(f.ctx, f.opts.Namespace, f.opts.Resources)
	if err != nil {
		f.logger.Debug().Err(err).Msg("enumerate containers failed")
		return
	}
	if len(targets) == 0 {
		f.logger.Debug().Msg("no target containers")
		return
	}

	for _, ref := range targets {
		if ref.IsInfrastructure() {
			continue
		}
		f.attach(ref)
	}
}

func (f *Follower[T]) attach(ref ContainerRef) {
	key := ref.Key()
	existing, ok := f.registry.Get(key)
	if ok && existing.Live() {
		return
	}
	retry := ok && !existing.Live()

	// The retry override is critical: tailing from the original `since` on
	// reconnect would re-fetch a large window; restricting to the last ten
	// seconds bounds overlap to what the dedup buffer can absorb.
	var (
		tail     *int64
		sinceDur time.Duration
		err      error
	)
	if retry {
		sinceDur = common.RetrySinceWindow
	} else {
		tail = f.opts.Tail
		sinceDur, err = common.ParseSince(f.opts.Since)
		if err != nil {
			f.logger.Debug().Err(err).Str("since", f.opts.Since).Msg("invalid since duration, ignoring")
			sinceDur = 0
		}
	}

	var sinceSeconds *int64
	if sinceDur > 0 {
		secs := int64(sinceDur.Seconds())
		sinceSeconds = &secs
	}

	conn := &Connection{Ref: ref, Status: StatusConnected}
	f.registry.Set(key, conn)

	sink := &containerSink{key: key, events: f.events, ctx: f.ctx}
	stream, err := f.adapter.OpenLogStream(f.ctx, OpenStreamOptions{
		Namespace:     ref.Namespace,
		PodName:       ref.PodName,
		ContainerName: ref.ContainerName,
		Sink:          sink,
		Follow:        true,
		Timestamps:    true,
		TailLines:     tail,
		SinceSeconds:  sinceSeconds,
		LimitBytes:    f.opts.LimitBytes,
		Events: StreamEvents{
			OnError: func(err error) { f.emit(followerEvent{kind: eventStreamError, key: key, err: err}) },
			OnClose: func() { f.emit(followerEvent{kind: eventStreamClosed, key: key}) },
			OnSocket: func(policy SocketPolicy) {
				if c, ok := f.registry.Get(key); ok {
					c.Policy = policy
				}
			},
		},
	})
	if err != nil {
		conn.Status = StatusClosed
		if !strings.Contains(err.Error(), notReadySentinel) {
			f.logger.Debug().Err(err).Str("key", key).Msg("open log stream failed")
		}
		return
	}
	conn.Stream = stream
}

// emit enqueues an event onto the control loop from another goroutine. It
// is safe to call after Stop: a closed context simply means the event is
// dropped once the loop has exited.
func (f *Follower[T]) emit(ev followerEvent) {
	select {
	case f.events <- ev:
	case <-f.ctx.Done():
	}
}

// containerSink is the Sink the adapter writes raw stream bytes into. Each
// write is forwarded as one event so all processing happens on the
// follower's single control goroutine, preserving in-order delivery for
// this container's lines (spec §5).
type containerSink struct {
	key    string
	events chan followerEvent
	ctx    context.Context
}

func (s *containerSink) Write(p []byte) (int, error) {
	chunk := make([]byte, len(p))
	copy(chunk, p)
	select {
	case s.events <- followerEvent{kind: eventData, key: s.key, chunk: chunk}:
		return len(p), nil
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
}
