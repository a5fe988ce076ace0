package logpipeline

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/acidprime/garden/pkg/common"
)

// fetchIdleTimeout is overridden in tests so the stuck-stream branch of
// fetchOne doesn't have to wait out the real idle budget.
var fetchIdleTimeout = common.DefaultIdleTimeout

// OneShotOptions configures one Collector.Collect call. It carries
// Options' namespace, resources, tail, since and filter fields; it has no
// LimitBytes, RetryInterval or DedupCapacity.
type OneShotOptions struct {
	Namespace string
	Resources []Resource

	// Tail, if nil, is derived from MaxLogLinesInMemory / container count.
	Tail *int64
	Since string

	// Filter is not read by Collect; the Collector applies the FilterConfig
	// passed to NewCollector.
	Filter FilterConfig
}

// Collector is the one-shot (non-following) log collector: it reads a
// bounded suffix from every target container in parallel, parses each
// line, and emits the merged output sorted by timestamp.
type Collector[T any] struct {
	adapter   ClusterAdapter
	converter Converter[T]
	consumer  ConsumerStream[T]
	logger    zerolog.Logger
	filter    *contentFilter
}

// NewCollector builds a one-shot Collector.
func NewCollector[T any](adapter ClusterAdapter, converter Converter[T], consumer ConsumerStream[T], filter FilterConfig, logger zerolog.Logger) *Collector[T] {
	return &Collector[T]{
		adapter:   adapter,
		converter: converter,
		consumer:  consumer,
		logger:    logger.With().Str("component", "oneshot").Logger(),
		filter:    newContentFilter(filter),
	}
}

type collectedLine struct {
	parsed        ParsedLine
	containerName string
}

// Collect enumerates the target containers once, fetches each one's bounded
// tail in parallel, parses every line, sorts the merged result by
// timestamp ascending, and writes it to the consumer. It returns once every
// container's fetch has completed.
func (c *Collector[T]) Collect(ctx context.Context, opts OneShotOptions) error {
	refs, err := c.adapter.EnumerateContainers(ctx, opts.Namespace, opts.Resources)
	if err != nil {
		return err
	}

	targets := make([]ContainerRef, 0, len(refs))
	for _, ref := range refs {
		if !ref.IsInfrastructure() {
			targets = append(targets, ref)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	tail := opts.Tail
	if tail == nil {
		perContainer := common.MaxLogLinesInMemory / int64(len(targets))
		if perContainer < 1 {
			perContainer = 1
		}
		tail = &perContainer
	}

	var sinceSeconds *int64
	if d, err := common.ParseSince(opts.Since); err == nil && d > 0 {
		secs := int64(d.Seconds())
		sinceSeconds = &secs
	}

	var (
		mu    sync.Mutex
		lines []collectedLine
	)

	group, gctx := errgroup.WithContext(ctx)
	for _, ref := range targets {
		ref := ref
		group.Go(func() error {
			collected, err := c.fetchOne(gctx, ref, *tail, sinceSeconds)
			if err != nil {
				c.logger.Debug().Err(err).Str("pod", ref.PodName).Str("container", ref.ContainerName).Msg("one-shot fetch failed")
				return nil // one bad pod must not cancel the others
			}
			mu.Lock()
			lines = append(lines, collected...)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].parsed.Timestamp.Before(lines[j].parsed.Timestamp)
	})

	for _, l := range lines {
		entry := c.converter(l.parsed.Timestamp, l.parsed.Message, l.containerName, DefaultLevel)
		if err := c.consumer.Write(entry); err != nil {
			c.logger.Debug().Err(err).Msg("consumer write failed")
		}
	}
	return nil
}

func (c *Collector[T]) fetchOne(ctx context.Context, ref ContainerRef, tail int64, sinceSeconds *int64) ([]collectedLine, error) {
	var (
		buf       bytes.Buffer
		done      = make(chan struct{})
		closeDone sync.Once
	)
	closer := func() { closeDone.Do(func() { close(done) }) }

	stream, err := c.adapter.OpenLogStream(ctx, OpenStreamOptions{
		Namespace:     ref.Namespace,
		PodName:       ref.PodName,
		ContainerName: ref.ContainerName,
		Sink:          &bufferSink{buf: &buf},
		Follow:        false,
		Timestamps:    true,
		TailLines:     &tail,
		SinceSeconds:  sinceSeconds,
		Events: StreamEvents{
			OnError: func(error) { closer() },
			OnClose: func() { closer() },
		},
	})
	if err != nil {
		return nil, err
	}
	defer stream.Abort()

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(fetchIdleTimeout):
		// The stream neither closed nor errored within the idle window — abort
		// it and wait for copyLoop to observe the abort and signal done before
		// touching buf, since copyLoop's goroutine may still be mid-Write.
		stream.Abort()
		<-done
	}

	out := make([]collectedLine, 0)
	for _, line := range SplitLines(buf.Bytes()) {
		parsed, ok := Parse(line)
		if !ok {
			continue
		}
		if !c.filter.accept(parsed.Message) {
			continue
		}
		out = append(out, collectedLine{parsed: parsed, containerName: ref.ContainerName})
	}
	return out, nil
}

// bufferSink accumulates one bounded (non-follow) fetch's bytes.
type bufferSink struct {
	buf *bytes.Buffer
}

func (s *bufferSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}
