// Package follower is the public entry point for the multi-container log
// follower. It mirrors the teacher's pkg/streamer: a thin functional-options
// wrapper around the private control loop in internal/logpipeline, so
// callers never reach into internal packages.
package follower

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/acidprime/garden/internal/logpipeline"
)

// Re-exported core types so callers only need to import this one package.
type (
	Resource       = logpipeline.Resource
	ResourceKind   = logpipeline.ResourceKind
	ContainerRef   = logpipeline.ContainerRef
	ClusterAdapter = logpipeline.ClusterAdapter
	FilterConfig   = logpipeline.FilterConfig
	Options        = logpipeline.Options
	OneShotOptions = logpipeline.OneShotOptions
)

const (
	ResourceKindPod         = logpipeline.ResourceKindPod
	ResourceKindDeployment  = logpipeline.ResourceKindDeployment
	ResourceKindDaemonSet   = logpipeline.ResourceKindDaemonSet
	ResourceKindStatefulSet = logpipeline.ResourceKindStatefulSet
)

// ConsumerStream is the write-only sink of converted entries the caller
// supplies; the core never reads from it.
type ConsumerStream[T any] interface {
	Write(entry T) error
}

// Converter turns one parsed entry's fields into the caller's
// consumer-facing shape.
type Converter[T any] func(timestamp time.Time, message, containerName, level string) T

// Follower is the public handle to a running (or not-yet-started) log
// follower for one set of resources.
type Follower[T any] struct {
	core   *logpipeline.Follower[T]
	logger zerolog.Logger
}

// Option configures a Follower at construction time.
type Option[T any] func(*followerConfig[T])

type followerConfig[T any] struct {
	logger zerolog.Logger
}

// WithLogger sets the diagnostic logger. Defaults to a zerolog.Logger
// writing to stdout, matching the teacher's streamer.WithLogger default.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(c *followerConfig[T]) { c.logger = logger }
}

// New builds a Follower. adapter, converter, and consumer are mandatory;
// opts configures the reconcile behavior (spec §4.1's start(opts)).
func New[T any](adapter ClusterAdapter, converter Converter[T], consumer ConsumerStream[T], opts Options, options ...Option[T]) *Follower[T] {
	cfg := &followerConfig[T]{
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	for _, o := range options {
		o(cfg)
	}
	return &Follower[T]{
		core:   logpipeline.New(adapter, logpipeline.Converter[T](converter), consumer, opts, cfg.logger),
		logger: cfg.logger,
	}
}

// Start begins reconciling and returns a latch that closes once Stop has
// completed. The loop itself never completes on its own.
func (f *Follower[T]) Start(ctx context.Context) <-chan struct{} {
	return f.core.Start(ctx)
}

// Stop aborts every live stream, cancels the reconcile schedule, and
// resolves Start's latch. Idempotent; safe to call more than once.
func (f *Follower[T]) Stop() {
	f.core.Stop()
}
