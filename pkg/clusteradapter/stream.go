package clusteradapter

import (
	"context"
	"errors"
	"fmt"
	"io"

	corev1 "k8s.io/api/core/v1"

	"github.com/acidprime/garden/internal/logpipeline"
)

// handle implements logpipeline.StreamHandle for one open (or now-aborted)
// client-go log stream.
type handle struct {
	cancel context.CancelFunc
	body   io.Closer
}

func (h *handle) Abort() {
	h.cancel()
	_ = h.body.Close()
}

// OpenLogStream implements logpipeline.ClusterAdapter. It opens a
// GetLogs(...).Stream(ctx) request exactly the way every k8s-log-reading
// repo in the pack does, then copies bytes into opts.Sink on a dedicated
// goroutine, reporting lifecycle events back through opts.Events.
func (a *Adapter) OpenLogStream(ctx context.Context, opts logpipeline.OpenStreamOptions) (logpipeline.StreamHandle, error) {
	logOpts := &corev1.PodLogOptions{
		Container:    opts.ContainerName,
		Follow:       opts.Follow,
		Timestamps:   opts.Timestamps,
		TailLines:    opts.TailLines,
		SinceSeconds: opts.SinceSeconds,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req := a.client.CoreV1().Pods(opts.Namespace).GetLogs(opts.PodName, logOpts)
	body, err := req.Stream(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("GetLogs(%s/%s): %w", opts.PodName, opts.ContainerName, err)
	}

	h := &handle{cancel: cancel, body: body}

	var policy logpipeline.SocketPolicy
	if opts.Events.OnSocket != nil {
		policy = logpipeline.NewIdleWatcher(0, func() {
			a.logger.Trace().Str("level", "silly").Str("pod", opts.PodName).Str("container", opts.ContainerName).Msg("idle timeout, destroying stream")
			h.Abort()
		})
		opts.Events.OnSocket(policy)
	}

	go a.copyLoop(body, opts, policy)

	return h, nil
}

// copyLoop drains body into opts.Sink, reporting OnError at most once (not
// for a graceful close) and OnClose exactly once, following client-go's
// convention that Stream's ReadCloser returns io.EOF on a graceful close.
func (a *Adapter) copyLoop(body io.ReadCloser, opts logpipeline.OpenStreamOptions, policy logpipeline.SocketPolicy) {
	defer body.Close()
	if policy != nil {
		defer policy.Destroy()
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if opts.LimitBytes != nil {
				remaining := *opts.LimitBytes - written
				if remaining <= 0 {
					break
				}
				if int64(len(chunk)) > remaining {
					chunk = chunk[:remaining]
				}
			}
			if _, werr := opts.Sink.Write(chunk); werr != nil {
				if opts.Events.OnError != nil {
					opts.Events.OnError(werr)
				}
				break
			}
			written += int64(len(chunk))
			if opts.LimitBytes != nil && written >= *opts.LimitBytes {
				break
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && opts.Events.OnError != nil {
				opts.Events.OnError(err)
			}
			break
		}
	}

	if opts.Events.OnClose != nil {
		opts.Events.OnClose()
	}
}
