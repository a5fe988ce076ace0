// Package logpipeline implements the core of the multi-container log
// follower: container discovery, per-container streaming, line parsing,
// reconnect deduplication, and the one-shot bounded-tail collector.
//
// The package never talks to a cluster API directly — it consumes the
// ClusterAdapter interface, and the concrete client-go implementation lives
// in pkg/clusteradapter.
package logpipeline

import (
	"context"
	"io"
	"strings"
	"time"
)

// InfrastructureContainerPrefix marks containers that belong to the runtime
// itself rather than to workload pods; they are never attached to.
const InfrastructureContainerPrefix = "garden-"

// ResourceKind names the kind of cluster object a Resource points at.
type ResourceKind string

const (
	ResourceKindPod         ResourceKind = "Pod"
	ResourceKindDeployment  ResourceKind = "Deployment"
	ResourceKindDaemonSet   ResourceKind = "DaemonSet"
	ResourceKindStatefulSet ResourceKind = "StatefulSet"
)

// Resource is an opaque handle identifying a kind plus name and namespace.
// The ClusterAdapter knows how to expand it into ContainerRefs.
type Resource struct {
	Kind      ResourceKind
	Name      string
	Namespace string
}

// ContainerRef identifies one container inside one pod.
type ContainerRef struct {
	PodName       string
	ContainerName string
	Namespace     string
}

// Key returns the stable connection key for this container: podName + "/" + containerName.
func (c ContainerRef) Key() string {
	return c.PodName + "/" + c.ContainerName
}

// DedupKey returns the stable per-container dedup window key: podName + "." + containerName.
func (c ContainerRef) DedupKey() string {
	return c.PodName + "." + c.ContainerName
}

// IsInfrastructure reports whether this container belongs to the runtime
// itself and must be excluded from the target set.
func (c ContainerRef) IsInfrastructure() bool {
	return isInfrastructureContainer(c.ContainerName)
}

func isInfrastructureContainer(name string) bool {
	return strings.HasPrefix(name, InfrastructureContainerPrefix)
}

// ConnectionStatus is the lifecycle state of a Connection.
type ConnectionStatus int

const (
	// StatusConnected means the connection has an attached, usable stream.
	StatusConnected ConnectionStatus = iota
	// StatusError means the underlying stream reported an error; a closed
	// transition normally follows immediately and is not logged again.
	StatusError
	// StatusClosed means the connection has no usable stream and will be
	// replaced on the next reconcile.
	StatusClosed
)

func (s ConnectionStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Connection is one registry entry: the target container, its open stream
// handle (nil once non-live), and its current status.
type Connection struct {
	Ref    ContainerRef
	Stream StreamHandle
	Status ConnectionStatus
	Policy SocketPolicy
}

// Live reports whether this connection currently owns an open stream.
func (c *Connection) Live() bool {
	return c.Status == StatusConnected
}

// LogEntry is the core's internal representation of one parsed log line.
type LogEntry struct {
	Timestamp     time.Time
	Message       string
	ContainerName string
	Level         string
}

// DefaultLevel is the level assigned to every LogEntry; the core does not
// infer severity from content.
const DefaultLevel = "info"

// Sink is the write-only destination the ClusterAdapter copies raw stream
// bytes into. The follower supplies one Sink per container.
type Sink interface {
	io.Writer
}

// StreamEvents carries the lifecycle callbacks a StreamHandle fires.
type StreamEvents struct {
	OnError  func(err error)
	OnClose  func()
	OnSocket func(s SocketPolicy)
}

// StreamHandle represents one open (or formerly open) log stream.
type StreamHandle interface {
	// Abort tears down the stream immediately. Errors are ignored by callers
	// per spec: an abort is a best-effort teardown, never a reported failure.
	Abort()
}

// SocketPolicy is the idle-timeout/keepalive contract installed on the
// transport underlying a stream. IdleWatcher in this package is the
// concrete timer-based stand-in, installed by pkg/clusteradapter because
// client-go does not expose a raw net.Conn.
type SocketPolicy interface {
	// Touch resets the idle deadline; the follower calls this once per
	// received chunk.
	Touch()
	// Destroy tears the policy down; no further timeout callbacks fire.
	Destroy()
}

// OpenStreamOptions parameterizes one openLogStream call.
type OpenStreamOptions struct {
	Namespace     string
	PodName       string
	ContainerName string
	Sink          Sink
	Follow        bool
	Timestamps    bool
	TailLines     *int64
	SinceSeconds  *int64
	LimitBytes    *int64
	Events        StreamEvents
}

// ClusterAdapter is the sole collaborator interface this core depends on.
type ClusterAdapter interface {
	// EnumerateContainers returns the current set of containers belonging to
	// resources within namespace, excluding infrastructure containers.
	EnumerateContainers(ctx context.Context, namespace string, resources []Resource) ([]ContainerRef, error)
	// OpenLogStream starts a streaming (or bounded) log fetch for one
	// container, writing raw bytes into opts.Sink as they arrive.
	OpenLogStream(ctx context.Context, opts OpenStreamOptions) (StreamHandle, error)
}
