package logpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Collect_MergesAndSortsByTimestamp(t *testing.T) {
	refA := ContainerRef{PodName: "p1", ContainerName: "a", Namespace: "ns"}
	refB := ContainerRef{PodName: "p2", ContainerName: "b", Namespace: "ns"}
	adapter := newFakeAdapter(refA, refB)
	adapter.onOpen = func(ref ContainerRef, opts OpenStreamOptions) {
		switch ref.ContainerName {
		case "a":
			_, _ = opts.Sink.Write([]byte("2024-05-01T00:00:02Z from-a-second\n2024-05-01T00:00:00Z from-a-first\n"))
		case "b":
			_, _ = opts.Sink.Write([]byte("2024-05-01T00:00:01Z from-b-middle\n"))
		}
		opts.Events.OnClose()
	}

	consumer := newTestConsumer[string](8)
	collector := NewCollector(adapter, stringConverter, consumer, FilterConfig{}, discardLogger())

	err := collector.Collect(context.Background(), OneShotOptions{
		Namespace: "ns",
		Resources: []Resource{
			{Kind: ResourceKindPod, Name: "p1", Namespace: "ns"},
			{Kind: ResourceKindPod, Name: "p2", Namespace: "ns"},
		},
	})
	require.NoError(t, err)

	got := drain(t, consumer.ch, 3, 2*time.Second)
	assert.Equal(t, []string{"a:from-a-first", "b:from-b-middle", "a:from-a-second"}, got)
}

func TestCollector_Collect_OneBadPodDoesNotFailTheOthers(t *testing.T) {
	refA := ContainerRef{PodName: "p1", ContainerName: "a", Namespace: "ns"}
	refB := ContainerRef{PodName: "p2", ContainerName: "b", Namespace: "ns"}
	adapter := newFakeAdapter(refA, refB)
	adapter.openErr["p1/a"] = assertErr{}
	adapter.onOpen = func(ref ContainerRef, opts OpenStreamOptions) {
		if ref.ContainerName == "b" {
			_, _ = opts.Sink.Write([]byte("2024-05-01T00:00:00Z ok\n"))
			opts.Events.OnClose()
		}
	}

	consumer := newTestConsumer[string](4)
	collector := NewCollector(adapter, stringConverter, consumer, FilterConfig{}, discardLogger())

	err := collector.Collect(context.Background(), OneShotOptions{
		Namespace: "ns",
		Resources: []Resource{
			{Kind: ResourceKindPod, Name: "p1", Namespace: "ns"},
			{Kind: ResourceKindPod, Name: "p2", Namespace: "ns"},
		},
	})
	require.NoError(t, err)

	got := drain(t, consumer.ch, 1, 2*time.Second)
	assert.Equal(t, []string{"b:ok"}, got)
}

func TestCollector_Collect_DerivesTailFromContainerCount(t *testing.T) {
	refs := make([]ContainerRef, 4)
	for i := range refs {
		refs[i] = ContainerRef{PodName: "p", ContainerName: string(rune('a' + i)), Namespace: "ns"}
	}
	adapter := newFakeAdapter(refs...)
	adapter.onOpen = func(_ ContainerRef, opts OpenStreamOptions) {
		opts.Events.OnClose()
	}

	consumer := newTestConsumer[string](4)
	collector := NewCollector(adapter, stringConverter, consumer, FilterConfig{}, discardLogger())

	resources := make([]Resource, len(refs))
	for i, r := range refs {
		resources[i] = Resource{Kind: ResourceKindPod, Name: r.PodName, Namespace: "ns"}
	}
	err := collector.Collect(context.Background(), OneShotOptions{Namespace: "ns", Resources: resources})
	require.NoError(t, err)

	for _, opts := range adapter.opens {
		require.NotNil(t, opts.TailLines)
		assert.Equal(t, int64(100000/4), *opts.TailLines)
	}
}

func TestCollector_Collect_NoTargetsIsANoOp(t *testing.T) {
	adapter := newFakeAdapter()
	consumer := newTestConsumer[string](1)
	collector := NewCollector(adapter, stringConverter, consumer, FilterConfig{}, discardLogger())

	err := collector.Collect(context.Background(), OneShotOptions{Namespace: "ns"})
	require.NoError(t, err)
	assert.Equal(t, 0, adapter.openCount())
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated open failure" }

// TestCollector_Collect_FetchOneAbortsStuckStreamWithoutRacingBuf drives
// fetchOne's idle-timeout branch: a stream that never calls OnClose or
// OnError within the idle window must be aborted, and the write that
// arrived just before the abort must still be visible afterward — proving
// fetchOne waited for the abort's effect (<-done) before reading buf rather
// than reading it concurrently with a write still in flight.
func TestCollector_Collect_FetchOneAbortsStuckStreamWithoutRacingBuf(t *testing.T) {
	orig := fetchIdleTimeout
	fetchIdleTimeout = 10 * time.Millisecond
	defer func() { fetchIdleTimeout = orig }()

	ref := ContainerRef{PodName: "p1", ContainerName: "app", Namespace: "ns"}
	adapter := newFakeAdapter(ref)
	adapter.onOpen = func(_ ContainerRef, opts OpenStreamOptions) {
		_, _ = opts.Sink.Write([]byte("2024-05-01T00:00:00Z wrote-before-hang\n"))
		// Wire Abort to the stream's OnClose, mirroring copyLoop's real
		// guarantee: an aborted stream eventually signals close, it just
		// never does so on its own here.
		stream := adapter.streamFor("p1/app")
		stream.onAbort = opts.Events.OnClose
	}

	consumer := newTestConsumer[string](4)
	collector := NewCollector(adapter, stringConverter, consumer, FilterConfig{}, discardLogger())

	done := make(chan error, 1)
	go func() {
		done <- collector.Collect(context.Background(), OneShotOptions{
			Namespace: "ns",
			Resources: []Resource{{Kind: ResourceKindPod, Name: "p1", Namespace: "ns"}},
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Collect did not return after the stuck stream's idle timeout")
	}

	got := drain(t, consumer.ch, 1, time.Second)
	assert.Equal(t, []string{"app:wrote-before-hang"}, got)

	stream := adapter.streamFor("p1/app")
	select {
	case <-stream.aborted:
	default:
		t.Fatal("stuck stream was never aborted")
	}
}
