package logpipeline

import (
	"context"
	"sync"
	"time"
)

// fakeStream is a StreamHandle test double recording whether Abort was
// called. onAbort, if set, lets a test mimic copyLoop's real guarantee that
// an aborted stream eventually calls OnClose.
type fakeStream struct {
	once    sync.Once
	aborted chan struct{}
	onAbort func()
}

func newFakeStream() *fakeStream {
	return &fakeStream{aborted: make(chan struct{})}
}

func (f *fakeStream) Abort() {
	f.once.Do(func() {
		close(f.aborted)
		if f.onAbort != nil {
			f.onAbort()
		}
	})
}

// fakeAdapter is a ClusterAdapter test double. EnumerateContainers returns a
// fixed (mutable, under mu) set of refs; OpenLogStream hands back a
// fakeStream and, if set, invokes onOpen synchronously so a test can drive
// the returned Sink/Events from within the call.
type fakeAdapter struct {
	mu           sync.Mutex
	refs         []ContainerRef
	enumerateErr error
	openErr      map[string]error
	opens        []OpenStreamOptions
	streams      map[string]*fakeStream
	onOpen       func(ref ContainerRef, opts OpenStreamOptions)
}

func newFakeAdapter(refs ...ContainerRef) *fakeAdapter {
	return &fakeAdapter{refs: refs, openErr: map[string]error{}, streams: map[string]*fakeStream{}}
}

func (f *fakeAdapter) setRefs(refs []ContainerRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = refs
}

func (f *fakeAdapter) EnumerateContainers(ctx context.Context, namespace string, resources []Resource) ([]ContainerRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enumerateErr != nil {
		return nil, f.enumerateErr
	}
	out := make([]ContainerRef, len(f.refs))
	copy(out, f.refs)
	return out, nil
}

func (f *fakeAdapter) OpenLogStream(ctx context.Context, opts OpenStreamOptions) (StreamHandle, error) {
	key := opts.PodName + "/" + opts.ContainerName
	f.mu.Lock()
	if err, ok := f.openErr[key]; ok {
		f.mu.Unlock()
		return nil, err
	}
	stream := newFakeStream()
	f.streams[key] = stream
	f.opens = append(f.opens, opts)
	hook := f.onOpen
	f.mu.Unlock()

	if hook != nil {
		hook(ContainerRef{PodName: opts.PodName, ContainerName: opts.ContainerName, Namespace: opts.Namespace}, opts)
	}
	return stream, nil
}

func (f *fakeAdapter) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

func (f *fakeAdapter) lastOpen() OpenStreamOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens[len(f.opens)-1]
}

func (f *fakeAdapter) streamFor(key string) *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streams[key]
}

// testConsumer is a ConsumerStream test double that forwards every written
// entry onto a channel the test drains with a timeout.
type testConsumer[T any] struct {
	ch chan T
}

func newTestConsumer[T any](buf int) testConsumer[T] {
	return testConsumer[T]{ch: make(chan T, buf)}
}

func (c testConsumer[T]) Write(entry T) error {
	c.ch <- entry
	return nil
}

func stringConverter(_ time.Time, message, containerName, _ string) string {
	return containerName + ":" + message
}
