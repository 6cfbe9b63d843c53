package sandboxsvc

import (
	"context"
	"io"
	"strconv"
	"sync"
	"time"

	"sandboxd/internal/runtime"
)

// fakeRuntime is a minimal in-memory runtime.Runtime used to exercise the
// manager without a real docker daemon.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*runtime.ContainerInfo
	execFunc   func(id string, opts runtime.ExecOptions) (runtime.ExecResult, error)
	nextID     int
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: make(map[string]*runtime.ContainerInfo)}
}

func (f *fakeRuntime) Get(_ context.Context, id string) (*runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return nil, &runtime.Error{Kind: runtime.KindNotFound, Err: errNotFoundSentinel}
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRuntime) Create(_ context.Context, spec runtime.ContainerSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := "c" + strconv.Itoa(f.nextID)
	f.containers[id] = &runtime.ContainerInfo{ID: id, Name: spec.Name, State: "created", Labels: spec.Labels}
	return id, nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[id]
	if !ok {
		return &runtime.Error{Kind: runtime.KindNotFound, Err: errNotFoundSentinel}
	}
	c.State = "running"
	return nil
}

func (f *fakeRuntime) Stop(_ context.Context, id string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.containers[id]; ok {
		c.State = "exited"
	}
	return nil
}

func (f *fakeRuntime) Remove(_ context.Context, id string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.containers, id)
	return nil
}

func (f *fakeRuntime) Exec(_ context.Context, id string, opts runtime.ExecOptions) (runtime.ExecResult, error) {
	if f.execFunc != nil {
		return f.execFunc(id, opts)
	}
	return runtime.ExecResult{ExitCode: 0}, nil
}

func (f *fakeRuntime) PutArchive(_ context.Context, _, _ string, _ []byte) error { return nil }

func (f *fakeRuntime) GetArchive(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return nil, &runtime.Error{Kind: runtime.KindNotFound, Err: errNotFoundSentinel}
}

func (f *fakeRuntime) List(_ context.Context, _ map[string]string) ([]runtime.ContainerInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runtime.ContainerInfo, 0, len(f.containers))
	for _, c := range f.containers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRuntime) Images() runtime.Images { return nil }

func (f *fakeRuntime) Close() error { return nil }

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const errNotFoundSentinel = simpleErr("not found")
