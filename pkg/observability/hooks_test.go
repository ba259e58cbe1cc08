package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	p := NoopPipelineHooks{}
	p.OnStepStart(ctx, "requests", "fetch")
	p.OnStepComplete(ctx, "requests", "fetch", time.Second, nil)
	p.OnRunComplete(ctx, "requests", time.Minute, errors.New("test failed"))

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "pypi:")
	c.OnCacheMiss(ctx, "pypi:")
	c.OnCacheSet(ctx, "pypi:", 1024)

	h := NoopHTTPHooks{}
	h.OnRequest(ctx, "GET", "pypi.org", "/pypi/requests/json")
	h.OnResponse(ctx, "GET", "pypi.org", "/pypi/requests/json", 200, time.Second)
	h.OnError(ctx, "GET", "files.pythonhosted.org", "/packages/requests-2.32.3.tar.gz", nil)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Pipeline() should return NoopPipelineHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("HTTP() should return NoopHTTPHooks by default")
	}

	customPipeline := &recordingPipelineHooks{}
	SetPipelineHooks(customPipeline)
	if Pipeline() != customPipeline {
		t.Error("SetPipelineHooks should set custom hooks")
	}
	customCache := &testCacheHooks{}
	SetCacheHooks(customCache)
	if Cache() != customCache {
		t.Error("SetCacheHooks should set custom hooks")
	}
	customHTTP := &testHTTPHooks{}
	SetHTTPHooks(customHTTP)
	if HTTP() != customHTTP {
		t.Error("SetHTTPHooks should set custom hooks")
	}

	Reset()
	if _, ok := Pipeline().(NoopPipelineHooks); !ok {
		t.Error("Reset() should restore NoopPipelineHooks")
	}
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	custom := &recordingPipelineHooks{}
	SetPipelineHooks(custom)
	SetPipelineHooks(nil)

	if Pipeline() != custom {
		t.Error("SetPipelineHooks(nil) should be ignored")
	}
}

func TestRegisteredHooksReceiveEvents(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	rec := &recordingPipelineHooks{}
	SetPipelineHooks(rec)

	ctx := context.Background()
	Pipeline().OnStepStart(ctx, "flask", "install")
	Pipeline().OnStepComplete(ctx, "flask", "install", time.Millisecond, nil)
	Pipeline().OnRunComplete(ctx, "flask", time.Second, nil)

	want := []string{"start flask/install", "complete flask/install", "run flask"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, rec.events[i], want[i])
		}
	}
}

type recordingPipelineHooks struct {
	NoopPipelineHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingPipelineHooks) OnStepStart(_ context.Context, pkg, step string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "start "+pkg+"/"+step)
}

func (h *recordingPipelineHooks) OnStepComplete(_ context.Context, pkg, step string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "complete "+pkg+"/"+step)
}

func (h *recordingPipelineHooks) OnRunComplete(_ context.Context, pkg string, _ time.Duration, _ error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "run "+pkg)
}

type testCacheHooks struct{ NoopCacheHooks }
type testHTTPHooks struct{ NoopHTTPHooks }
