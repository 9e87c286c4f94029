package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/two-pack/redmine-importer/internal/storage"
	"github.com/two-pack/redmine-importer/internal/storage/memory"
	"github.com/two-pack/redmine-importer/internal/types"
)

func TestInitDisabledInstallsNoop(t *testing.T) {
	if err := Init(context.Background(), Config{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if Enabled() {
		t.Fatal("Enabled() = true for a disabled config")
	}
	_, span := Tracer("").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("expected a no-op span when telemetry is disabled")
	}
	span.End()
	Shutdown(context.Background())
}

func TestInitEnabledWrapsStore(t *testing.T) {
	ctx := context.Background()
	if err := Init(ctx, Config{Enabled: true, Version: "test", Driver: "sqlite"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { Shutdown(ctx) })

	_, span := Tracer("").Start(ctx, "import")
	if !span.SpanContext().IsValid() {
		t.Error("expected a recording span when telemetry is enabled")
	}
	span.End()
	if _, ok := WrapStore(memory.New()).(*InstrumentedStore); !ok {
		t.Error("WrapStore did not instrument the store")
	}

	Shutdown(ctx)
	if Enabled() {
		t.Error("Enabled() = true after Shutdown")
	}
}

func TestAttributes(t *testing.T) {
	got := map[string]string{}
	for _, kv := range Attributes(Config{Version: "1.2.3", Driver: "postgres", SessionBackend: "redis"}) {
		got[string(kv.Key)] = kv.Value.Emit()
	}
	want := map[string]string{
		"service.name":        "rmi",
		"service.version":     "1.2.3",
		"rmi.db.driver":       "postgres",
		"rmi.session.backend": "redis",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if len(Attributes(Config{})) != 2 {
		t.Error("empty driver and backend should be omitted")
	}
}

func TestWrapStoreDisabled(t *testing.T) {
	Shutdown(context.Background())
	s := memory.New()
	if got := WrapStore(s); got != storage.Store(s) {
		t.Fatalf("WrapStore returned %T, want the original store", got)
	}
}

func TestInstrumentedStorePassesThrough(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	wrapped := newInstrumentedStore(s)

	if _, err := wrapped.GetIssue(ctx, 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetIssue err = %v, want ErrNotFound", err)
	}
	err := wrapped.CreateIssue(ctx, &types.Issue{Subject: ""}, storage.WriteOptions{})
	var verr *types.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateIssue err = %v, want validation error", err)
	}
	if s.Calls("GetIssue") != 1 || s.Calls("CreateIssue") != 1 {
		t.Errorf("calls not forwarded: get=%d create=%d", s.Calls("GetIssue"), s.Calls("CreateIssue"))
	}
}
