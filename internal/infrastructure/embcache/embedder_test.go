package embcache

import (
	"context"
	"errors"
	"testing"
)

type innerFake struct {
	calls int
	err   error
}

func (f *innerFake) Embed(context.Context, string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 2, 3}, nil
}

func TestCachedEmbedderHitsCacheOnRepeat(t *testing.T) {
	inner := &innerFake{}
	cached, err := New(inner, 8, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	first, err := cached.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := cached.Embed(context.Background(), "same text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}
	if len(first) != len(second) {
		t.Fatalf("vectors differ across calls")
	}
}

func TestCachedEmbedderDistinguishesTexts(t *testing.T) {
	inner := &innerFake{}
	cached, _ := New(inner, 8, nil, nil)

	_, _ = cached.Embed(context.Background(), "alpha")
	_, _ = cached.Embed(context.Background(), "beta")
	if inner.calls != 2 {
		t.Fatalf("expected 2 inner calls, got %d", inner.calls)
	}
}

func TestCachedEmbedderDoesNotCacheFailures(t *testing.T) {
	inner := &innerFake{err: errors.New("model down")}
	cached, _ := New(inner, 8, nil, nil)

	if _, err := cached.Embed(context.Background(), "text"); err == nil {
		t.Fatalf("expected error")
	}
	inner.err = nil
	if _, err := cached.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed() after recovery error = %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("failure must not be cached, got %d calls", inner.calls)
	}
}
