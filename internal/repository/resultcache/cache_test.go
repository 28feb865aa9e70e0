package resultcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/skyhive/marketdex/internal/db"
)

// --- Mocks ---

type fakeStore struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	deleted []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Del(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.data, key)
	return nil
}

type fixedTTLs map[string]time.Duration

func (f fixedTTLs) TTLFor(class string) time.Duration {
	if d, ok := f[class]; ok {
		return d
	}
	return 5 * time.Minute
}

type payload struct {
	Value string `json:"value"`
}

// --- Tests ---

func TestPutThenGet(t *testing.T) {
	store := newFakeStore()
	c := New(store, "test:", fixedTTLs{ClassSearchResults: 2 * time.Minute}, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, ClassSearchResults, "k1", payload{Value: "hello"})

	var got payload
	if !c.Get(ctx, ClassSearchResults, "k1", &got) {
		t.Fatal("expected cache hit")
	}
	if got.Value != "hello" {
		t.Errorf("got %q, want %q", got.Value, "hello")
	}
	if ttl := store.ttls["test:search_results:k1"]; ttl != 2*time.Minute {
		t.Errorf("stored TTL = %v, want 2m", ttl)
	}
}

func TestGetMiss(t *testing.T) {
	c := New(newFakeStore(), "test:", fixedTTLs{}, zap.NewNop())
	var got payload
	if c.Get(context.Background(), ClassSearchResults, "absent", &got) {
		t.Fatal("expected cache miss")
	}
}

func TestGetStoreFailureIsMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := New(store, "test:", fixedTTLs{}, zap.NewNop())

	var got payload
	if c.Get(context.Background(), ClassSearchResults, "k", &got) {
		t.Fatal("store failure must be reported as a miss")
	}
}

func TestGetCorruptEntryIsMiss(t *testing.T) {
	store := newFakeStore()
	store.data["test:search_results:k"] = []byte("{not json")
	c := New(store, "test:", fixedTTLs{}, zap.NewNop())

	var got payload
	if c.Get(context.Background(), ClassSearchResults, "k", &got) {
		t.Fatal("corrupt entry must be reported as a miss")
	}
}

func TestPutStoreFailureIsSilent(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("connection refused")
	c := New(store, "test:", fixedTTLs{}, zap.NewNop())

	// Must not panic or propagate.
	c.Put(context.Background(), ClassSearchResults, "k", payload{Value: "x"})
}

func TestClassesAreKeyspaced(t *testing.T) {
	store := newFakeStore()
	c := New(store, "test:", fixedTTLs{}, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, ClassSearchResults, "k", payload{Value: "search"})
	c.Put(ctx, ClassRecommendations, "k", payload{Value: "rec"})

	var got payload
	if !c.Get(ctx, ClassRecommendations, "k", &got) || got.Value != "rec" {
		t.Errorf("classes must not collide: got %+v", got)
	}
}

func TestInvalidate(t *testing.T) {
	store := newFakeStore()
	c := New(store, "test:", fixedTTLs{}, zap.NewNop())
	ctx := context.Background()

	c.Put(ctx, ClassEntityDetail, "svc-1", payload{Value: "x"})
	c.Invalidate(ctx, ClassEntityDetail, "svc-1")

	var got payload
	if c.Get(ctx, ClassEntityDetail, "svc-1", &got) {
		t.Fatal("expected miss after invalidation")
	}
}
