package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/IvanBrykalov/dexcache/policy/lru"
	"github.com/IvanBrykalov/dexcache/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/sync/errgroup"
)

type fakeClock struct{ t int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t }
func (f *fakeClock) add(d time.Duration) { f.t += int64(d) }

func newClock() *fakeClock { return &fakeClock{t: int64(time.Hour)} }

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(string) (string, bool, error) { return "", false, errors.New("disk gone") }
func (failingStore) Set(string, string) error         { return errors.New("disk gone") }
func (failingStore) Delete(string) error              { return errors.New("disk gone") }

// Uses a fake clock to avoid timing flakiness.
func TestCache_TTL_FakeClock(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[string](Options[string]{MaxEntries: 4, Clock: clk})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("x", "v", 100*time.Millisecond)
	if v, ok := c.Get("x"); !ok || v != "v" {
		t.Fatalf("fresh Get: want v, got %q ok=%v", v, ok)
	}
	clk.add(100 * time.Millisecond)
	if _, ok := c.Get("x"); !ok {
		t.Fatal("entry must live until its deadline inclusive")
	}
	clk.add(time.Nanosecond)
	if _, ok := c.Get("x"); ok {
		t.Fatal("expired hit")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be removed lazily, len=%d", c.Len())
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 || st.Expired != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[int](Options[int]{DefaultTTL: time.Second, Clock: clk})

	c.Set("a", 1, 0)
	clk.add(time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("want hit at deadline")
	}
	clk.add(time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatal("non-positive ttl must use DefaultTTL")
	}
}

// Set/Get/Has/Delete semantics, including overwrite.
func TestCache_BasicSetGetDelete(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{MaxEntries: 8})
	t.Cleanup(func() { _ = c.Close() })

	c.Set("a", 1, time.Minute)
	c.Set("a", 11, time.Minute)
	if v, ok := c.Get("a"); !ok || v != 11 {
		t.Fatalf("Get a want 11, got %v ok=%v", v, ok)
	}
	if !c.Has("a") || c.Has("b") {
		t.Fatal("Has mismatch")
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatal("a must be absent after Delete")
	}
	if st := c.Stats(); st.Writes != 2 || st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

// Has must not move statistics or access counts.
func TestCache_HasIsSideEffectFree(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{})
	c.Set("a", 1, time.Minute)
	for i := 0; i < 5; i++ {
		c.Has("a")
		c.Has("zzz")
	}
	if st := c.Stats(); st.Hits != 0 || st.Misses != 0 {
		t.Fatalf("Has changed stats: %+v", st)
	}
	if c.m["a"].accesses != 0 {
		t.Fatal("Has changed access count")
	}
}

// Eviction removes the smallest (accessCount, createdAt) first.
func TestCache_EvictionLeastUsed(t *testing.T) {
	t.Parallel()

	clk := newClock()
	var evicted []string
	c := New[int](Options[int]{
		MaxEntries: 5,
		Clock:      clk,
		OnEvict: func(k string, _ int, r EvictReason) {
			if r != EvictPolicy {
				t.Errorf("reason %v", r)
			}
			evicted = append(evicted, k)
		},
	})

	for i := 0; i < 5; i++ {
		c.Set("k"+strconv.Itoa(i), i, time.Hour)
		clk.add(time.Millisecond)
	}
	// k0 and k2 become popular; k1 is the oldest never-read entry.
	c.Get("k0")
	c.Get("k2")
	c.Get("k2")

	c.Set("k5", 5, time.Hour) // 6 > 5 -> floor(6*0.2)=1 victim
	if len(evicted) != 1 || evicted[0] != "k1" {
		t.Fatalf("want [k1] evicted, got %v", evicted)
	}
	if c.Len() != 5 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, ok := c.Get("k0"); !ok {
		t.Fatal("k0 must survive")
	}
	if st := c.Stats(); st.Evictions != 1 {
		t.Fatalf("evictions=%d", st.Evictions)
	}
}

// A fresh write is ranked with everything else: with every resident entry
// read once, the new (0 accesses) entry is the victim. Its persisted copy
// survives, so a Get brings it back and evicts the next candidate instead.
func TestCache_NewEntryCanBeEvicted(t *testing.T) {
	t.Parallel()

	clk := newClock()
	mem := store.NewMemory(0)
	var evicted []string
	c := New[int](Options[int]{
		MaxEntries: 5,
		Store:      mem,
		Clock:      clk,
		OnEvict:    func(k string, _ int, _ EvictReason) { evicted = append(evicted, k) },
	})
	for i := 0; i < 5; i++ {
		c.Set("k"+strconv.Itoa(i), i, time.Hour)
		clk.add(time.Millisecond)
	}
	for i := 0; i < 5; i++ {
		c.Get("k" + strconv.Itoa(i))
	}

	c.Set("new", 99, time.Hour)
	if len(evicted) != 1 || evicted[0] != "new" {
		t.Fatalf("want [new] evicted, got %v", evicted)
	}
	if c.Len() != 5 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, ok := c.m["new"]; ok {
		t.Fatal("new must have left the memory tier")
	}
	if !c.Has("new") {
		t.Fatal("persisted copy of the evicted write must remain")
	}

	if v, ok := c.Get("new"); !ok || v != 99 {
		t.Fatalf("Get(new) = %v, %v; want promotion from the persistent tier", v, ok)
	}
	if len(evicted) != 2 || evicted[1] != "k0" {
		t.Fatalf("promotion must evict the oldest least-used entry, got %v", evicted)
	}
	if c.Len() != 5 {
		t.Fatalf("len=%d after promotion", c.Len())
	}
}

// Without a persistent tier a self-evicted write is simply gone.
func TestCache_NewEntryEvictedMemoryOnly(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[int](Options[int]{MaxEntries: 2, Clock: clk})
	c.Set("a", 1, time.Hour)
	clk.add(time.Millisecond)
	c.Set("b", 2, time.Hour)
	clk.add(time.Millisecond)
	c.Get("a")
	c.Get("b")

	c.Set("c", 3, time.Hour)
	if _, ok := c.Get("c"); ok {
		t.Fatal("c was the least-used entry and must have been evicted")
	}
	if !c.Has("a") || !c.Has("b") {
		t.Fatal("read entries must survive")
	}
}

// The memory tier never exceeds MaxEntries, whatever the write pattern.
func TestCache_CapacityInvariant(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[int](Options[int]{MaxEntries: 10, Clock: clk})
	for i := 0; i < 200; i++ {
		c.Set("k"+strconv.Itoa(i%37), i, time.Hour)
		if i%3 == 0 {
			c.Get("k" + strconv.Itoa(i%11))
		}
		clk.add(time.Microsecond)
		if n := c.Len(); n > 10 {
			t.Fatalf("len %d > max after %d writes", n, i+1)
		}
	}
}

func TestCache_EvictLeastUsed_Explicit(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[int](Options[int]{MaxEntries: 100, Clock: clk})
	for i := 0; i < 10; i++ {
		c.Set(fmt.Sprintf("k%02d", i), i, time.Hour)
		clk.add(time.Millisecond)
	}
	for i := 2; i < 10; i++ {
		c.Get(fmt.Sprintf("k%02d", i))
	}
	got := c.EvictLeastUsed()
	if len(got) != 2 || got[0] != "k00" || got[1] != "k01" {
		t.Fatalf("want [k00 k01], got %v", got)
	}

	// Minimum one victim even when floor(n*0.2) is zero.
	small := New[int](Options[int]{})
	small.Set("only", 1, time.Hour)
	if got := small.EvictLeastUsed(); len(got) != 1 {
		t.Fatalf("want 1 victim, got %v", got)
	}
	if got := small.EvictLeastUsed(); len(got) != 0 {
		t.Fatalf("empty cache evicted %v", got)
	}
}

func TestCache_AlternativePolicy(t *testing.T) {
	t.Parallel()

	clk := newClock()
	c := New[int](Options[int]{MaxEntries: 3, Clock: clk, Policy: lru.New()})
	c.Set("a", 1, time.Hour)
	clk.add(time.Millisecond)
	c.Set("b", 2, time.Hour)
	clk.add(time.Millisecond)
	c.Set("c", 3, time.Hour)
	clk.add(time.Millisecond)
	c.Get("a")
	c.Get("a")
	c.Get("b")
	clk.add(time.Millisecond)
	c.Get("c") // c is most recent, a most used

	c.Set("d", 4, time.Hour)
	if c.Has("a") {
		t.Fatal("lru must evict the least recently touched entry (a)")
	}
}

func TestCache_CleanExpired(t *testing.T) {
	t.Parallel()

	clk := newClock()
	mem := store.NewMemory(0)
	c := New[int](Options[int]{Store: mem, Clock: clk})
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)

	clk.add(2 * time.Second)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("want 1 purged, got %d", n)
	}
	if c.Has("short") || !c.Has("long") {
		t.Fatal("wrong entries purged")
	}
	raw, _, _ := mem.Get(DefaultNamespace)
	var blob map[string]persisted
	if err := json.Unmarshal([]byte(raw), &blob); err != nil {
		t.Fatal(err)
	}
	if _, ok := blob["short"]; ok {
		t.Fatal("persistent tier still holds expired entry")
	}
}

// A second cache over the same store sees the first one's entries and
// purges expired ones on construction.
func TestCache_PersistentTierSurvivesReload(t *testing.T) {
	t.Parallel()

	clk := newClock()
	mem := store.NewMemory(0)
	first := New[[]string](Options[[]string]{Store: mem, Clock: clk})
	first.Set("types", []string{"fire", "water"}, time.Minute)
	first.Set("gone", []string{"x"}, time.Second)

	clk.add(2 * time.Second)
	second := New[[]string](Options[[]string]{Store: mem, Clock: clk})
	if second.Len() != 0 {
		t.Fatal("memory tier must start empty")
	}
	v, ok := second.Get("types")
	if !ok || len(v) != 2 || v[1] != "water" {
		t.Fatalf("promoted value: %v ok=%v", v, ok)
	}
	if second.Len() != 1 {
		t.Fatal("persistent hit must be promoted into memory")
	}
	if second.Has("gone") {
		t.Fatal("expired entry must be purged on construction")
	}
}

// Promotion keeps the memory tier within capacity and keeps the promoted key.
func TestCache_PromotionRespectsCapacity(t *testing.T) {
	t.Parallel()

	clk := newClock()
	mem := store.NewMemory(0)
	seed := New[int](Options[int]{Store: mem, Clock: clk})
	seed.Set("cold", 0, time.Hour)

	c := New[int](Options[int]{MaxEntries: 2, Store: mem, Clock: clk})
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, time.Hour)
	if v, ok := c.Get("cold"); !ok || v != 0 {
		t.Fatal("want persistent hit")
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d", c.Len())
	}
	if _, ok := c.m["cold"]; !ok {
		t.Fatal("promoted key must not be its own victim")
	}
}

// Store failures are logged, never surfaced; memory still serves.
func TestCache_StorageFailureDegradesToMemory(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	c := New[string](Options[string]{Store: failingStore{}, Logger: zap.New(core)})

	c.Set("k", "v", time.Minute)
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatal("memory tier must keep serving")
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("unexpected hit")
	}
	if logs.FilterMessage("persistent tier unavailable, serving from memory").Len() == 0 {
		t.Fatal("want storage warnings")
	}
	for _, e := range logs.All() {
		if msg, _ := e.ContextMap()["error"].(string); msg == "" {
			t.Fatalf("warning without error field: %+v", e)
		}
	}
}

func TestCache_QuotaExceededIsNotFatal(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	c := New[string](Options[string]{Store: store.NewMemory(64), Logger: zap.New(core)})
	c.Set("big", string(make([]byte, 256)), time.Minute)
	if _, ok := c.Get("big"); !ok {
		t.Fatal("memory tier must hold the value")
	}
	if logs.Len() == 0 {
		t.Fatal("quota failure must be logged")
	}
}

func TestStorageError_Unwrap(t *testing.T) {
	t.Parallel()

	err := error(&StorageError{Op: "write", Key: "dexcache", Err: store.ErrQuotaExceeded})
	if !errors.Is(err, store.ErrQuotaExceeded) {
		t.Fatal("StorageError must unwrap")
	}
	var se *StorageError
	if !errors.As(err, &se) || se.Op != "write" {
		t.Fatal("errors.As failed")
	}
}

func TestCache_ClearResetsStats(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory(0)
	c := New[int](Options[int]{Store: mem})
	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("b")
	if st := c.Stats(); st.HitRate != 0.5 || st.StoredBytes == 0 {
		t.Fatalf("stats before clear: %+v", st)
	}

	c.Clear()
	st := c.Stats()
	if st != (Stats{MaxEntries: DefaultMaxEntries}) {
		t.Fatalf("stats after clear: %+v", st)
	}
	if _, found, _ := mem.Get(DefaultNamespace); found {
		t.Fatal("namespace blob must be removed")
	}
}

func TestCache_KeysSorted(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{})
	for _, k := range []string{"c", "a", "b"} {
		c.Set(k, 0, time.Minute)
	}
	got := c.Keys()
	if fmt.Sprint(got) != "[a b c]" {
		t.Fatalf("keys %v", got)
	}
}

func TestCache_ClosedIsInert(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{})
	c.Set("a", 1, time.Minute)
	_ = c.Close()
	c.Set("b", 2, time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("closed cache must miss")
	}
	if c.Len() != 1 {
		t.Fatal("Set after Close must be a no-op")
	}
}

type countingMetrics struct {
	hits, misses, writes, evicts int
	size                         int
}

func (m *countingMetrics) Hit()              { m.hits++ }
func (m *countingMetrics) Miss()             { m.misses++ }
func (m *countingMetrics) Write()            { m.writes++ }
func (m *countingMetrics) Evict(EvictReason) { m.evicts++ }
func (m *countingMetrics) Size(n int)        { m.size = n }

func TestCache_MetricsHooks(t *testing.T) {
	t.Parallel()

	m := &countingMetrics{}
	c := New[int](Options[int]{MaxEntries: 2, Metrics: m})
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Set("c", 3, time.Minute)
	c.Get("c")
	c.Get("nope")

	if m.writes != 3 || m.evicts != 1 || m.hits != 1 || m.misses != 1 || m.size != 2 {
		t.Fatalf("metrics: %+v", *m)
	}
}

// Concurrent writers and readers on overlapping keys. Capacity holds
// throughout and every Get returns a value that was written.
func TestCache_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	c := New[int](Options[int]{MaxEntries: 64, Store: store.NewMemory(0)})

	var g errgroup.Group
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 200; i++ {
				k := "k" + strconv.Itoa(i%100)
				c.Set(k, i%100, time.Minute)
				if v, ok := c.Get(k); ok && v != i%100 {
					return fmt.Errorf("key %s: got %d", k, v)
				}
				if n := c.Len(); n > 64 {
					return fmt.Errorf("len %d over capacity", n)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
