// Command bench runs a synthetic read/write workload against the two-tier
// cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/dexcache/cache"
	pmet "github.com/IvanBrykalov/dexcache/metrics/prom"
	"github.com/IvanBrykalov/dexcache/policy/leastused"
	"github.com/IvanBrykalov/dexcache/policy/lru"
	"github.com/IvanBrykalov/dexcache/store"
	"github.com/IvanBrykalov/dexcache/store/filestore"
	"github.com/IvanBrykalov/dexcache/store/sqlitestore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var (
		capacity = flag.Int("cap", 500, "memory tier capacity (entries)")
		pol      = flag.String("policy", "leastused", "eviction policy: leastused | lru")
		kind     = flag.String("store", "none", "persistent tier: none | memory | file | sqlite")
		path     = flag.String("path", "", "directory (file) or DSN (sqlite); temp dir when empty")
		ttl      = flag.Duration("ttl", time.Minute, "entry TTL")

		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys  = flag.Int("keys", 2_000, "keyspace size")
		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Build cache ----
	opt := cache.Options[string]{
		MaxEntries: *capacity,
		DefaultTTL: *ttl,
		Namespace:  "bench",
	}
	if *metricsAddr != "" {
		opt.Metrics = pmet.New(nil, "dexcache", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Printf("metrics: serving at %s", *metricsAddr)
			log.Println(http.ListenAndServe(*metricsAddr, nil))
		}()
	}
	switch *pol {
	case "leastused":
		opt.Policy = leastused.New()
	case "lru":
		opt.Policy = lru.New()
	default:
		log.Fatalf("unknown policy: %q (use leastused or lru)", *pol)
	}
	st, closeStore, err := openStore(*kind, *path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()
	opt.Store = st

	c := cache.New[string](opt)
	defer func() { _ = c.Close() }()

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// rand.Rand is not goroutine-safe; one per worker.
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			for ctx.Err() == nil {
				atomic.AddUint64(&total, 1)
				k := "resource_" + strconv.FormatUint(localZipf.Uint64(), 10)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(k); ok {
						atomic.AddUint64(&hits, 1)
						continue
					}
				}
				// A miss is followed by a fill, like the fetch client does.
				atomic.AddUint64(&writes, 1)
				c.Set(k, "v"+strconv.Itoa(localR.Int()), 0)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	s := c.Stats()
	fmt.Printf("policy=%s store=%s cap=%d workers=%d keys=%d dur=%v seed=%d\n",
		*pol, *kind, *capacity, workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  read-hits=%d\n",
		ops, float64(ops)/elapsed.Seconds(), atomic.LoadUint64(&reads), atomic.LoadUint64(&writes), atomic.LoadUint64(&hits))
	fmt.Printf("hit-rate=%.2f%%  evictions=%d  entries=%d  stored=%dB\n",
		s.HitRate*100, s.Evictions, s.Entries, s.StoredBytes)
}

func openStore(kind, path string) (store.Store, func(), error) {
	noop := func() {}
	switch kind {
	case "none":
		return store.Noop{}, noop, nil
	case "memory":
		return store.NewMemory(0), noop, nil
	}

	cleanup := noop
	if path == "" {
		dir, err := os.MkdirTemp("", "dexcache-bench-")
		if err != nil {
			return nil, nil, err
		}
		cleanup = func() { _ = os.RemoveAll(dir) }
		path = dir
		if kind == "sqlite" {
			path = dir + "/bench.db"
		}
	}
	switch kind {
	case "file":
		fs, err := filestore.New(path, 0)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return fs, func() { _ = fs.Close(); cleanup() }, nil
	case "sqlite":
		ss, err := sqlitestore.Open(path, 0)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		return ss, func() { _ = ss.Close(); cleanup() }, nil
	}
	cleanup()
	return nil, nil, fmt.Errorf("unknown store %q (use none, memory, file or sqlite)", kind)
}
