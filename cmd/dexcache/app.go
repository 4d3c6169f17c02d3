package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/IvanBrykalov/dexcache/browser"
	"github.com/IvanBrykalov/dexcache/cache"
	"github.com/IvanBrykalov/dexcache/catalog"
	"github.com/IvanBrykalov/dexcache/config"
	"github.com/IvanBrykalov/dexcache/fetch"
	"github.com/IvanBrykalov/dexcache/loader"
	pmet "github.com/IvanBrykalov/dexcache/metrics/prom"
	"github.com/IvanBrykalov/dexcache/policy"
	"github.com/IvanBrykalov/dexcache/policy/leastused"
	"github.com/IvanBrykalov/dexcache/policy/lru"
	"github.com/IvanBrykalov/dexcache/query"
	"github.com/IvanBrykalov/dexcache/store"
	"github.com/IvanBrykalov/dexcache/store/filestore"
	"github.com/IvanBrykalov/dexcache/store/sqlitestore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// app is the wired object graph for one run.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	cache   *cache.Cache[json.RawMessage]
	catalog *catalog.Catalog

	closers []func() error
}

// newApp wires store, cache, fetch client and catalog from cfg. reg may be
// nil, in which case no metrics are exported.
func newApp(cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*app, error) {
	a := &app{cfg: cfg, log: log}

	st, closeStore, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	a.store = st
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	var (
		cacheMetrics cache.Metrics = cache.NoopMetrics{}
		fetchMetrics fetch.Metrics = fetch.NoopMetrics{}
	)
	if reg != nil {
		cacheMetrics = pmet.New(reg, cfg.Metrics.Namespace, "cache", nil)
		fetchMetrics = pmet.NewFetch(reg, cfg.Metrics.Namespace, "fetch", nil)
	}

	a.cache = cache.New[json.RawMessage](cache.Options[json.RawMessage]{
		MaxEntries:    cfg.Cache.MaxEntries,
		DefaultTTL:    cfg.Cache.DefaultTTL,
		Store:         st,
		Namespace:     cfg.Cache.Namespace,
		Policy:        evictionPolicy(cfg.Cache.Policy),
		EvictFraction: cfg.Cache.EvictFraction,
		Metrics:       cacheMetrics,
		Logger:        log.Named("cache"),
	})
	a.closers = append(a.closers, a.cache.Close)

	var limiter *rate.Limiter
	if cfg.API.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit), cfg.API.Burst)
	}
	client := fetch.New(fetch.Options{
		Cache:          a.cache,
		MaxAttempts:    cfg.API.MaxAttempts,
		BaseDelay:      cfg.API.BaseDelay,
		RequestTimeout: cfg.API.RequestTimeout,
		UserAgent:      cfg.API.UserAgent,
		Limiter:        limiter,
		MaxConcurrency: cfg.Loader.BatchSize,
		Metrics:        fetchMetrics,
		Logger:         log.Named("fetch"),
	})

	a.catalog = catalog.New(client, catalog.Options{
		BaseURL: cfg.API.BaseURL,
		TTLs: catalog.TTLs{
			Record:     cfg.API.TTLs.Record,
			Species:    cfg.API.TTLs.Species,
			Evolution:  cfg.API.TTLs.Evolution,
			Categories: cfg.API.TTLs.Categories,
			Group:      cfg.API.TTLs.Group,
		},
		Logger: log.Named("catalog"),
	})
	return a, nil
}

// Close releases the cache and the store in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// openStore builds the persistent tier selected by cfg. The returned close
// func is nil for stores that hold no resources.
func openStore(cfg config.StoreConfig) (store.Store, func() error, error) {
	switch cfg.Kind {
	case config.StoreFile:
		fs, err := filestore.New(cfg.Path, cfg.Quota)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	case config.StoreSQLite:
		ss, err := sqlitestore.Open(cfg.Path, cfg.Quota)
		if err != nil {
			return nil, nil, err
		}
		return ss, ss.Close, nil
	case config.StoreMemory:
		return store.NewMemory(int(cfg.Quota)), nil, nil
	default:
		return store.Noop{}, nil, nil
	}
}

func evictionPolicy(name string) policy.Policy {
	if name == "lru" {
		return lru.New()
	}
	return leastused.New()
}

// load runs the loader over the configured range, drawing a progress bar on
// w unless w is nil.
func (a *app) load(ctx context.Context, w io.Writer) (*loader.Dataset, *loader.Report, error) {
	ld := loader.New(a.catalog, loader.Options{
		BatchSize:  a.cfg.Loader.BatchSize,
		BatchPause: a.cfg.Loader.BatchPause,
		Logger:     a.log.Named("loader"),
	})
	r := a.cfg.Loader.Range

	var progress func(loader.Progress)
	if w != nil {
		bar := progressbar.NewOptions(r.Len(),
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Loading records..."),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		progress = func(p loader.Progress) {
			_ = bar.Set(int(p.Fraction * float64(p.Requested)))
		}
		defer func() { _ = bar.Finish() }()
	}
	return ld.LoadAll(ctx, r, 0, progress)
}

// run executes one CLI invocation.
func run(ctx context.Context, opt options, stdout, stderr io.Writer) error {
	cfg, err := config.LoadConfig(opt.configPath)
	if err != nil {
		return err
	}
	log, _, err := cfg.Logging.NewLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var (
		reg prometheus.Registerer
		srv *http.Server
	)
	if cfg.Metrics.Addr != "" {
		r := prometheus.NewRegistry()
		reg = r
		srv, err = serveMetrics(cfg.Metrics, r, log)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	a, err := newApp(cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	if opt.details > 0 {
		return printDetails(ctx, stdout, a.catalog, opt.details)
	}
	if len(opt.compare) == 2 {
		return printComparison(ctx, stdout, a.catalog, opt.compare[0], opt.compare[1])
	}
	if opt.teamMode() {
		return a.runTeams(ctx, opt, stdout)
	}

	var bar io.Writer
	if !opt.quiet {
		bar = stderr
	}
	ds, report, err := a.load(ctx, bar)
	if ds == nil {
		return err
	}
	if err != nil {
		log.Warn("load interrupted, showing partial dataset", zap.Error(err))
	}
	if p := report.Partial(); p != nil {
		fmt.Fprintf(stderr, "warning: %v\n", p)
	}

	sess := browser.NewSession(ds.Records(), browser.Options{
		PageSize: cfg.Browser.PageSize,
		Groups:   cfg.Groups,
		Store:    a.store,
		Logger:   log.Named("browser"),
	})
	if err := applyOptions(sess, opt); err != nil {
		return err
	}

	if opt.suggest != "" {
		printSuggestions(stdout, sess.Suggest(opt.suggest))
	} else {
		printView(stdout, sess.View(), sess.IsFavorite)
	}
	if opt.stats {
		printStats(stdout, a.cache.Stats())
	}

	if srv != nil {
		log.Info("serving metrics until interrupted", zap.String("addr", cfg.Metrics.Addr))
		<-ctx.Done()
	}
	return nil
}

// applyOptions maps command line options onto the session.
func applyOptions(sess *browser.Session, opt options) error {
	if opt.criteriaSet {
		c := query.Criteria{Group: opt.group, Category: opt.category, Query: opt.query, Bounds: opt.bounds}
		if opt.sort != "" {
			key, dir, err := query.ParseSort(opt.sort)
			if err != nil {
				return err
			}
			c.Sort, c.Order = key, dir
		}
		sess.SetCriteria(c)
	}
	if opt.toggle > 0 {
		sess.ToggleFavorite(opt.toggle)
	}
	sess.FavoritesOnly(opt.favoritesOnly)
	sess.SetPage(opt.page)
	return nil
}

// runTeams executes the team commands against the saved teams in the store.
// Members are fetched through the catalog, so cached records are reused.
func (a *app) runTeams(ctx context.Context, opt options, w io.Writer) error {
	teams := browser.NewTeams(browser.TeamsOptions{Store: a.store, Logger: a.log.Named("teams")})

	if opt.teamImport != "" {
		data, err := os.ReadFile(opt.teamImport)
		if err != nil {
			return err
		}
		team, replaced, err := teams.Import(ctx, a.catalog, data)
		if err != nil {
			return err
		}
		printTeamSaved(w, team, replaced)
	}
	if opt.teamSave != "" {
		members := a.catalog.Records(ctx, opt.teamMembers)
		if len(members) != len(opt.teamMembers) {
			return fmt.Errorf("team %q: fetched %d of %d members", opt.teamSave, len(members), len(opt.teamMembers))
		}
		team, replaced, err := teams.Save(opt.teamSave, opt.teamCategory, members)
		if err != nil {
			return err
		}
		printTeamSaved(w, team, replaced)
	}
	if opt.teamDelete != "" {
		if !teams.Delete(opt.teamDelete) {
			return fmt.Errorf("%w: %q", browser.ErrTeamNotFound, opt.teamDelete)
		}
		fmt.Fprintf(w, "Deleted team %q\n", opt.teamDelete)
	}
	if opt.teamExport != "" {
		raw, err := teams.Export(opt.teamExport)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", raw)
	}
	if opt.teamList {
		printTeams(w, teams.List())
	}
	return nil
}

func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, log *zap.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", cfg.Addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics server started", zap.String("addr", srv.Addr), zap.String("path", cfg.Path))
	return srv, nil
}
