package config

import (
	"fmt"
	"strconv"
	"time"
)

// EnvPrefix prefixes every environment override: DEXCACHE_<SECTION>_<FIELD>.
const EnvPrefix = "DEXCACHE_"

type lookupFunc func(string) (string, bool)

// applyEnvironmentOverrides applies environment variable overrides to config.
// Overrides take precedence over the file and defaults.
func applyEnvironmentOverrides(cfg *Config, lookup lookupFunc) error {
	o := overrider{lookup: lookup}

	o.setString("API_BASE_URL", &cfg.API.BaseURL)
	o.setInt("API_MAX_ATTEMPTS", &cfg.API.MaxAttempts)
	o.setDuration("API_BASE_DELAY", &cfg.API.BaseDelay)
	o.setDuration("API_REQUEST_TIMEOUT", &cfg.API.RequestTimeout)
	o.setFloat("API_RATE_LIMIT", &cfg.API.RateLimit)
	o.setInt("API_BURST", &cfg.API.Burst)
	o.setString("API_USER_AGENT", &cfg.API.UserAgent)

	o.setInt("CACHE_MAX_ENTRIES", &cfg.Cache.MaxEntries)
	o.setDuration("CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL)
	o.setString("CACHE_NAMESPACE", &cfg.Cache.Namespace)
	o.setString("CACHE_POLICY", &cfg.Cache.Policy)

	o.setString("STORE_KIND", &cfg.Store.Kind)
	o.setString("STORE_PATH", &cfg.Store.Path)
	o.setInt64("STORE_QUOTA", &cfg.Store.Quota)

	o.setInt("LOADER_BATCH_SIZE", &cfg.Loader.BatchSize)
	o.setDuration("LOADER_BATCH_PAUSE", &cfg.Loader.BatchPause)

	o.setInt("BROWSER_PAGE_SIZE", &cfg.Browser.PageSize)

	o.setString("METRICS_ADDR", &cfg.Metrics.Addr)

	var level string
	if o.setString("LOGGING_LEVEL", &level) {
		cfg.Logging.Level = LogLevel(level)
	}
	o.setString("LOGGING_FORMAT", &cfg.Logging.Format)

	return o.err
}

// overrider records the first parse failure and ignores later variables.
type overrider struct {
	lookup lookupFunc
	err    error
}

func (o *overrider) get(name string) (string, bool) {
	if o.err != nil {
		return "", false
	}
	v, ok := o.lookup(EnvPrefix + name)
	return v, ok && v != ""
}

func (o *overrider) fail(name, v string, err error) {
	o.err = fmt.Errorf("env %s%s=%q: %w", EnvPrefix, name, v, err)
}

func (o *overrider) setString(name string, dst *string) bool {
	v, ok := o.get(name)
	if ok {
		*dst = v
	}
	return ok
}

func (o *overrider) setInt(name string, dst *int) {
	if v, ok := o.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (o *overrider) setInt64(name string, dst *int64) {
	if v, ok := o.get(name); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (o *overrider) setFloat(name string, dst *float64) {
	if v, ok := o.get(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (o *overrider) setDuration(name string, dst *time.Duration) {
	if v, ok := o.get(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			o.fail(name, v, err)
			return
		}
		*dst = d
	}
}
