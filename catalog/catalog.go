// Package catalog is the typed resource API of the remote catalog. Each
// operation maps an identifier to a deterministic cache key and URL and
// goes through the fetch client, so repeated reads are served locally.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IvanBrykalov/dexcache/fetch"
	"github.com/IvanBrykalov/dexcache/model"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://pokeapi.co/api/v2"

	// MaxCategoryID is the highest category id kept by Categories; later
	// ids are categories that no record in the default groups carries.
	MaxCategoryID = 18
)

// ErrInvalidID is returned for non-positive identifiers.
var ErrInvalidID = errors.New("catalog: invalid id")

// TTLs holds per-resource cache lifetimes.
type TTLs struct {
	Record     time.Duration
	Species    time.Duration
	Evolution  time.Duration
	Categories time.Duration
	Group      time.Duration
}

// DefaultTTLs returns the lifetimes used for zero TTLs fields.
func DefaultTTLs() TTLs {
	return TTLs{
		Record:     30 * time.Minute,
		Species:    time.Hour,
		Evolution:  time.Hour,
		Categories: 24 * time.Hour,
		Group:      24 * time.Hour,
	}
}

// Options configures a Catalog. Zero values use DefaultBaseURL,
// DefaultTTLs and a no-op logger.
type Options struct {
	BaseURL string
	TTLs    TTLs
	Logger  *zap.Logger
}

// Catalog reads typed resources through a fetch.Client.
type Catalog struct {
	client *fetch.Client
	base   string
	ttl    TTLs
	log    *zap.Logger
}

// New returns a Catalog backed by client.
func New(client *fetch.Client, opt Options) *Catalog {
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBaseURL
	}
	def := DefaultTTLs()
	for _, f := range []struct{ v, d *time.Duration }{
		{&opt.TTLs.Record, &def.Record},
		{&opt.TTLs.Species, &def.Species},
		{&opt.TTLs.Evolution, &def.Evolution},
		{&opt.TTLs.Categories, &def.Categories},
		{&opt.TTLs.Group, &def.Group},
	} {
		if *f.v <= 0 {
			*f.v = *f.d
		}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	return &Catalog{
		client: client,
		base:   strings.TrimRight(opt.BaseURL, "/"),
		ttl:    opt.TTLs,
		log:    opt.Logger,
	}
}

// Cache keys. They are stable across runs so the persistent tier stays valid.
func RecordKey(id int) string { return "resource_" + strconv.Itoa(id) }
func SpeciesKey(id int) string { return "species_" + strconv.Itoa(id) }
func EvolutionKey(chain int) string { return "evolution_" + strconv.Itoa(chain) }
func GroupKey(n int) string { return "group_" + strconv.Itoa(n) }

const CategoriesKey = "all_categories"

// Record returns the record with the given id. Failures are returned as is;
// an exhausted fetch matches fetch.ErrExhausted.
func (c *Catalog) Record(ctx context.Context, id int) (model.Record, error) {
	if id <= 0 {
		return model.Record{}, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return get[model.Record](ctx, c, c.recordRequest(id))
}

// Records fetches ids concurrently and returns the ones that succeeded, in
// input order. Failed ids are logged and omitted.
func (c *Catalog) Records(ctx context.Context, ids []int) []model.Record {
	reqs := make([]fetch.Request, 0, len(ids))
	for _, id := range ids {
		if id > 0 {
			reqs = append(reqs, c.recordRequest(id))
		}
	}
	results := c.client.FetchMany(ctx, reqs)
	out := make([]model.Record, 0, len(results))
	for _, res := range results {
		var r model.Record
		if err := json.Unmarshal(res.Value, &r); err != nil {
			c.log.Warn("dropping undecodable record", zap.String("key", res.Key), zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	return out
}

// Species returns the descriptive data for a record id.
func (c *Catalog) Species(ctx context.Context, id int) (model.Species, error) {
	if id <= 0 {
		return model.Species{}, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}
	return get[model.Species](ctx, c, request(SpeciesKey(id), c.url("pokemon-species", id), c.ttl.Species, model.DecodeSpecies))
}

// EvolutionChain resolves the record's species, then the chain it links to.
// Chains are cached by chain id, so records of one family share an entry.
func (c *Catalog) EvolutionChain(ctx context.Context, id int) (model.EvolutionChain, error) {
	sp, err := c.Species(ctx, id)
	if err != nil {
		return model.EvolutionChain{}, err
	}
	chainID, ok := model.IDFromURL(sp.EvolutionChainURL)
	if !ok {
		return model.EvolutionChain{}, fmt.Errorf("catalog: species %d has no evolution chain", id)
	}
	return get[model.EvolutionChain](ctx, c, request(EvolutionKey(chainID), sp.EvolutionChainURL, c.ttl.Evolution, model.DecodeEvolutionChain))
}

// Categories lists the named categories with id <= MaxCategoryID.
func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	return get[[]model.Category](ctx, c, request(CategoriesKey, c.base+"/type", c.ttl.Categories, decodeKnownCategories))
}

// GroupMembers lists the member names of group n.
func (c *Catalog) GroupMembers(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: group %d", ErrInvalidID, n)
	}
	return get[[]string](ctx, c, request(GroupKey(n), c.url("generation", n), c.ttl.Group, model.DecodeGroupMembers))
}

// Ready reports whether the API is reachable, using the category listing
// as a probe. A cached listing counts as reachable.
func (c *Catalog) Ready(ctx context.Context) error {
	if _, err := c.Categories(ctx); err != nil {
		return fmt.Errorf("catalog: not ready: %w", err)
	}
	return nil
}

func (c *Catalog) recordRequest(id int) fetch.Request {
	return request(RecordKey(id), c.url("pokemon", id), c.ttl.Record, model.DecodeRecord)
}

func (c *Catalog) url(resource string, id int) string {
	return c.base + "/" + resource + "/" + strconv.Itoa(id)
}

func decodeKnownCategories(raw []byte) ([]model.Category, error) {
	all, err := model.DecodeCategories(raw)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, cat := range all {
		if cat.ID <= MaxCategoryID {
			out = append(out, cat)
		}
	}
	return out, nil
}

// request builds a fetch.Request whose body is decoded from the wire shape
// and re-encoded in the model shape before caching.
func request[T any](key, url string, ttl time.Duration, decode func([]byte) (T, error)) fetch.Request {
	return fetch.Request{
		Key: key,
		URL: func() string { return url },
		TTL: ttl,
		Transform: func(body []byte) ([]byte, error) {
			v, err := decode(body)
			if err != nil {
				return nil, err
			}
			return json.Marshal(v)
		},
	}
}

func get[T any](ctx context.Context, c *Catalog, req fetch.Request) (T, error) {
	var out T
	raw, err := c.client.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &fetch.DecodeError{URL: req.URL(), Err: err}
	}
	return out, nil
}
