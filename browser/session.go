// Package browser is the presentation contract of the catalog: a Session
// holds the user's criteria, page position and favorites over a loaded
// record set, persists them, and notifies registered callbacks on change.
// Teams keeps named member selections in the same store.
package browser

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/IvanBrykalov/dexcache/model"
	"github.com/IvanBrykalov/dexcache/query"
	"github.com/IvanBrykalov/dexcache/store"
	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"
)

// Store keys for persisted session state.
const (
	PreferencesKey = "dexcache_preferences"
	FavoritesKey   = "dexcache_favorites"
)

// Options configures a Session. Zero values: PageSize => query.DefaultPageSize,
// nil Groups => model.DefaultGroups(), nil Store => store.Noop, nil Logger => no-op.
type Options struct {
	PageSize int
	Groups   model.Groups
	Store    store.Store
	Logger   *zap.Logger
}

// View is what a presentation layer renders.
type View struct {
	Records       []model.Record
	Window        query.PageWindow
	Criteria      query.Criteria
	FavoritesOnly bool
}

// Session is safe for concurrent use. Callbacks run after the session lock
// is released, in registration order, on the goroutine that made the change.
type Session struct {
	mu sync.Mutex

	all []model.Record
	opt Options
	log *zap.Logger

	criteria      query.Criteria
	filtered      []model.Record
	page          int
	favorites     *roaring.Bitmap
	favoritesOnly bool

	nextID    int
	listeners map[int]func(View)
}

// NewSession returns a session over records, restoring criteria and
// favorites from the store. Unreadable state is logged and ignored.
func NewSession(records []model.Record, opt Options) *Session {
	if opt.PageSize <= 0 {
		opt.PageSize = query.DefaultPageSize
	}
	if opt.Groups == nil {
		opt.Groups = model.DefaultGroups()
	}
	if opt.Store == nil {
		opt.Store = store.Noop{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	s := &Session{
		all:       slices.Clone(records),
		opt:       opt,
		log:       opt.Logger,
		page:      1,
		favorites: roaring.New(),
		listeners: make(map[int]func(View)),
	}

	var c query.Criteria
	if s.restore(PreferencesKey, &c) {
		s.criteria = c.Normalize()
	}
	var favs []int
	if s.restore(FavoritesKey, &favs) {
		for _, id := range favs {
			if id > 0 {
				s.favorites.Add(uint32(id))
			}
		}
	}
	s.recomputeLocked()
	return s
}

// OnChange registers fn to be called with the new View after every change.
// The returned func unregisters it.
func (s *Session) OnChange(fn func(View)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// SetCriteria applies c, resets the page to 1 and persists c.
func (s *Session) SetCriteria(c query.Criteria) {
	s.mu.Lock()
	s.criteria = c.Normalize()
	s.page = 1
	s.recomputeLocked()
	s.persist(PreferencesKey, s.criteria)
	s.notifyUnlock()
}

// Clear resets the criteria to the default.
func (s *Session) Clear() { s.SetCriteria(query.Criteria{}) }

// Criteria returns the current (normalized) criteria.
func (s *Session) Criteria() query.Criteria {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.criteria
}

// SetPage moves to page n, clamped to the available pages.
func (s *Session) SetPage(n int) {
	s.mu.Lock()
	_, w := query.Paginate(s.filtered, n, s.opt.PageSize)
	s.page = w.Page
	s.notifyUnlock()
}

// NextPage advances one page and reports whether it moved.
func (s *Session) NextPage() bool { return s.step(1) }

// PrevPage goes back one page and reports whether it moved.
func (s *Session) PrevPage() bool { return s.step(-1) }

func (s *Session) step(delta int) bool {
	s.mu.Lock()
	_, w := query.Paginate(s.filtered, s.page+delta, s.opt.PageSize)
	if w.Page == s.page {
		s.mu.Unlock()
		return false
	}
	s.page = w.Page
	s.notifyUnlock()
	return true
}

// Visible returns the records on the current page and the page window.
func (s *Session) Visible() ([]model.Record, query.PageWindow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.viewLocked()
	return v.Records, v.Window
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Suggest ranks the whole record set against q.
func (s *Session) Suggest(q string) []query.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Suggest(s.all, q, 0)
}

// ToggleFavorite flips id's favorite state, persists the set and reports
// whether id is now a favorite.
func (s *Session) ToggleFavorite(id int) bool {
	if id <= 0 {
		return false
	}
	s.mu.Lock()
	now := s.favorites.CheckedAdd(uint32(id))
	if !now {
		s.favorites.Remove(uint32(id))
	}
	s.persist(FavoritesKey, s.favoriteIDsLocked())
	if s.favoritesOnly {
		s.recomputeLocked()
	}
	s.notifyUnlock()
	return now
}

// IsFavorite reports whether id is a favorite.
func (s *Session) IsFavorite(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id > 0 && s.favorites.Contains(uint32(id))
}

// Favorites returns the favorite ids in ascending order.
func (s *Session) Favorites() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favoriteIDsLocked()
}

// FavoritesOnly restricts the view to favorites (on) or lifts the
// restriction, resetting the page to 1.
func (s *Session) FavoritesOnly(on bool) {
	s.mu.Lock()
	s.favoritesOnly = on
	s.page = 1
	s.recomputeLocked()
	s.notifyUnlock()
}

// ---- internals (mu held) ----

func (s *Session) recomputeLocked() {
	filtered := query.Apply(s.all, s.criteria, s.opt.Groups)
	if s.favoritesOnly {
		filtered = slices.DeleteFunc(filtered, func(r model.Record) bool {
			return !s.favorites.Contains(uint32(r.ID))
		})
	}
	s.filtered = filtered
	_, w := query.Paginate(s.filtered, s.page, s.opt.PageSize)
	s.page = w.Page
}

func (s *Session) viewLocked() View {
	page, w := query.Paginate(s.filtered, s.page, s.opt.PageSize)
	return View{
		Records:       slices.Clone(page),
		Window:        w,
		Criteria:      s.criteria,
		FavoritesOnly: s.favoritesOnly,
	}
}

func (s *Session) favoriteIDsLocked() []int {
	out := make([]int, 0, s.favorites.GetCardinality())
	it := s.favorites.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// notifyUnlock snapshots the view and listeners, releases mu, then calls
// the listeners.
func (s *Session) notifyUnlock() {
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	v := s.viewLocked()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(View), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (s *Session) persist(key string, v any) { persistJSON(s.opt.Store, s.log, key, v) }

func (s *Session) restore(key string, v any) bool { return restoreJSON(s.opt.Store, s.log, key, v) }

// persistJSON stores v under key. Failures are logged, never returned.
func persistJSON(st store.Store, log *zap.Logger, key string, v any) {
	raw, err := json.Marshal(v)
	if err == nil {
		err = st.Set(key, string(raw))
	}
	if err != nil {
		log.Warn("could not persist session state", zap.String("key", key), zap.Error(err))
	}
}

// restoreJSON decodes the value under key into v and reports whether it did.
func restoreJSON(st store.Store, log *zap.Logger, key string, v any) bool {
	raw, found, err := st.Get(key)
	if err != nil {
		log.Warn("could not read session state", zap.String("key", key), zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		log.Warn("discarding unreadable session state", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}
