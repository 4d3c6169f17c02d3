package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/IvanBrykalov/dexcache/model"
	"github.com/IvanBrykalov/dexcache/store"
	"go.uber.org/zap"
)

// TeamsKey is the store key of the saved teams.
const TeamsKey = "dexcache_teams"

// MaxTeamSize is the member limit of a team.
const MaxTeamSize = 6

// DefaultTeamCategory is used for imported teams that carry no category.
const DefaultTeamCategory = "Casual"

var (
	ErrTeamName      = errors.New("browser: team name is required")
	ErrTeamSize      = fmt.Errorf("browser: a team holds 1..%d members", MaxTeamSize)
	ErrTeamDuplicate = errors.New("browser: member already in team")
	ErrTeamNotFound  = errors.New("browser: team not found")
	ErrTeamImport    = errors.New("browser: invalid team data")
)

// Team is a saved, named selection of records.
type Team struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Category  string         `json:"category"`
	Members   []model.Record `json:"members"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MemberSource re-fetches records by id, omitting the ones that fail.
// *catalog.Catalog implements it.
type MemberSource interface {
	Records(ctx context.Context, ids []int) []model.Record
}

// TeamsOptions configures Teams. Zero values: nil Store => store.Noop,
// nil Logger => no-op, nil Now => time.Now.
type TeamsOptions struct {
	Store  store.Store
	Logger *zap.Logger
	Now    func() time.Time
}

// Teams keeps saved teams in save order and persists every change.
// Safe for concurrent use.
type Teams struct {
	mu    sync.Mutex
	teams []Team
	opt   TeamsOptions
	log   *zap.Logger
}

// NewTeams restores the saved teams. Unreadable state is logged and ignored.
func NewTeams(opt TeamsOptions) *Teams {
	if opt.Store == nil {
		opt.Store = store.Noop{}
	}
	if opt.Logger == nil {
		opt.Logger = zap.NewNop()
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	t := &Teams{opt: opt, log: opt.Logger}
	var saved []Team
	if restoreJSON(opt.Store, t.log, TeamsKey, &saved) {
		t.teams = slices.DeleteFunc(saved, func(tm Team) bool {
			return strings.TrimSpace(tm.Name) == "" || len(tm.Members) == 0
		})
	}
	return t
}

// Save stores a team under name, replacing a saved team of the same name
// (keeping its id and creation time). It reports whether it replaced one.
func (t *Teams) Save(name, category string, members []model.Record) (Team, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Team{}, false, ErrTeamName
	}
	if len(members) == 0 || len(members) > MaxTeamSize {
		return Team{}, false, ErrTeamSize
	}
	seen := make(map[int]struct{}, len(members))
	for _, m := range members {
		if _, dup := seen[m.ID]; dup {
			return Team{}, false, fmt.Errorf("%w: %d", ErrTeamDuplicate, m.ID)
		}
		seen[m.ID] = struct{}{}
	}

	now := t.opt.Now()
	team := Team{
		Name:      name,
		Category:  strings.TrimSpace(category),
		Members:   slices.Clone(members),
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(name)
	replaced := i >= 0
	if replaced {
		team.ID = t.teams[i].ID
		team.CreatedAt = t.teams[i].CreatedAt
		t.teams[i] = team
	} else {
		team.ID = t.nextIDLocked(now)
		t.teams = append(t.teams, team)
	}
	persistJSON(t.opt.Store, t.log, TeamsKey, t.teams)
	return cloneTeam(team), replaced, nil
}

// List returns the saved teams in save order.
func (t *Teams) List() []Team {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Team, 0, len(t.teams))
	for _, tm := range t.teams {
		out = append(out, cloneTeam(tm))
	}
	return out
}

// Get returns the team saved under name.
func (t *Teams) Get(name string) (Team, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(name)
	if i < 0 {
		return Team{}, false
	}
	return cloneTeam(t.teams[i]), true
}

// Delete removes the team saved under name and reports whether it existed.
func (t *Teams) Delete(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(name)
	if i < 0 {
		return false
	}
	t.teams = slices.Delete(t.teams, i, i+1)
	persistJSON(t.opt.Store, t.log, TeamsKey, t.teams)
	return true
}

type exportedMember struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

type exportedTeam struct {
	Name      string           `json:"name"`
	Category  string           `json:"category"`
	Members   []exportedMember `json:"members"`
	CreatedAt time.Time        `json:"created_at"`
}

// Export encodes the team saved under name as indented JSON. Members carry
// only id, name and categories; Import re-fetches the rest.
func (t *Teams) Export(name string) ([]byte, error) {
	team, ok := t.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, name)
	}
	out := exportedTeam{
		Name:      team.Name,
		Category:  team.Category,
		Members:   make([]exportedMember, 0, len(team.Members)),
		CreatedAt: team.CreatedAt,
	}
	for _, m := range team.Members {
		out.Members = append(out.Members, exportedMember{ID: m.ID, Name: m.Name, Categories: m.Categories})
	}
	return json.MarshalIndent(out, "", "  ")
}

// Import saves a team from Export output. Members are re-fetched from src;
// the ones that fail are dropped with a warning. An empty category becomes
// DefaultTeamCategory.
func (t *Teams) Import(ctx context.Context, src MemberSource, data []byte) (Team, bool, error) {
	var in struct {
		Name     string            `json:"name"`
		Category string            `json:"category"`
		Members  []*exportedMember `json:"members"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return Team{}, false, fmt.Errorf("%w: %v", ErrTeamImport, err)
	}
	if strings.TrimSpace(in.Name) == "" {
		return Team{}, false, fmt.Errorf("%w: missing name", ErrTeamImport)
	}
	if in.Members == nil {
		return Team{}, false, fmt.Errorf("%w: missing members", ErrTeamImport)
	}

	ids := make([]int, 0, len(in.Members))
	for _, m := range in.Members {
		if m != nil && m.ID > 0 && !slices.Contains(ids, m.ID) {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) > MaxTeamSize {
		return Team{}, false, fmt.Errorf("%w: %d members", ErrTeamImport, len(ids))
	}

	members := src.Records(ctx, ids)
	if dropped := len(ids) - len(members); dropped > 0 {
		t.log.Warn("dropping team members that could not be fetched",
			zap.String("team", in.Name), zap.Int("dropped", dropped))
	}
	if len(members) == 0 {
		return Team{}, false, fmt.Errorf("%w: no member could be fetched", ErrTeamImport)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultTeamCategory
	}
	return t.Save(in.Name, category, members)
}

// TeamStats aggregates the attributes of a team's members.
type TeamStats struct {
	Members int
	Totals  map[string]int
	// Averages are Totals divided by Members, rounded half away from zero.
	Averages map[string]int
}

// Stats sums every attribute over members. ok is false for an empty team.
func Stats(members []model.Record) (TeamStats, bool) {
	if len(members) == 0 {
		return TeamStats{}, false
	}
	st := TeamStats{
		Members:  len(members),
		Totals:   make(map[string]int),
		Averages: make(map[string]int),
	}
	for _, m := range members {
		for _, a := range m.Attributes {
			st.Totals[strings.ToLower(a.Name)] += a.Value
		}
	}
	for name, total := range st.Totals {
		st.Averages[name] = int(math.Round(float64(total) / float64(len(members))))
	}
	return st, true
}

func (t *Teams) indexLocked(name string) int {
	name = strings.TrimSpace(name)
	return slices.IndexFunc(t.teams, func(tm Team) bool { return tm.Name == name })
}

// nextIDLocked derives an id from the save time, bumped past any taken id.
func (t *Teams) nextIDLocked(now time.Time) int64 {
	id := now.UnixMilli()
	for slices.ContainsFunc(t.teams, func(tm Team) bool { return tm.ID == id }) {
		id++
	}
	return id
}

func cloneTeam(t Team) Team {
	t.Members = slices.Clone(t.Members)
	return t
}
