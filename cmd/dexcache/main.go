// Command dexcache loads the catalog through the two-tier cache, applies
// filter/sort criteria and prints one page of results.
//
// Usage:
//
//	dexcache -config dexcache.yaml -group 1 -category grass -sort total-desc -page 2
//	dexcache -bound hp=80:255 -bound speed=0:60 -sort special-attack-desc
//	dexcache -compare 1,4
//	dexcache -team-save rain -team-members 7,8,9 -team-category OU
//	dexcache -teams
//
// Criteria flags replace the criteria restored from the previous run; with
// none given, the last criteria and favorites are reused.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// options holds the parsed command line.
type options struct {
	configPath string

	group    int
	category string
	query    string
	sort     string
	bounds   boundsFlag
	page     int

	favoritesOnly bool
	toggle        int
	suggest       string
	details       int

	compare idsFlag

	teamSave     string
	teamMembers  idsFlag
	teamCategory string
	teamList     bool
	teamExport   string
	teamImport   string
	teamDelete   string

	quiet bool
	stats bool

	criteriaSet bool // any of group, category, q, sort or bound was given
}

// teamMode reports whether a team command was given.
func (o options) teamMode() bool {
	return o.teamSave != "" || o.teamList || o.teamExport != "" || o.teamImport != "" || o.teamDelete != ""
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("dexcache", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "path to YAML config file (defaults + DEXCACHE_* env when empty)")
	fs.IntVar(&o.group, "group", 0, "group filter (0 = all)")
	fs.StringVar(&o.category, "category", "", "category filter")
	fs.StringVar(&o.query, "q", "", "text filter: name substring or exact id")
	fs.StringVar(&o.sort, "sort", "", "sort field and order, e.g. name, total-desc, attack-asc")
	fs.Var(&o.bounds, "bound", "attribute range filter name=min:max, repeatable (e.g. attack=100:200)")
	fs.IntVar(&o.page, "page", 1, "page to print (1-based)")
	fs.BoolVar(&o.favoritesOnly, "favorites", false, "show favorites only")
	fs.IntVar(&o.toggle, "toggle-favorite", 0, "toggle a record id in favorites before printing")
	fs.StringVar(&o.suggest, "suggest", "", "print suggestions for a partial name instead of a page")
	fs.IntVar(&o.details, "details", 0, "print species and evolution details for a record id")
	fs.Var(&o.compare, "compare", "compare two record ids side by side, e.g. 1,4")
	fs.StringVar(&o.teamSave, "team-save", "", "save a team under this name (with -team-members)")
	fs.Var(&o.teamMembers, "team-members", "comma-separated record ids of the team to save")
	fs.StringVar(&o.teamCategory, "team-category", "", "category of the team to save")
	fs.BoolVar(&o.teamList, "teams", false, "list saved teams with their attribute totals")
	fs.StringVar(&o.teamExport, "team-export", "", "print a saved team as JSON")
	fs.StringVar(&o.teamImport, "team-import", "", "import a team from a JSON file")
	fs.StringVar(&o.teamDelete, "team-delete", "", "delete a saved team")
	fs.BoolVar(&o.quiet, "quiet", false, "disable the progress bar")
	fs.BoolVar(&o.stats, "stats", false, "print cache statistics after the run")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "group", "category", "q", "sort", "bound":
			o.criteriaSet = true
		}
	})
	if len(o.compare) > 0 && len(o.compare) != 2 {
		return o, fmt.Errorf("-compare needs exactly two ids, got %d", len(o.compare))
	}
	if (o.teamSave == "") != (len(o.teamMembers) == 0) {
		return o, errors.New("-team-save and -team-members go together")
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opt, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}
	if err := run(ctx, opt, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "dexcache:", err)
		os.Exit(1)
	}
}
