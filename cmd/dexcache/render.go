package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/IvanBrykalov/dexcache/browser"
	"github.com/IvanBrykalov/dexcache/cache"
	"github.com/IvanBrykalov/dexcache/catalog"
	"github.com/IvanBrykalov/dexcache/query"
)

func printView(w io.Writer, v browser.View, isFavorite func(int) bool) {
	if v.Window.Total == 0 {
		fmt.Fprintln(w, "No records match the current filters.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORIES\tTOTAL\t")
	for _, r := range v.Records {
		mark := ""
		if isFavorite(r.ID) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%d%s\t%s\t%s\t%d\t\n", r.ID, mark, r.Name, strings.Join(r.Categories, ","), r.AttributeTotal())
	}
	_ = tw.Flush()

	first, last := v.Window.Bounds()
	fmt.Fprintf(w, "Showing %d-%d of %d (page %d of %d)\n",
		first, last, v.Window.Total, v.Window.Page, v.Window.TotalPages)
}

func printSuggestions(w io.Writer, ss []query.Suggestion) {
	if len(ss) == 0 {
		fmt.Fprintln(w, "No suggestions.")
		return
	}
	for _, s := range ss {
		fmt.Fprintf(w, "#%d %s\n", s.Record.ID, s.Record.Name)
	}
}

// printDetails prints a detail view. Species and evolution failures are
// reported inline; only a missing record fails the command.
func printDetails(ctx context.Context, w io.Writer, c *catalog.Catalog, id int) error {
	rec, err := c.Record(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "#%d %s\n", rec.ID, rec.Name)
	fmt.Fprintf(w, "Categories: %s\n", strings.Join(rec.Categories, ", "))
	fmt.Fprintf(w, "Height: %d  Weight: %d\n", rec.Height, rec.Weight)
	for _, a := range rec.Attributes {
		fmt.Fprintf(w, "  %-16s %3d\n", a.Name, a.Value)
	}

	sp, err := c.Species(ctx, id)
	if err != nil {
		fmt.Fprintf(w, "Description: unavailable (%v)\n", err)
	} else if text, ok := sp.Description("en"); ok {
		fmt.Fprintf(w, "Description: %s\n", text)
	}

	chain, err := c.EvolutionChain(ctx, id)
	if err != nil {
		fmt.Fprintf(w, "Evolution: unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(w, "Evolution: %s\n", strings.Join(chain.Stages, " -> "))
	}
	return nil
}

func printStats(w io.Writer, s cache.Stats) {
	fmt.Fprintf(w, "cache: entries=%d/%d hits=%d misses=%d hit-rate=%.2f%% writes=%d evictions=%d expired=%d stored=%dB\n",
		s.Entries, s.MaxEntries, s.Hits, s.Misses, s.HitRate*100, s.Writes, s.Evictions, s.Expired, s.StoredBytes)
}

// printComparison fetches both records and prints them side by side; the
// larger value of each row is marked with "+".
func printComparison(ctx context.Context, w io.Writer, c *catalog.Catalog, left, right int) error {
	a, err := c.Record(ctx, left)
	if err != nil {
		return err
	}
	b, err := c.Record(ctx, right)
	if err != nil {
		return err
	}
	cmp := query.Compare(a, b)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "\t#%d %s\t#%d %s\t\n", a.ID, a.Name, b.ID, b.Name)
	for _, row := range cmp.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", row.Name,
			marked(row.Left, row.Winner == query.Left), marked(row.Right, row.Winner == query.Right))
	}
	fmt.Fprintf(tw, "total\t%s\t%s\t\n",
		marked(cmp.LeftTotal, cmp.Winner == query.Left), marked(cmp.RightTotal, cmp.Winner == query.Right))
	_ = tw.Flush()

	switch cmp.Winner {
	case query.Left:
		fmt.Fprintf(w, "%s has the higher attribute total.\n", a.Name)
	case query.Right:
		fmt.Fprintf(w, "%s has the higher attribute total.\n", b.Name)
	default:
		fmt.Fprintln(w, "Both have the same attribute total.")
	}
	return nil
}

func marked(v int, win bool) string {
	if win {
		return fmt.Sprintf("%d+", v)
	}
	return strconv.Itoa(v)
}

func printTeamSaved(w io.Writer, t browser.Team, replaced bool) {
	verb := "Saved"
	if replaced {
		verb = "Replaced"
	}
	fmt.Fprintf(w, "%s team %q (%s, %d members)\n", verb, t.Name, t.Category, len(t.Members))
}

func printTeams(w io.Writer, teams []browser.Team) {
	if len(teams) == 0 {
		fmt.Fprintln(w, "No saved teams.")
		return
	}
	for _, t := range teams {
		names := make([]string, 0, len(t.Members))
		for _, m := range t.Members {
			names = append(names, m.Name)
		}
		fmt.Fprintf(w, "%s [%s]: %s\n", t.Name, t.Category, strings.Join(names, ", "))
		st, ok := browser.Stats(t.Members)
		if !ok {
			continue
		}
		for _, name := range query.CompareAttributes {
			if total, ok := st.Totals[name]; ok {
				fmt.Fprintf(w, "  %-16s total %4d  avg %3d\n", name, total, st.Averages[name])
			}
		}
	}
}
