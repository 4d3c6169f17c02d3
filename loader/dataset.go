package loader

import (
	"fmt"
	"slices"
	"time"

	"github.com/IvanBrykalov/dexcache/model"
	"github.com/RoaringBitmap/roaring/v2"
)

// Dataset is the canonical in-memory record set produced by a load. It is
// immutable once LoadAll returns and safe for concurrent readers.
type Dataset struct {
	records []model.Record // ascending by ID
	ids     *roaring.Bitmap
}

func newDataset(records []model.Record, ids *roaring.Bitmap) *Dataset {
	slices.SortFunc(records, func(a, b model.Record) int { return a.ID - b.ID })
	return &Dataset{records: records, ids: ids}
}

// Records returns a copy of the records in ascending ID order.
func (d *Dataset) Records() []model.Record { return slices.Clone(d.records) }

// Len returns the number of loaded records.
func (d *Dataset) Len() int { return len(d.records) }

// Contains reports whether id was loaded.
func (d *Dataset) Contains(id int) bool { return id > 0 && d.ids.Contains(uint32(id)) }

// Get returns the record with the given id.
func (d *Dataset) Get(id int) (model.Record, bool) {
	if !d.Contains(id) {
		return model.Record{}, false
	}
	i, ok := slices.BinarySearchFunc(d.records, id, func(r model.Record, id int) int { return r.ID - id })
	if !ok {
		return model.Record{}, false
	}
	return d.records[i], true
}

// Missing returns the ids of r that are not in the dataset, ascending.
func (d *Dataset) Missing(r model.IDRange) []int {
	if r.Len() == 0 || r.Start < 1 {
		return nil
	}
	want := roaring.New()
	want.AddRange(uint64(r.Start), uint64(r.End)+1)
	want.AndNot(d.ids)
	return toInts(want)
}

func toInts(b *roaring.Bitmap) []int {
	out := make([]int, 0, b.GetCardinality())
	it := b.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Report summarizes a load pass.
type Report struct {
	Requested int
	Loaded    int
	Missing   []int
	Duration  time.Duration
}

// Partial returns a *PartialLoadError describing the missing ids, or nil
// when every requested record was loaded. It is informational: LoadAll
// never returns it as an error.
func (r *Report) Partial() *PartialLoadError {
	if r == nil || len(r.Missing) == 0 {
		return nil
	}
	return &PartialLoadError{Requested: r.Requested, Missing: slices.Clone(r.Missing)}
}

// PartialLoadError lists the ids a load pass could not fetch.
type PartialLoadError struct {
	Requested int
	Missing   []int
}

func (e *PartialLoadError) Error() string {
	return fmt.Sprintf("loader: %d of %d records missing", len(e.Missing), e.Requested)
}
