package search

import (
	"sync"

	"github.com/desertthunder/fedsearch/internal/models"
)

type bucket struct {
	items []models.ResultItem
	seen  map[string]struct{}
}

func (b *bucket) add(item models.ResultItem) bool {
	if _, ok := b.seen[item.Key]; ok {
		return false
	}
	b.seen[item.Key] = struct{}{}
	b.items = append(b.items, item)
	return true
}

// Aggregator merges partial results into four de-duplicated buckets and one representative image.
type Aggregator struct {
	mu      sync.Mutex
	query   string
	buckets map[models.Category]*bucket
	image   *models.Image
}

func NewAggregator() *Aggregator {
	a := &Aggregator{}
	a.Reset("")
	return a
}

// Reset empties every bucket, drops the image and records the query the next results belong to.
func (a *Aggregator) Reset(query string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.query = query
	a.image = nil
	a.buckets = make(map[models.Category]*bucket, 4)
	for _, c := range models.Categories() {
		a.buckets[c] = &bucket{seen: make(map[string]struct{})}
	}
}

// Apply merges the items of event and reports whether the set changed.
//
// Any item may supply the representative image while none is set, even one whose key is a duplicate. Items with an
// empty key are not added to a bucket. Events for an unknown category are ignored.
func (a *Aggregator) Apply(event models.PartialResultEvent) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buckets[event.Category]
	if !ok {
		return false
	}

	changed := false
	for _, item := range event.Items {
		if a.image == nil && item.Image.Usable() {
			img := *item.Image
			a.image = &img
			changed = true
		}
		if item.Key == "" {
			continue
		}
		if item.Image != nil {
			img := *item.Image
			item.Image = &img
		}
		if b.add(item) {
			changed = true
		}
	}
	return changed
}

// Snapshot returns a deep copy of the current set.
func (a *Aggregator) Snapshot() models.AggregatedResultSet {
	a.mu.Lock()
	defer a.mu.Unlock()

	set := models.AggregatedResultSet{
		Query:   a.query,
		Artists: a.buckets[models.CategoryArtist].items,
		Albums:  a.buckets[models.CategoryAlbum].items,
		Tracks:  a.buckets[models.CategoryTrack].items,
		Users:   a.buckets[models.CategoryUser].items,
		Image:   a.image,
	}
	return set.Clone()
}

func (a *Aggregator) Query() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.query
}
