package search

import (
	"slices"
	"testing"

	"github.com/desertthunder/fedsearch/internal/models"
)

func items(keys ...string) []models.ResultItem {
	out := make([]models.ResultItem, len(keys))
	for i, k := range keys {
		out[i] = models.ResultItem{Key: k, Title: k}
	}
	return out
}

func TestAggregator(t *testing.T) {
	h := models.NewQueryHandle(models.BackendInfo)

	t.Run("deduplicates on append", func(t *testing.T) {
		a := NewAggregator()
		a.Reset("q")

		if !a.Apply(models.PartialResultEvent{Source: h, Category: models.CategoryArtist, Items: items("a", "b")}) {
			t.Error("first apply should change the set")
		}
		if !a.Apply(models.PartialResultEvent{Source: h, Category: models.CategoryArtist, Items: items("b", "c", "a")}) {
			t.Error("apply with a new key should change the set")
		}
		if a.Apply(models.PartialResultEvent{Source: h, Category: models.CategoryArtist, Items: items("c", "a")}) {
			t.Error("apply with only known keys should not change the set")
		}

		got := a.Snapshot().Keys(models.CategoryArtist)
		if !slices.Equal(got, []string{"a", "b", "c"}) {
			t.Errorf("artists = %v, want [a b c]", got)
		}
	})

	t.Run("categories do not share keys", func(t *testing.T) {
		a := NewAggregator()
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: items("x")})
		a.Apply(models.PartialResultEvent{Category: models.CategoryAlbum, Items: items("x")})

		snap := a.Snapshot()
		if len(snap.Artists) != 1 || len(snap.Albums) != 1 {
			t.Errorf("expected x in both buckets, got %v / %v", snap.Keys(models.CategoryArtist), snap.Keys(models.CategoryAlbum))
		}
	})

	t.Run("first image wins", func(t *testing.T) {
		a := NewAggregator()
		first := models.ResultItem{Key: "a", Image: &models.Image{URL: "http://img/1"}}
		second := models.ResultItem{Key: "b", Image: &models.Image{URL: "http://img/2"}}

		a.Apply(models.PartialResultEvent{Category: models.CategoryAlbum, Items: []models.ResultItem{{Key: "none"}, first}})
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: []models.ResultItem{second}})

		if img := a.Snapshot().Image; img == nil || img.URL != "http://img/1" {
			t.Errorf("expected first image to stick, got %+v", img)
		}
	})

	t.Run("empty image URL is not an image", func(t *testing.T) {
		a := NewAggregator()
		a.Apply(models.PartialResultEvent{Category: models.CategoryUser, Items: []models.ResultItem{{Key: "u", Image: &models.Image{}}}})
		if a.Snapshot().Image != nil {
			t.Error("an image without URL must not become the representative image")
		}
	})

	t.Run("duplicate item may still supply the image", func(t *testing.T) {
		a := NewAggregator()
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: items("a")})
		changed := a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: []models.ResultItem{
			{Key: "a", Image: &models.Image{URL: "http://img/a"}},
		}})

		if !changed {
			t.Error("setting the image should count as a change")
		}
		if img := a.Snapshot().Image; img == nil || img.URL != "http://img/a" {
			t.Errorf("expected image from duplicate item, got %+v", img)
		}
		if got := a.Snapshot().Keys(models.CategoryArtist); len(got) != 1 {
			t.Errorf("duplicate key must not be appended, got %v", got)
		}
	})

	t.Run("skips empty keys and unknown categories", func(t *testing.T) {
		a := NewAggregator()
		if a.Apply(models.PartialResultEvent{Category: models.CategoryTrack, Items: items("")}) {
			t.Error("empty key should not change the set")
		}
		if a.Apply(models.PartialResultEvent{Category: models.Category(42), Items: items("k")}) {
			t.Error("unknown category should be ignored")
		}
	})

	t.Run("Reset clears buckets and image", func(t *testing.T) {
		a := NewAggregator()
		a.Reset("old")
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: []models.ResultItem{
			{Key: "a", Image: &models.Image{URL: "http://img/a"}},
		}})

		a.Reset("new")
		snap := a.Snapshot()
		if !snap.Empty() || snap.Query != "new" || a.Query() != "new" {
			t.Errorf("expected empty set for new query, got %+v", snap)
		}
	})

	t.Run("snapshot is isolated from later applies and caller mutation", func(t *testing.T) {
		a := NewAggregator()
		img := &models.Image{URL: "http://img/a"}
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: []models.ResultItem{{Key: "a", Image: img}}})

		img.URL = "mutated by producer"
		snap := a.Snapshot()
		a.Apply(models.PartialResultEvent{Category: models.CategoryArtist, Items: items("b")})
		snap.Artists[0].Key = "mutated by consumer"

		again := a.Snapshot()
		if len(snap.Artists) != 1 {
			t.Errorf("earlier snapshot grew to %d items", len(snap.Artists))
		}
		if again.Artists[0].Key != "a" || again.Image.URL != "http://img/a" {
			t.Errorf("aggregator state leaked: %+v", again)
		}
	})
}
