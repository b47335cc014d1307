package services

import (
	"context"
	"time"

	"github.com/desertthunder/fedsearch/internal/models"
)

// InfoProvider looks up artists, albums and users for free text.
type InfoProvider interface {
	// Name returns the name of the provider (e.g., "lastfm", "spotify")
	Name() string

	// Search returns the provider's matches for text. Categories the provider does not cover stay empty.
	Search(ctx context.Context, text string) (*InfoResults, error)
}

// InfoResults holds one provider's answer, grouped by category.
type InfoResults struct {
	Artists []models.ResultItem
	Albums  []models.ResultItem
	Users   []models.ResultItem
}

// Items returns the items for c, or nil for a category info providers do not produce.
func (r *InfoResults) Items(c models.Category) []models.ResultItem {
	if r == nil {
		return nil
	}
	switch c {
	case models.CategoryArtist:
		return r.Artists
	case models.CategoryAlbum:
		return r.Albums
	case models.CategoryUser:
		return r.Users
	}
	return nil
}

// TrackResolver turns free text into candidate tracks.
type TrackResolver interface {
	// Name returns the name of the resolver (e.g., "library", "youtube")
	Name() string

	Resolve(ctx context.Context, text string) ([]models.Track, error)
}

// infoCategories are published in this order by the info system.
var infoCategories = []models.Category{models.CategoryArtist, models.CategoryAlbum, models.CategoryUser}

// largestImage picks the image with the biggest area, falling back to the last usable one when sizes are unknown.
func largestImage(images []models.Image) *models.Image {
	var best *models.Image
	for i := range images {
		img := images[i]
		if img.URL == "" {
			continue
		}
		if best == nil || img.Width*img.Height >= best.Width*best.Height {
			best = &img
		}
	}
	return best
}

// withTimeout derives a cancellable background context, bounded by d when d is positive.
func withTimeout(d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(context.Background(), d)
	}
	return context.WithCancel(context.Background())
}
