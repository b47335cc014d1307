package services

import (
	"context"
	"strings"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

const defaultLibraryLimit = 200

// LibrarySearcher is the library lookup the [LibraryResolver] refines.
type LibrarySearcher interface {
	Search(text string, limit int) ([]*models.LibraryTrack, error)
}

// LibraryResolver resolves tracks from the local library.
//
// Candidates come from a coarse SQL prefilter and are kept when every word of the query fuzzy-matches the track's
// "artist title album" text.
type LibraryResolver struct {
	library LibrarySearcher
	limit   int
}

func NewLibraryResolver(library LibrarySearcher, limit int) *LibraryResolver {
	if limit <= 0 {
		limit = defaultLibraryLimit
	}
	return &LibraryResolver{library: library, limit: limit}
}

func (r *LibraryResolver) Name() string {
	return "library"
}

func (r *LibraryResolver) Resolve(ctx context.Context, text string) ([]models.Track, error) {
	candidates, err := r.library.Search(text, r.limit)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	words := strings.Fields(text)
	tracks := make([]models.Track, 0, len(candidates))
	for _, c := range candidates {
		if matchesAll(words, c.Artist()+" "+c.Title()+" "+c.Album()) {
			tracks = append(tracks, c.Track())
		}
	}
	return tracks, nil
}

func matchesAll(words []string, target string) bool {
	for _, w := range words {
		if !fuzzy.MatchFold(w, target) {
			return false
		}
	}
	return true
}
