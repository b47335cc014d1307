package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"golang.org/x/sync/errgroup"
)

const defaultLastfmLimit = 20

// lastfmSizes lists Last.fm image size names from smallest to largest.
var lastfmSizes = []string{"small", "medium", "large", "extralarge", "mega"}

// LastfmProvider finds artists and albums with artist.search and album.search, and users by exact name with
// user.getInfo.
type LastfmProvider struct {
	api   lastfmAPI
	limit int
}

// NewLastfmProvider creates a provider from Last.fm credentials.
func NewLastfmProvider(cfg shared.LastfmConfig) (*LastfmProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: lastfm.api_key", shared.ErrMissingCredentials)
	}
	return newLastfmProvider(newLastfmClient(cfg.APIKey, cfg.APISecret), cfg.Limit), nil
}

func newLastfmProvider(api lastfmAPI, limit int) *LastfmProvider {
	if limit <= 0 {
		limit = defaultLastfmLimit
	}
	return &LastfmProvider{api: api, limit: limit}
}

func (p *LastfmProvider) Name() string {
	return "lastfm"
}

// Search runs the three lookups concurrently. The Last.fm client is not context aware, so a cancelled context only
// discards the answer.
func (p *LastfmProvider) Search(ctx context.Context, text string) (*InfoResults, error) {
	var (
		results InfoResults
		g       errgroup.Group
	)

	g.Go(func() error {
		artists, err := p.api.SearchArtists(text, p.limit)
		if err != nil {
			return fmt.Errorf("%w: artist.search: %v", shared.ErrAPIRequest, err)
		}
		results.Artists = lastfmItems(artists, artistKey)
		return nil
	})

	g.Go(func() error {
		albums, err := p.api.SearchAlbums(text, p.limit)
		if err != nil {
			return fmt.Errorf("%w: album.search: %v", shared.ErrAPIRequest, err)
		}
		results.Albums = lastfmItems(albums, albumKey)
		return nil
	})

	g.Go(func() error {
		if strings.ContainsAny(text, " \t") {
			return nil
		}
		user, err := p.api.UserInfo(text)
		if err != nil {
			return fmt.Errorf("%w: user.getInfo: %v", shared.ErrAPIRequest, err)
		}
		if user != nil {
			results.Users = lastfmItems([]lastfmEntry{*user}, userKey)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &results, nil
}

func artistKey(e lastfmEntry) string {
	return "lastfm:artist:" + strings.ToLower(e.Name)
}

func albumKey(e lastfmEntry) string {
	return "lastfm:album:" + strings.ToLower(e.Artist) + "|" + strings.ToLower(e.Name)
}

func userKey(e lastfmEntry) string {
	return "lastfm:user:" + strings.ToLower(e.Name)
}

func lastfmItems(entries []lastfmEntry, key func(lastfmEntry) string) []models.ResultItem {
	items := make([]models.ResultItem, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		items = append(items, models.ResultItem{
			Key:      key(e),
			Title:    e.Name,
			Subtitle: e.Artist,
			Image:    lastfmImage(e.Images),
		})
	}
	return items
}

// lastfmImage returns the largest non-empty size.
func lastfmImage(images map[string]string) *models.Image {
	for i := len(lastfmSizes) - 1; i >= 0; i-- {
		if url := images[lastfmSizes[i]]; url != "" {
			return &models.Image{URL: url}
		}
	}
	return nil
}
