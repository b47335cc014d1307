// Spotify Web API implementation of [InfoProvider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL     = "https://accounts.spotify.com/api/token"
	spotifyBaseURL      = "https://api.spotify.com/v1"
	defaultSpotifyLimit = 20
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Genres []string       `json:"genres"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	TotalTracks int             `json:"total_tracks"`
	Images      []SpotifyImage  `json:"images"`
	URI         string          `json:"uri"`
}

type spotifyPage[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// SpotifySearchResponse is the body of GET /v1/search.
type SpotifySearchResponse struct {
	Artists spotifyPage[SpotifyArtist] `json:"artists"`
	Albums  spotifyPage[SpotifyAlbum]  `json:"albums"`
}

// SpotifyProvider searches artists and albums with the client credentials flow.
//
// The token is fetched on first use and refreshed by the [oauth2] transport.
type SpotifyProvider struct {
	baseURL    string
	market     string
	limit      int
	httpClient *http.Client
}

// NewSpotifyProvider creates a provider from Spotify client credentials.
func NewSpotifyProvider(cfg shared.SpotifyConfig) (*SpotifyProvider, error) {
	return newSpotifyProvider(cfg, spotifyBaseURL, spotifyTokenURL)
}

func newSpotifyProvider(cfg shared.SpotifyConfig, baseURL, tokenURL string) (*SpotifyProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: spotify.client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify.client_secret", shared.ErrMissingCredentials)
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = defaultSpotifyLimit
	}

	return &SpotifyProvider{
		baseURL:    baseURL,
		market:     cfg.Market,
		limit:      limit,
		httpClient: creds.Client(context.Background()),
	}, nil
}

func (s *SpotifyProvider) Name() string {
	return "spotify"
}

// doRequest performs an authenticated GET request to the Spotify API.
func (s *SpotifyProvider) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: spotify rejected the client credentials", shared.ErrNotAuthenticated)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify API error: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Search calls GET /v1/search?type=artist,album.
func (s *SpotifyProvider) Search(ctx context.Context, text string) (*InfoResults, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("type", "artist,album")
	params.Set("limit", strconv.Itoa(s.limit))
	if s.market != "" {
		params.Set("market", s.market)
	}

	var resp SpotifySearchResponse
	if err := s.doRequest(ctx, "/search?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	results := &InfoResults{
		Artists: make([]models.ResultItem, 0, len(resp.Artists.Items)),
		Albums:  make([]models.ResultItem, 0, len(resp.Albums.Items)),
	}

	for _, a := range resp.Artists.Items {
		if a.ID == "" {
			continue
		}
		item := models.ResultItem{Key: "spotify:artist:" + a.ID, Title: a.Name, Image: spotifyImage(a.Images)}
		if len(a.Genres) > 0 {
			item.Subtitle = a.Genres[0]
		}
		results.Artists = append(results.Artists, item)
	}

	for _, a := range resp.Albums.Items {
		if a.ID == "" {
			continue
		}
		item := models.ResultItem{Key: "spotify:album:" + a.ID, Title: a.Name, Image: spotifyImage(a.Images)}
		if len(a.Artists) > 0 {
			item.Subtitle = a.Artists[0].Name
		}
		results.Albums = append(results.Albums, item)
	}

	return results, nil
}

// spotifyImage returns the first image, which Spotify orders widest first.
func spotifyImage(images []SpotifyImage) *models.Image {
	for _, img := range images {
		if img.URL != "" {
			return &models.Image{URL: img.URL, Width: img.Width, Height: img.Height}
		}
	}
	return nil
}
