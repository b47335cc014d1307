// YouTube Music [TrackResolver] implementation
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeImage represents an image/thumbnail from YouTube Music.
type YouTubeImage struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a song in YouTube Music search results.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	Thumbnails  []YouTubeImage  `json:"thumbnails"`
	ISRC        string          `json:"isrc,omitempty"`
}

// ProxyResolver resolves tracks through the YouTube Music proxy.
type ProxyResolver struct {
	baseURL    string
	authFile   string
	httpClient *http.Client
}

// NewProxyResolver creates a resolver for the proxy at baseURL. authFile, when set, is sent as X-Auth-File.
func NewProxyResolver(cfg shared.YouTubeConfig, client *http.Client) *ProxyResolver {
	baseURL := cfg.ProxyURL
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &ProxyResolver{
		baseURL:    baseURL,
		authFile:   cfg.HeadersPath,
		httpClient: client,
	}
}

func (y *ProxyResolver) Name() string {
	return "youtube"
}

func (y *ProxyResolver) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if y.authFile != "" {
		req.Header.Set("X-Auth-File", y.authFile)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail string `json:"detail"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Detail != "" {
			return fmt.Errorf("%w: youtube music proxy (status %d): %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Detail)
		}
		return fmt.Errorf("%w: youtube music proxy: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Resolve calls GET /api/search?q={text}&filter=songs on the proxy.
func (y *ProxyResolver) Resolve(ctx context.Context, text string) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs", url.QueryEscape(text))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, endpoint, &results); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(results))
	for _, r := range results {
		if r.Title == "" {
			continue
		}
		track := models.Track{
			ID:       r.VideoID,
			Title:    r.Title,
			Duration: r.DurationSec,
			ISRC:     r.ISRC,
			Source:   y.Name(),
			Image:    youtubeImage(r.Thumbnails),
		}
		if len(r.Artists) > 0 {
			track.Artist = r.Artists[0].Name
		}
		if r.Album != nil {
			track.Album = r.Album.Name
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func youtubeImage(thumbs []YouTubeImage) *models.Image {
	images := make([]models.Image, len(thumbs))
	for i, t := range thumbs {
		images[i] = models.Image{URL: t.URL, Width: t.Width, Height: t.Height}
	}
	return largestImage(images)
}
