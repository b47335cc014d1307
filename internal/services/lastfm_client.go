package services

import (
	"errors"

	"github.com/shkh/lastfm-go/lastfm"
)

// lastfmNotFound is the Last.fm error code for an unknown user or entity.
const lastfmNotFound = 6

// lastfmEntry is the subset of a Last.fm search match the provider needs.
type lastfmEntry struct {
	Name   string
	Artist string
	URL    string
	Images map[string]string // size name -> URL
}

// lastfmAPI is the part of the Last.fm API the provider calls.
type lastfmAPI interface {
	SearchArtists(query string, limit int) ([]lastfmEntry, error)
	SearchAlbums(query string, limit int) ([]lastfmEntry, error)
	// UserInfo returns nil without error when the user does not exist.
	UserInfo(name string) (*lastfmEntry, error)
}

// lastfmClient wraps [lastfm.Api].
type lastfmClient struct {
	api *lastfm.Api
}

func newLastfmClient(apiKey, apiSecret string) *lastfmClient {
	return &lastfmClient{api: lastfm.New(apiKey, apiSecret)}
}

func (c *lastfmClient) SearchArtists(query string, limit int) ([]lastfmEntry, error) {
	result, err := c.api.Artist.Search(lastfm.P{"artist": query, "limit": limit})
	if err != nil {
		return nil, err
	}

	entries := make([]lastfmEntry, 0, len(result.ArtistMatches))
	for _, m := range result.ArtistMatches {
		images := make(map[string]string, len(m.Images))
		for _, img := range m.Images {
			images[img.Size] = img.Url
		}
		entries = append(entries, lastfmEntry{Name: m.Name, URL: m.Url, Images: images})
	}
	return entries, nil
}

func (c *lastfmClient) SearchAlbums(query string, limit int) ([]lastfmEntry, error) {
	result, err := c.api.Album.Search(lastfm.P{"album": query, "limit": limit})
	if err != nil {
		return nil, err
	}

	entries := make([]lastfmEntry, 0, len(result.AlbumMatches))
	for _, m := range result.AlbumMatches {
		images := make(map[string]string, len(m.Images))
		for _, img := range m.Images {
			images[img.Size] = img.Url
		}
		entries = append(entries, lastfmEntry{Name: m.Name, Artist: m.Artist, URL: m.Url, Images: images})
	}
	return entries, nil
}

func (c *lastfmClient) UserInfo(name string) (*lastfmEntry, error) {
	result, err := c.api.User.GetInfo(lastfm.P{"user": name})
	if err != nil {
		var lfErr *lastfm.LastfmError
		if errors.As(err, &lfErr) && lfErr.Code == lastfmNotFound {
			return nil, nil
		}
		return nil, err
	}

	images := make(map[string]string, len(result.Images))
	for _, img := range result.Images {
		images[img.Size] = img.Url
	}
	return &lastfmEntry{Name: result.Name, URL: result.Url, Images: images}, nil
}
