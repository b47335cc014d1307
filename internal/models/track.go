package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/fedsearch/internal/shared"
)

// Track represents a music track returned by a track resolver.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration,omitempty"` // Duration in seconds
	ISRC     string `json:"isrc,omitempty"`     // International Standard Recording Code
	Source   string `json:"source"`             // Resolver that produced the track
	Image    *Image `json:"image,omitempty"`
}

// CacheKey is the identity of a track across resolvers.
func (t Track) CacheKey() string {
	return shared.NormalizeTrackKey(t.Title, t.Artist)
}

// ResultItem converts the track into a [CategoryTrack] result item keyed by [Track.CacheKey].
func (t Track) ResultItem() ResultItem {
	subtitle := t.Artist
	if t.Album != "" {
		subtitle += " · " + t.Album
	}
	item := ResultItem{Key: "track:" + t.CacheKey(), Title: t.Title, Subtitle: subtitle}
	if t.Image.Usable() {
		img := *t.Image
		item.Image = &img
	}
	return item
}

// LibraryTrack is an audio file indexed in the local library.
type LibraryTrack struct {
	id          string
	sequence    int
	path        string
	title       string
	artist      string
	album       string
	albumArtist string
	duration    int
	trackNo     int
	createdAt   time.Time
	updatedAt   time.Time
	deletedAt   *time.Time
}

// NewLibraryTrack creates a track for the file at path with timestamps set to now.
func NewLibraryTrack(path, title, artist, album string) *LibraryTrack {
	now := time.Now()
	return &LibraryTrack{
		path:      path,
		title:     title,
		artist:    artist,
		album:     album,
		createdAt: now,
		updatedAt: now,
	}
}

// RestoreLibraryTrack rebuilds a track from stored column values.
func RestoreLibraryTrack(
	id string, sequence int, path, title, artist, album, albumArtist string,
	duration, trackNo int, createdAt, updatedAt time.Time, deletedAt *time.Time,
) *LibraryTrack {
	return &LibraryTrack{
		id:          id,
		sequence:    sequence,
		path:        path,
		title:       title,
		artist:      artist,
		album:       album,
		albumArtist: albumArtist,
		duration:    duration,
		trackNo:     trackNo,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
		deletedAt:   deletedAt,
	}
}

func (t *LibraryTrack) ID() string            { return t.id }
func (t *LibraryTrack) Sequence() int         { return t.sequence }
func (t *LibraryTrack) Path() string          { return t.path }
func (t *LibraryTrack) Title() string         { return t.title }
func (t *LibraryTrack) Artist() string        { return t.artist }
func (t *LibraryTrack) Album() string         { return t.album }
func (t *LibraryTrack) AlbumArtist() string   { return t.albumArtist }
func (t *LibraryTrack) Duration() int         { return t.duration }
func (t *LibraryTrack) TrackNo() int          { return t.trackNo }
func (t *LibraryTrack) CreatedAt() time.Time  { return t.createdAt }
func (t *LibraryTrack) UpdatedAt() time.Time  { return t.updatedAt }
func (t *LibraryTrack) DeletedAt() *time.Time { return t.deletedAt }

func (t *LibraryTrack) SetID(id string)            { t.id = id }
func (t *LibraryTrack) SetSequence(seq int)        { t.sequence = seq }
func (t *LibraryTrack) SetAlbumArtist(name string) { t.albumArtist = name }
func (t *LibraryTrack) SetDuration(seconds int)    { t.duration = seconds }
func (t *LibraryTrack) SetTrackNo(n int)           { t.trackNo = n }
func (t *LibraryTrack) SetUpdatedAt(at time.Time)  { t.updatedAt = at }
func (t *LibraryTrack) SetDeletedAt(at *time.Time) { t.deletedAt = at }
func (t *LibraryTrack) SetTitle(title string)      { t.title = title }
func (t *LibraryTrack) SetArtist(artist string)    { t.artist = artist }
func (t *LibraryTrack) SetAlbum(album string)      { t.album = album }

// Validate requires a path, a title and an artist.
func (t *LibraryTrack) Validate() error {
	switch {
	case strings.TrimSpace(t.path) == "":
		return fmt.Errorf("%w: library track path is required", shared.ErrInvalidInput)
	case strings.TrimSpace(t.title) == "":
		return fmt.Errorf("%w: library track title is required", shared.ErrInvalidInput)
	case strings.TrimSpace(t.artist) == "":
		return fmt.Errorf("%w: library track artist is required", shared.ErrInvalidInput)
	case t.duration < 0:
		return fmt.Errorf("%w: library track duration must not be negative", shared.ErrInvalidInput)
	}
	return nil
}

// Track converts the library entry into a resolver [Track].
func (t *LibraryTrack) Track() Track {
	return Track{
		ID:       t.id,
		Title:    t.title,
		Artist:   t.artist,
		Album:    t.album,
		Duration: t.duration,
		Source:   "library",
	}
}
