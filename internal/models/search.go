package models

import (
	"fmt"
	"slices"
	"strings"

	"github.com/desertthunder/fedsearch/internal/shared"
)

// BackendKind identifies which backend issued a [QueryHandle] so cancellation can be routed.
type BackendKind int

const (
	BackendInfo BackendKind = iota + 1
	BackendTrack
)

func (k BackendKind) String() string {
	switch k {
	case BackendInfo:
		return "info"
	case BackendTrack:
		return "track"
	default:
		return "unknown"
	}
}

// QueryHandle is an opaque token for one in-flight backend query.
//
// Handles are only ever compared by pointer identity. The id exists for logs.
type QueryHandle struct {
	id      string
	backend BackendKind
}

// NewQueryHandle allocates a handle owned by the given backend.
func NewQueryHandle(backend BackendKind) *QueryHandle {
	return &QueryHandle{id: shared.GenerateID(), backend: backend}
}

func (h *QueryHandle) ID() string { return h.id }

func (h *QueryHandle) Backend() BackendKind { return h.backend }

func (h *QueryHandle) String() string {
	if h == nil {
		return "<nil>"
	}
	return h.backend.String() + ":" + h.id
}

// Category is one of the four result buckets. Keys of distinct categories never collide.
type Category int

const (
	CategoryArtist Category = iota
	CategoryAlbum
	CategoryTrack
	CategoryUser
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{CategoryArtist, CategoryAlbum, CategoryTrack, CategoryUser}
}

func (c Category) String() string {
	switch c {
	case CategoryArtist:
		return "artists"
	case CategoryAlbum:
		return "albums"
	case CategoryTrack:
		return "tracks"
	case CategoryUser:
		return "users"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Valid reports whether c is one of the four known categories.
func (c Category) Valid() bool {
	return c >= CategoryArtist && c <= CategoryUser
}

// ParseCategory accepts the plural name ("artists") or its singular form ("artist").
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories() {
		if s == c.String() || s == strings.TrimSuffix(c.String(), "s") {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown category %q", shared.ErrInvalidArgument, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: category %d", shared.ErrInvalidInput, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Image is artwork attached to a result item.
type Image struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Usable reports whether the image can serve as a representative image.
func (i *Image) Usable() bool {
	return i != nil && i.URL != ""
}

// ResultItem is one entry of a category bucket. Identity is Key alone; Title and Subtitle are for display.
type ResultItem struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle,omitempty"`
	Image    *Image `json:"image,omitempty"`
}

func (r ResultItem) clone() ResultItem {
	if r.Image != nil {
		img := *r.Image
		r.Image = &img
	}
	return r
}

// PartialResultEvent is a batch of items for one category produced by the query behind Source.
type PartialResultEvent struct {
	Source   *QueryHandle
	Category Category
	Items    []ResultItem
}

// AggregatedResultSet is the merged view of every accepted event for Query.
type AggregatedResultSet struct {
	Query   string       `json:"query"`
	Artists []ResultItem `json:"artists"`
	Albums  []ResultItem `json:"albums"`
	Tracks  []ResultItem `json:"tracks"`
	Users   []ResultItem `json:"users"`
	Image   *Image       `json:"image,omitempty"`
}

// Items returns the bucket for c, or nil for an unknown category.
func (s AggregatedResultSet) Items(c Category) []ResultItem {
	switch c {
	case CategoryArtist:
		return s.Artists
	case CategoryAlbum:
		return s.Albums
	case CategoryTrack:
		return s.Tracks
	case CategoryUser:
		return s.Users
	}
	return nil
}

// Keys returns the key sequence of the bucket for c.
func (s AggregatedResultSet) Keys(c Category) []string {
	items := s.Items(c)
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = it.Key
	}
	return keys
}

// Len returns the total number of items across all buckets.
func (s AggregatedResultSet) Len() int {
	return len(s.Artists) + len(s.Albums) + len(s.Tracks) + len(s.Users)
}

// Empty reports whether the set has neither items nor an image.
func (s AggregatedResultSet) Empty() bool {
	return s.Len() == 0 && s.Image == nil
}

// Clone returns a deep copy that shares no slices or images with s.
func (s AggregatedResultSet) Clone() AggregatedResultSet {
	out := AggregatedResultSet{
		Query:   s.Query,
		Artists: cloneItems(s.Artists),
		Albums:  cloneItems(s.Albums),
		Tracks:  cloneItems(s.Tracks),
		Users:   cloneItems(s.Users),
	}
	if s.Image != nil {
		img := *s.Image
		out.Image = &img
	}
	return out
}

func cloneItems(items []ResultItem) []ResultItem {
	out := slices.Clone(items)
	for i := range out {
		out[i] = out[i].clone()
	}
	return out
}
