package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	tu "github.com/desertthunder/fedsearch/internal/testing"
)

type fakeProvider struct {
	name string
	fn   func(ctx context.Context, text string) (*InfoResults, error)
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Search(ctx context.Context, text string) (*InfoResults, error) {
	return p.fn(ctx, text)
}

type fakeResolver struct {
	name string
	fn   func(ctx context.Context, text string) ([]models.Track, error)
}

func (r *fakeResolver) Name() string { return r.name }

func (r *fakeResolver) Resolve(ctx context.Context, text string) ([]models.Track, error) {
	return r.fn(ctx, text)
}

func staticTracks(name string, tracks ...models.Track) *fakeResolver {
	return &fakeResolver{name: name, fn: func(context.Context, string) ([]models.Track, error) {
		return tracks, nil
	}}
}

func failingResolver(name string) *fakeResolver {
	return &fakeResolver{name: name, fn: func(context.Context, string) ([]models.Track, error) {
		return nil, tu.ErrFake
	}}
}

// blockingResolver waits for release or cancellation and counts concurrent calls.
type blockingResolver struct {
	release chan struct{}
	entered chan struct{}
	active  atomic.Int32
	peak    atomic.Int32
}

func newBlockingResolver() *blockingResolver {
	return &blockingResolver{release: make(chan struct{}), entered: make(chan struct{}, 16)}
}

func (r *blockingResolver) Name() string { return "blocking" }

func (r *blockingResolver) Resolve(ctx context.Context, text string) ([]models.Track, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	r.entered <- struct{}{}

	select {
	case <-r.release:
		return []models.Track{{Title: text, Artist: "Blocking"}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLargestImage(t *testing.T) {
	t.Run("Picks Biggest Area", func(t *testing.T) {
		img := largestImage([]models.Image{
			{URL: "small", Width: 60, Height: 60},
			{URL: "big", Width: 544, Height: 544},
			{URL: "mid", Width: 226, Height: 226},
		})
		if img == nil || img.URL != "big" {
			t.Errorf("expected big image, got %+v", img)
		}
	})

	t.Run("Skips Empty URLs", func(t *testing.T) {
		img := largestImage([]models.Image{{URL: "", Width: 1000, Height: 1000}, {URL: "ok"}})
		if img == nil || img.URL != "ok" {
			t.Errorf("expected ok image, got %+v", img)
		}
	})

	t.Run("None", func(t *testing.T) {
		if img := largestImage(nil); img != nil {
			t.Errorf("expected nil, got %+v", img)
		}
	})
}

func TestPipeline(t *testing.T) {
	cfg := shared.PipelineConfig{MaxConcurrent: 2}

	t.Run("Blank Text", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		p := NewPipeline(pub, cfg, nil, staticTracks("a"))

		h, err := p.Resolve("   ", false)
		if err != nil || h != nil {
			t.Fatalf("expected (nil, nil), got (%v, %v)", h, err)
		}
	})

	t.Run("No Resolvers", func(t *testing.T) {
		p := NewPipeline(&tu.RecordingPublisher{}, cfg, nil)

		_, err := p.Resolve("query", false)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Merges And De-duplicates", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		p := NewPipeline(pub, cfg, nil,
			staticTracks("library",
				models.Track{Title: "Everything In Its Right Place", Artist: "Radiohead", Source: "library"},
				models.Track{Title: "Idioteque", Artist: "Radiohead", Source: "library"},
			),
			staticTracks("youtube",
				models.Track{Title: "everything in its right place", Artist: "RADIOHEAD", Source: "youtube"},
				models.Track{Title: "The National Anthem", Artist: "Radiohead", Source: "youtube"},
			),
		)

		h, err := p.Resolve("radiohead", false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.Backend() != models.BackendTrack {
			t.Errorf("expected track handle, got %v", h.Backend())
		}
		p.Wait()

		events := pub.Events(h)
		if len(events) != 2 {
			t.Fatalf("expected 2 publications, got %d", len(events))
		}
		last := events[len(events)-1]
		if last.Category != models.CategoryTrack {
			t.Errorf("expected track category, got %v", last.Category)
		}
		if len(last.Items) != 3 {
			t.Errorf("expected 3 merged tracks, got %d", len(last.Items))
		}
		if len(events[0].Items) != 2 {
			t.Errorf("expected first publication to carry 2 tracks, got %d", len(events[0].Items))
		}

		finished := pub.Finished(h)
		if len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected one successful finish, got %v", finished)
		}
	})

	t.Run("Nothing New Publishes Nothing", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		p := NewPipeline(pub, cfg, nil, staticTracks("empty"))

		h, _ := p.Resolve("anything", false)
		p.Wait()

		if n := len(pub.Events(h)); n != 0 {
			t.Errorf("expected no events, got %d", n)
		}
		if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected successful finish, got %v", finished)
		}
	})

	t.Run("Partial Failure Succeeds", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		p := NewPipeline(pub, cfg, nil,
			failingResolver("youtube"),
			staticTracks("library", models.Track{Title: "Reckoner", Artist: "Radiohead"}),
		)

		h, _ := p.Resolve("reckoner", false)
		p.Wait()

		if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected successful finish, got %v", finished)
		}
		if n := len(pub.Events(h)); n != 1 {
			t.Errorf("expected 1 event, got %d", n)
		}
	})

	t.Run("Total Failure Fails", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		p := NewPipeline(pub, cfg, nil, failingResolver("youtube"), failingResolver("library"))

		h, _ := p.Resolve("reckoner", false)
		p.Wait()

		finished := pub.Finished(h)
		if len(finished) != 1 || !errors.Is(finished[0], tu.ErrFake) {
			t.Fatalf("expected one failed finish, got %v", finished)
		}
		if !strings.Contains(finished[0].Error(), "youtube") || !strings.Contains(finished[0].Error(), "library") {
			t.Errorf("expected both resolver names in %q", finished[0])
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		r := newBlockingResolver()
		p := NewPipeline(pub, cfg, nil, r)

		h, _ := p.Resolve("slow", true)
		<-r.entered

		if !p.Cancel(h) {
			t.Error("expected cancel of running query to take effect")
		}
		if p.Cancel(h) {
			t.Error("expected second cancel to be ineffective")
		}
		p.Wait()

		finished := pub.Finished(h)
		if len(finished) != 1 || !errors.Is(finished[0], context.Canceled) {
			t.Errorf("expected finish with context.Canceled, got %v", finished)
		}
		if p.Cancel(h) {
			t.Error("expected cancel after finish to be ineffective")
		}
	})

	t.Run("Background Queries Share The Semaphore", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		r := newBlockingResolver()
		p := NewPipeline(pub, shared.PipelineConfig{MaxConcurrent: 1}, nil, r)

		h1, _ := p.Resolve("one", false)
		h2, _ := p.Resolve("two", false)
		<-r.entered

		close(r.release)
		p.Wait()

		if peak := r.peak.Load(); peak != 1 {
			t.Errorf("expected at most 1 concurrent background call, got %d", peak)
		}
		for _, h := range []*models.QueryHandle{h1, h2} {
			if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
				t.Errorf("expected successful finish for %v, got %v", h, finished)
			}
		}
	})

	t.Run("Interactive Queries Bypass The Semaphore", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		r := newBlockingResolver()
		p := NewPipeline(pub, shared.PipelineConfig{MaxConcurrent: 1}, nil, r)

		p.Resolve("background", false)
		<-r.entered
		p.Resolve("interactive", true)
		<-r.entered

		if active := r.active.Load(); active != 2 {
			t.Errorf("expected 2 concurrent calls, got %d", active)
		}
		close(r.release)
		p.Wait()
	})

	t.Run("Close Cancels Running Queries", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		r := newBlockingResolver()
		p := NewPipeline(pub, cfg, nil, r)

		h, _ := p.Resolve("slow", true)
		<-r.entered
		p.Close()

		if finished := pub.Finished(h); len(finished) != 1 || finished[0] == nil {
			t.Errorf("expected failed finish after close, got %v", finished)
		}
	})

	t.Run("Resolvers", func(t *testing.T) {
		p := NewPipeline(&tu.RecordingPublisher{}, cfg, nil, staticTracks("library"), staticTracks("youtube"))
		if got := strings.Join(p.Resolvers(), ","); got != "library,youtube" {
			t.Errorf("expected library,youtube, got %s", got)
		}
	})
}

func TestInfoSystem(t *testing.T) {
	cfg := shared.InfoConfig{}

	results := &InfoResults{
		Artists: []models.ResultItem{{Key: "a1", Title: "Radiohead"}},
		Albums:  []models.ResultItem{{Key: "b1", Title: "Kid A", Subtitle: "Radiohead"}},
	}
	static := &fakeProvider{name: "static", fn: func(context.Context, string) (*InfoResults, error) {
		return results, nil
	}}
	failing := &fakeProvider{name: "failing", fn: func(context.Context, string) (*InfoResults, error) {
		return nil, tu.ErrFake
	}}

	t.Run("No Providers", func(t *testing.T) {
		s := NewInfoSystem(&tu.RecordingPublisher{}, cfg, nil)
		if _, err := s.Resolve("query"); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Publishes One Event Per Category", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		s := NewInfoSystem(pub, cfg, nil, static)

		h, err := s.Resolve("radiohead")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.Backend() != models.BackendInfo {
			t.Errorf("expected info handle, got %v", h.Backend())
		}
		s.Wait()

		events := pub.Events(h)
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Category != models.CategoryArtist || events[1].Category != models.CategoryAlbum {
			t.Errorf("expected artists then albums, got %v, %v", events[0].Category, events[1].Category)
		}
		if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected successful finish, got %v", finished)
		}
	})

	t.Run("Blank Text Finishes Without Results", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		s := NewInfoSystem(pub, cfg, nil, static)

		h, err := s.Resolve(" ")
		if err != nil || h == nil {
			t.Fatalf("expected a handle, got (%v, %v)", h, err)
		}
		s.Wait()

		if n := len(pub.Events(h)); n != 0 {
			t.Errorf("expected no events, got %d", n)
		}
		if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected successful finish, got %v", finished)
		}
	})

	t.Run("Partial Failure Succeeds", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		s := NewInfoSystem(pub, cfg, nil, failing, static)

		h, _ := s.Resolve("radiohead")
		s.Wait()

		if finished := pub.Finished(h); len(finished) != 1 || finished[0] != nil {
			t.Errorf("expected successful finish, got %v", finished)
		}
	})

	t.Run("Total Failure Fails", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		s := NewInfoSystem(pub, cfg, nil, failing)

		h, _ := s.Resolve("radiohead")
		s.Wait()

		finished := pub.Finished(h)
		if len(finished) != 1 || !errors.Is(finished[0], tu.ErrFake) {
			t.Errorf("expected failed finish, got %v", finished)
		}
	})

	t.Run("Cancel", func(t *testing.T) {
		pub := &tu.RecordingPublisher{}
		entered := make(chan struct{})
		var once sync.Once
		slow := &fakeProvider{name: "slow", fn: func(ctx context.Context, _ string) (*InfoResults, error) {
			once.Do(func() { close(entered) })
			<-ctx.Done()
			return nil, ctx.Err()
		}}
		s := NewInfoSystem(pub, cfg, nil, slow)

		h, _ := s.Resolve("radiohead")
		<-entered

		if !s.Cancel(h) {
			t.Error("expected cancel to take effect")
		}
		if s.Cancel(h) {
			t.Error("expected second cancel to be ineffective")
		}
		s.Wait()

		finished := pub.Finished(h)
		if len(finished) != 1 || !errors.Is(finished[0], context.Canceled) {
			t.Errorf("expected finish with context.Canceled, got %v", finished)
		}
		if n := len(pub.Events(h)); n != 0 {
			t.Errorf("expected no events after cancel, got %d", n)
		}
	})

	t.Run("Rate Limited", func(t *testing.T) {
		var calls atomic.Int32
		counting := &fakeProvider{name: "counting", fn: func(context.Context, string) (*InfoResults, error) {
			calls.Add(1)
			return &InfoResults{}, nil
		}}
		pub := &tu.RecordingPublisher{}
		s := NewInfoSystem(pub, shared.InfoConfig{RequestsPerSecond: 1000, Burst: 1}, nil, counting)

		for range 3 {
			s.Resolve("q")
		}
		s.Wait()

		if n := calls.Load(); n != 3 {
			t.Errorf("expected 3 provider calls, got %d", n)
		}
	})

	t.Run("Providers", func(t *testing.T) {
		s := NewInfoSystem(&tu.RecordingPublisher{}, cfg, nil, static, failing)
		if got := strings.Join(s.Providers(), ","); got != "static,failing" {
			t.Errorf("expected static,failing, got %s", got)
		}
	})
}

type fakeLibrary struct {
	tracks []*models.LibraryTrack
	err    error
	limit  int
}

func (l *fakeLibrary) Search(_ string, limit int) ([]*models.LibraryTrack, error) {
	l.limit = limit
	return l.tracks, l.err
}

func TestLibraryResolver(t *testing.T) {
	library := &fakeLibrary{tracks: []*models.LibraryTrack{
		models.NewLibraryTrack("/music/kida/01.flac", "Everything In Its Right Place", "Radiohead", "Kid A"),
		models.NewLibraryTrack("/music/kida/02.flac", "Kid A", "Radiohead", "Kid A"),
		models.NewLibraryTrack("/music/other.flac", "Teardrop", "Massive Attack", "Mezzanine"),
	}}

	t.Run("Every Word Must Match", func(t *testing.T) {
		r := NewLibraryResolver(library, 0)

		tracks, err := r.Resolve(context.Background(), "radiohead place")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title != "Everything In Its Right Place" {
			t.Errorf("expected one match, got %+v", tracks)
		}
		if tracks[0].Source != "library" {
			t.Errorf("expected library source, got %s", tracks[0].Source)
		}
		if library.limit != defaultLibraryLimit {
			t.Errorf("expected default limit, got %d", library.limit)
		}
	})

	t.Run("Fuzzy Match", func(t *testing.T) {
		r := NewLibraryResolver(library, 10)

		tracks, err := r.Resolve(context.Background(), "rdhd")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tracks) != 2 {
			t.Errorf("expected 2 fuzzy matches, got %d", len(tracks))
		}
	})

	t.Run("Search Error", func(t *testing.T) {
		r := NewLibraryResolver(&fakeLibrary{err: tu.ErrFake}, 10)
		if _, err := r.Resolve(context.Background(), "x"); !errors.Is(err, tu.ErrFake) {
			t.Errorf("expected ErrFake, got %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := NewLibraryResolver(library, 10)
		if _, err := r.Resolve(ctx, "radiohead"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}
