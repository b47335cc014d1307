package tasks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/dhowden/tag"
)

const (
	defaultImportWorkers = 4
	maxImportWorkers     = 16
)

// DefaultExtensions are the audio file extensions the importer reads tags from.
var DefaultExtensions = []string{".mp3", ".flac", ".m4a", ".ogg"}

// errNoArtist marks files the library cannot use.
var errNoArtist = errors.New("no artist tag")

// TrackTags is the tag data the library keeps.
type TrackTags struct {
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNo     int
}

// TagReader reads the tags of the file at path.
type TagReader func(path string) (*TrackTags, error)

// ReadTags reads ID3, MP4, FLAC and Ogg metadata with [tag.ReadFrom].
func ReadTags(path string) (*TrackTags, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}

	trackNo, _ := m.Track()
	return &TrackTags{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		TrackNo:     trackNo,
	}, nil
}

// TrackStore persists library tracks. [repositories.LibraryRepository] implements it.
type TrackStore interface {
	Upsert(track *models.LibraryTrack) (created bool, err error)
}

// ImportOpts contains configuration for a library import.
type ImportOpts struct {
	NumWorkers int      // Concurrent tag readers (default: 4, max: 16)
	Extensions []string // Lower-case extensions with the dot (default: DefaultExtensions)
}

// ImportError records a file that could not be imported.
type ImportError struct {
	Path string
	Err  error
}

// ImportResult summarizes a library import.
type ImportResult struct {
	Scanned int
	Created int
	Updated int
	Skipped int
	Failed  int
	Errors  []ImportError
}

// LibraryImporter scans directories of audio files into the library.
type LibraryImporter struct {
	store    TrackStore
	readTags TagReader
	logger   *log.Logger
}

// NewLibraryImporter creates an importer. A nil reader uses [ReadTags].
func NewLibraryImporter(store TrackStore, reader TagReader, logger *log.Logger) *LibraryImporter {
	if reader == nil {
		reader = ReadTags
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &LibraryImporter{store: store, readTags: reader, logger: shared.WithLogger(logger, "component", "import")}
}

type tagJob struct {
	path string
}

type tagResult struct {
	path string
	tags *TrackTags
	err  error
}

// Run imports every audio file under root.
//
// Tags are read by a worker pool; tracks are stored from the calling goroutine so the database sees one writer.
func (li *LibraryImporter) Run(ctx context.Context, root string, prog chan<- ProgressUpdate, opts ImportOpts) (*ImportResult, error) {
	if li.store == nil {
		return nil, fmt.Errorf("%w: track store not initialized", shared.ErrServiceUnavailable)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultImportWorkers
	}
	opts.NumWorkers = min(opts.NumWorkers, maxImportWorkers)
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	sendProgress(prog, scanStartedUpdate(root))
	paths, err := scanAudioFiles(ctx, root, opts.Extensions)
	if err != nil {
		return nil, err
	}
	sendProgress(prog, scanCompletedUpdate(len(paths)))

	result := &ImportResult{Scanned: len(paths)}

	jobs := make(chan tagJob)
	results := make(chan tagResult)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go li.tagWorker(ctx, &wg, jobs, results)
	}

	go func() {
		defer close(jobs)
		for _, p := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- tagJob{path: p}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	step := 0
	for res := range results {
		step++
		li.storeResult(res, step, len(paths), result, prog)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	li.logger.Info("import finished", "root", root, "scanned", result.Scanned, "created", result.Created,
		"updated", result.Updated, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

// storeResult records one tag result in the library and in result.
func (li *LibraryImporter) storeResult(res tagResult, step, total int, result *ImportResult, prog chan<- ProgressUpdate) {
	if res.err != nil {
		result.Failed++
		result.Errors = append(result.Errors, ImportError{Path: res.path, Err: res.err})
		sendProgress(prog, trackSkippedUpdate(step, total, res.path, res.err))
		return
	}

	track, err := libraryTrack(res.path, res.tags)
	if err != nil {
		result.Skipped++
		sendProgress(prog, trackSkippedUpdate(step, total, res.path, err))
		return
	}

	created, err := li.store.Upsert(track)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, ImportError{Path: res.path, Err: err})
		sendProgress(prog, trackSkippedUpdate(step, total, res.path, err))
		return
	}

	if created {
		result.Created++
	} else {
		result.Updated++
	}
	sendProgress(prog, trackStoredUpdate(step, total, res.path, created))
}

func (li *LibraryImporter) tagWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan tagJob, results chan<- tagResult) {
	defer wg.Done()

	for job := range jobs {
		tags, err := li.readTags(job.path)
		select {
		case <-ctx.Done():
			return
		case results <- tagResult{path: job.path, tags: tags, err: err}:
		}
	}
}

// libraryTrack builds a library row from tags. A missing title falls back to the file's base name.
func libraryTrack(path string, tags *TrackTags) (*models.LibraryTrack, error) {
	artist := strings.TrimSpace(tags.Artist)
	if artist == "" {
		artist = strings.TrimSpace(tags.AlbumArtist)
	}
	if artist == "" {
		return nil, errNoArtist
	}

	title := strings.TrimSpace(tags.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	track := models.NewLibraryTrack(path, title, artist, strings.TrimSpace(tags.Album))
	track.SetAlbumArtist(strings.TrimSpace(tags.AlbumArtist))
	track.SetTrackNo(tags.TrackNo)
	return track, nil
}

// scanAudioFiles returns the absolute paths of files under root whose extension is in exts, in walk order.
func scanAudioFiles(ctx context.Context, root string, exts []string) ([]string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if slices.Contains(exts, strings.ToLower(filepath.Ext(path))) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	return paths, nil
}

// sendProgress delivers update without blocking. Updates are dropped when the channel is full.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
