package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/repositories"
	"github.com/desertthunder/fedsearch/internal/services"
	"github.com/desertthunder/fedsearch/internal/shared"
	"github.com/desertthunder/fedsearch/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// libraryRow is the JSON shape of a library track.
type libraryRow struct {
	ID          string `json:"id"`
	Sequence    int    `json:"sequence"`
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	TrackNo     int    `json:"track_no,omitempty"`
	Duration    int    `json:"duration,omitempty"`
}

func newLibraryRow(t *models.LibraryTrack) libraryRow {
	return libraryRow{
		ID:          t.ID(),
		Sequence:    t.Sequence(),
		Path:        t.Path(),
		Title:       t.Title(),
		Artist:      t.Artist(),
		Album:       t.Album(),
		AlbumArtist: t.AlbumArtist(),
		TrackNo:     t.TrackNo(),
		Duration:    t.Duration(),
	}
}

func (r *Runner) openLibrary() (*repositories.LibraryRepository, func(), error) {
	db, err := shared.OpenLibrary(r.config.Database)
	if err != nil {
		return nil, nil, err
	}
	return repositories.NewLibraryRepository(db), func() { db.Close() }, nil
}

// LibraryImport scans a directory into the library, printing progress as it goes.
func (r *Runner) LibraryImport(ctx context.Context, cmd *cli.Command) error {
	root := cmd.Args().First()
	if root == "" {
		return fmt.Errorf("%w: dir", shared.ErrMissingArgument)
	}

	library, closeLibrary, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer closeLibrary()

	prog := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			switch update.Phase {
			case tasks.ScanFiles:
				r.writePlain("%s\n", update.Message)
			case tasks.ReadingTags:
				r.logger.Info(update.Message)
			case tasks.StoreTracks:
				r.logger.Debug(update.Message, "step", update.Step, "total", update.Total)
			}
		}
	}()

	started := time.Now()
	importer := tasks.NewLibraryImporter(library, nil, r.logger)
	result, err := importer.Run(ctx, root, prog, tasks.ImportOpts{
		NumWorkers: int(cmd.Int("workers")),
		Extensions: normalizeExtensions(cmd.StringSlice("ext")),
	})
	close(prog)
	<-done
	if err != nil {
		return err
	}

	for _, e := range result.Errors {
		r.logger.Warn("file not imported", "path", e.Path, "err", e.Err)
	}

	total, err := library.Count()
	if err != nil {
		return err
	}

	r.writePlainln("Import finished in %s", time.Since(started).Round(time.Millisecond))
	r.writePlain("  scanned: %s\n", humanize.Comma(int64(result.Scanned)))
	r.writePlain("  created: %s\n", humanize.Comma(int64(result.Created)))
	r.writePlain("  updated: %s\n", humanize.Comma(int64(result.Updated)))
	r.writePlain("  skipped: %s\n", humanize.Comma(int64(result.Skipped)))
	r.writePlain("  failed:  %s\n", humanize.Comma(int64(result.Failed)))
	return r.writePlain("Library now holds %s tracks\n", humanize.Comma(int64(total)))
}

// normalizeExtensions lower-cases extensions and adds the leading dot. An empty list keeps the importer default.
func normalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

// LibraryList prints library tracks in sequence order.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	library, closeLibrary, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer closeLibrary()

	tracks, err := library.List(map[string]any{
		"artist": cmd.String("artist"),
		"album":  cmd.String("album"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(libraryRows(tracks), true)
	}

	total, err := library.Count()
	if err != nil {
		return err
	}
	if err := r.writeTrackTable(tracks); err != nil {
		return err
	}
	return r.writePlain("%s of %s tracks\n", humanize.Comma(int64(len(tracks))), humanize.Comma(int64(total)))
}

// LibrarySearch runs the same fuzzy match the track pipeline uses against the library.
func (r *Runner) LibrarySearch(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("%w: text", shared.ErrMissingArgument)
	}

	library, closeLibrary, err := r.openLibrary()
	if err != nil {
		return err
	}
	defer closeLibrary()

	limit := int(cmd.Int("limit"))
	candidates, err := library.Search(text, limit)
	if err != nil {
		return err
	}

	tracks, err := services.NewLibraryResolver(library, limit).Resolve(ctx, text)
	if err != nil {
		return err
	}
	keep := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		keep[t.ID] = true
	}

	matched := make([]*models.LibraryTrack, 0, len(tracks))
	for _, c := range candidates {
		if keep[c.ID()] {
			matched = append(matched, c)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(libraryRows(matched), true)
	}
	if err := r.writeTrackTable(matched); err != nil {
		return err
	}
	return r.writePlain("%s matches for %q\n", humanize.Comma(int64(len(matched))), text)
}

func libraryRows(tracks []*models.LibraryTrack) []libraryRow {
	rows := make([]libraryRow, len(tracks))
	for i, t := range tracks {
		rows[i] = newLibraryRow(t)
	}
	return rows
}

func (r *Runner) writeTrackTable(tracks []*models.LibraryTrack) error {
	if len(tracks) == 0 {
		return r.writePlain("No tracks\n")
	}

	rows := make([][]string, len(tracks))
	for i, t := range tracks {
		length := ""
		if t.Duration() > 0 {
			length = (time.Duration(t.Duration()) * time.Second).String()
		}
		rows[i] = []string{strconv.Itoa(t.Sequence()), t.Title(), t.Artist(), t.Album(), length}
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Title", "Artist", "Album", "Length").
		Rows(rows...)
	return r.writePlain("%s\n", tbl.String())
}
