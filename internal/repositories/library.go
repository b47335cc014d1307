package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/fedsearch/internal/models"
	"github.com/desertthunder/fedsearch/internal/shared"
)

const libraryColumns = `id, sequence, path, title, artist, album, album_artist, duration, track_no, created_at, updated_at, deleted_at`

// LibraryRepository implements models.Repository[*models.LibraryTrack] for the local library.
//
// Paths are unique, including soft-deleted rows; [LibraryRepository.Upsert] revives a deleted row when its file is
// imported again.
type LibraryRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.LibraryTrack] = (*LibraryRepository)(nil)

// NewLibraryRepository creates a new LibraryRepository with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Create inserts a new [models.LibraryTrack] with a generated ID. The sequence number is reserved in the same
// transaction as the insert.
func (r *LibraryRepository) Create(track *models.LibraryTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextSequence(tx, "library_tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO library_tracks (id, sequence, path, title, artist, album, album_artist, duration, track_no, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.Exec(query,
		id,
		sequence,
		track.Path(),
		track.Title(),
		track.Artist(),
		track.Album(),
		track.AlbumArtist(),
		track.Duration(),
		track.TrackNo(),
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert library track: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit library track: %w", err)
	}

	track.SetID(id)
	track.SetSequence(sequence)
	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *LibraryRepository) Get(id string) (*models.LibraryTrack, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetByPath retrieves the live track stored for a file path
func (r *LibraryRepository) GetByPath(path string) (*models.LibraryTrack, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_tracks WHERE path = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, path))
}

// Update modifies an existing track in the database
func (r *LibraryRepository) Update(track *models.LibraryTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)

	query := `
		UPDATE library_tracks
		SET title = ?, artist = ?, album = ?, album_artist = ?, duration = ?, track_no = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		track.Title(),
		track.Artist(),
		track.Album(),
		track.AlbumArtist(),
		track.Duration(),
		track.TrackNo(),
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update library track: %w", err)
	}

	return expectOneRow(result, track.ID())
}

// Delete soft-deletes a track by ID
func (r *LibraryRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE library_tracks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete library track: %w", err)
	}
	return expectOneRow(result, id)
}

// Upsert stores track by path: a new path is created, a known path is updated and revived if it was deleted.
//
// It reports whether a new row was created.
func (r *LibraryRepository) Upsert(track *models.LibraryTrack) (bool, error) {
	if err := track.Validate(); err != nil {
		return false, fmt.Errorf("validation failed: %w", err)
	}

	var id string
	var sequence int
	err := r.db.QueryRow(`SELECT id, sequence FROM library_tracks WHERE path = ?`, track.Path()).Scan(&id, &sequence)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, r.Create(track)
	case err != nil:
		return false, fmt.Errorf("failed to look up library track: %w", err)
	}

	if _, err := r.db.Exec(`UPDATE library_tracks SET deleted_at = NULL WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("failed to restore library track: %w", err)
	}

	track.SetID(id)
	track.SetSequence(sequence)
	return false, r.Update(track)
}

// List retrieves tracks ordered by sequence, excluding soft-deleted tracks.
//
// Supported criteria: "artist" (exact, case-insensitive), "album" (exact, case-insensitive) and "limit" (int).
func (r *LibraryRepository) List(criteria map[string]any) ([]*models.LibraryTrack, error) {
	query := `SELECT ` + libraryColumns + ` FROM library_tracks WHERE deleted_at IS NULL`
	args := []any{}

	if artist, ok := criteria["artist"].(string); ok && artist != "" {
		query += " AND artist = ? COLLATE NOCASE"
		args = append(args, artist)
	}

	if album, ok := criteria["album"].(string); ok && album != "" {
		query += " AND album = ? COLLATE NOCASE"
		args = append(args, album)
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// Search returns tracks whose title, artist or album contains any word of text, ordered by sequence.
//
// It is a coarse SQL prefilter; callers refine the candidates themselves.
func (r *LibraryRepository) Search(text string, limit int) ([]*models.LibraryTrack, error) {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(words))
	args := make([]any, 0, len(words)*3+1)
	for _, w := range words {
		pattern := "%" + escapeLike(w) + "%"
		clauses = append(clauses, `(lower(title) LIKE ? ESCAPE '\' OR lower(artist) LIKE ? ESCAPE '\' OR lower(album) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + libraryColumns + ` FROM library_tracks WHERE deleted_at IS NULL AND (` +
		strings.Join(clauses, " OR ") + `) ORDER BY sequence ASC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return r.query(query, args...)
}

// Count returns the number of live tracks.
func (r *LibraryRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM library_tracks WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count library tracks: %w", err)
	}
	return n, nil
}

func (r *LibraryRepository) query(query string, args ...any) ([]*models.LibraryTrack, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.LibraryTrack
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// scanOne scans a single [sql.Row], mapping no rows to [shared.ErrTrackNotFound].
func (r *LibraryRepository) scanOne(row *sql.Row) (*models.LibraryTrack, error) {
	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	return track, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrack(s scanner) (*models.LibraryTrack, error) {
	var (
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
		deletedAt   sql.NullTime
	)

	err := s.Scan(&id, &sequence, &path, &title, &artist, &album, &albumArtist, &duration, &trackNo, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan library track: %w", err)
	}

	var deleted *time.Time
	if deletedAt.Valid {
		deleted = &deletedAt.Time
	}

	return models.RestoreLibraryTrack(id, sequence, path, title, artist, album, albumArtist, duration, trackNo, createdAt, updatedAt, deleted), nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
