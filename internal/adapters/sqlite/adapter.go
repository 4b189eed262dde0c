// Package sqlite provides a SQLite-backed implementation of the profile repository port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously

	"github.com/ewilliams-labs/melomatch/internal/core/domain"
	"github.com/ewilliams-labs/melomatch/internal/core/ports"
)

// createdAtLayout is fixed width so that created_at sorts chronologically as text.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Adapter implements the profile repository port for SQLite
type Adapter struct {
	db *sql.DB
}

var _ ports.ProfileRepository = (*Adapter)(nil)

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	if err := adapter.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// Ping reports whether the database is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Adapter) GetByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT user_id, mood, description, created_at
		FROM profiles
		WHERE user_id = ?
	`, userID)

	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.UserProfile{}, domain.ErrNotFound
		}
		return domain.UserProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}

	tracks, err := a.loadTracks(ctx, profile.UserID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	profile.TopSongs = tracks

	return profile, nil
}

func (a *Adapter) List(ctx context.Context) ([]domain.UserProfile, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT user_id, mood, description, created_at
		FROM profiles
		ORDER BY created_at ASC, user_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}

	profiles := []domain.UserProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}
	_ = rows.Close()

	// Tracks are loaded after the cursor is released; the pool holds one connection.
	for i := range profiles {
		tracks, err := a.loadTracks(ctx, profiles[i].UserID)
		if err != nil {
			return nil, err
		}
		profiles[i].TopSongs = tracks
	}

	return profiles, nil
}

func (a *Adapter) Save(ctx context.Context, p domain.UserProfile) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op after commit

	var mood, description sql.NullString
	if p.ImageAnalysis != nil {
		mood = sql.NullString{String: p.ImageAnalysis.Mood, Valid: true}
		description = sql.NullString{String: p.ImageAnalysis.Description, Valid: true}
	}

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	// A save replaces the whole profile, history included.
	queryProfile := `
		INSERT INTO profiles (user_id, mood, description, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			mood=excluded.mood,
			description=excluded.description,
			created_at=excluded.created_at;
	`
	if _, err := tx.ExecContext(ctx, queryProfile, p.UserID, mood, description, createdAt.UTC().Format(createdAtLayout)); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM profile_tracks WHERE user_id = ?", p.UserID); err != nil {
		return fmt.Errorf("failed to clear old tracks: %w", err)
	}

	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO profile_tracks (user_id, position, name, artist, album)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmtTrack.Close()

	for i, t := range p.TopSongs {
		if _, err := stmtTrack.ExecContext(ctx, p.UserID, i, t.Name, t.Artist, t.Album); err != nil {
			return fmt.Errorf("failed to save track %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}

	return nil
}

func (a *Adapter) loadTracks(ctx context.Context, userID string) ([]domain.Track, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT name, artist, album
		FROM profile_tracks
		WHERE user_id = ?
		ORDER BY position ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile tracks: %w", err)
	}
	defer rows.Close()

	tracks := []domain.Track{}
	for rows.Next() {
		var track domain.Track
		var album sql.NullString
		if err := rows.Scan(&track.Name, &track.Artist, &album); err != nil {
			return nil, fmt.Errorf("failed to scan profile track: %w", err)
		}
		if album.Valid {
			track.Album = album.String
		}
		tracks = append(tracks, track)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profile tracks: %w", err)
	}

	return tracks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.UserProfile, error) {
	var profile domain.UserProfile
	var mood, description sql.NullString
	var createdAt string
	if err := row.Scan(&profile.UserID, &mood, &description, &createdAt); err != nil {
		return domain.UserProfile{}, err
	}

	if mood.Valid || description.Valid {
		profile.ImageAnalysis = &domain.MoodResult{Mood: mood.String, Description: description.String}
	}

	ts, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	profile.CreatedAt = ts
	profile.TopSongs = []domain.Track{}

	return profile, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		mood TEXT,
		description TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS profile_tracks (
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		PRIMARY KEY (user_id, position),
		FOREIGN KEY(user_id) REFERENCES profiles(user_id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}

	return nil
}
