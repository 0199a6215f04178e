package faceid

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Person is an enrolled identity.
type Person struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Notes         string    `json:"notes,omitempty"`
	EncodingCount int       `json:"encoding_count"`
	EnrolledAt    time.Time `json:"enrolled_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// GalleryStats summarizes the enrollment database.
type GalleryStats struct {
	Persons   int `json:"persons"`
	Encodings int `json:"encodings"`
}

// Store persists persons and their face encodings in Postgres. Encodings
// are stored as JSON arrays; they are opaque to the database and only ever
// compared in memory.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS persons (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	notes       TEXT NOT NULL DEFAULT '',
	enrolled_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS face_encodings (
	id            BIGSERIAL PRIMARY KEY,
	person_id     BIGINT NOT NULL REFERENCES persons(id) ON DELETE CASCADE,
	encoding_data TEXT NOT NULL,
	photo_path    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_face_encodings_person ON face_encodings(person_id);
`

func NewStore(ctx context.Context, databaseURL string, logger zerolog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Msg("Face database ready")
	return &Store{pool: pool, log: logger}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnrollPerson creates a person and stores their first encoding in one
// transaction.
func (s *Store) EnrollPerson(ctx context.Context, name, notes string, encoding []float64, photoPath string) (int64, error) {
	data, err := json.Marshal(encoding)
	if err != nil {
		return 0, fmt.Errorf("failed to encode face data: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var personID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO persons (name, notes) VALUES ($1, $2) RETURNING id`,
		name, notes).Scan(&personID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert person: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO face_encodings (person_id, encoding_data, photo_path) VALUES ($1, $2, $3)`,
		personID, string(data), photoPath)
	if err != nil {
		return 0, fmt.Errorf("failed to insert encoding: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit enrollment: %w", err)
	}

	s.log.Info().Int64("person_id", personID).Str("name", name).Msg("Person enrolled")
	return personID, nil
}

// AddEncoding attaches another encoding to an existing person.
func (s *Store) AddEncoding(ctx context.Context, personID int64, encoding []float64, photoPath string) error {
	data, err := json.Marshal(encoding)
	if err != nil {
		return fmt.Errorf("failed to encode face data: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO face_encodings (person_id, encoding_data, photo_path)
		 SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM persons WHERE id = $1)`,
		personID, string(data), photoPath)
	if err != nil {
		return fmt.Errorf("failed to insert encoding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %d not found", personID)
	}

	_, err = s.pool.Exec(ctx, `UPDATE persons SET updated_at = now() WHERE id = $1`, personID)
	return err
}

// GetAllEncodings returns every stored encoding joined with its owner.
func (s *Store) GetAllEncodings(ctx context.Context) ([]GalleryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, e.encoding_data
		 FROM face_encodings e JOIN persons p ON p.id = e.person_id
		 ORDER BY p.id, e.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query encodings: %w", err)
	}
	defer rows.Close()

	var entries []GalleryEntry
	for rows.Next() {
		var entry GalleryEntry
		var data string
		if err := rows.Scan(&entry.PersonID, &entry.Name, &data); err != nil {
			return nil, fmt.Errorf("failed to scan encoding row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &entry.Encoding); err != nil {
			s.log.Warn().Err(err).Int64("person_id", entry.PersonID).Msg("Skipping corrupt encoding")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) GetPerson(ctx context.Context, id int64) (*Person, error) {
	var p Person
	err := s.pool.QueryRow(ctx,
		`SELECT p.id, p.name, p.notes, p.enrolled_at, p.updated_at,
		        (SELECT count(*) FROM face_encodings e WHERE e.person_id = p.id)
		 FROM persons p WHERE p.id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Notes, &p.EnrolledAt, &p.UpdatedAt, &p.EncodingCount)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("person %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query person: %w", err)
	}
	return &p, nil
}

func (s *Store) ListPersons(ctx context.Context) ([]Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.id, p.name, p.notes, p.enrolled_at, p.updated_at,
		        (SELECT count(*) FROM face_encodings e WHERE e.person_id = p.id)
		 FROM persons p ORDER BY p.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	persons := []Person{}
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Notes, &p.EnrolledAt, &p.UpdatedAt, &p.EncodingCount); err != nil {
			return nil, fmt.Errorf("failed to scan person row: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (s *Store) UpdatePerson(ctx context.Context, id int64, name, notes string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE persons SET name = $2, notes = $3, updated_at = now() WHERE id = $1`,
		id, name, notes)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %d not found", id)
	}
	return nil
}

// DeletePerson removes a person; their encodings go with them via the
// foreign key cascade.
func (s *Store) DeletePerson(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %d not found", id)
	}
	s.log.Info().Int64("person_id", id).Msg("Person deleted")
	return nil
}

func (s *Store) Stats(ctx context.Context) (GalleryStats, error) {
	var stats GalleryStats
	err := s.pool.QueryRow(ctx,
		`SELECT (SELECT count(*) FROM persons), (SELECT count(*) FROM face_encodings)`).
		Scan(&stats.Persons, &stats.Encodings)
	if err != nil {
		return GalleryStats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}
