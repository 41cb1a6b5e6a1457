package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrQuizNotFound is returned when no saved quiz matches the given id.
var ErrQuizNotFound = errors.New("quiz not found")

// Saved is a quiz stored in a host's library, reusable across sessions.
type Saved struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Quiz      Quiz      `json:"quiz"`
	CreatedAt time.Time `json:"createdAt"`
}

// Repository persists quizzes in Postgres. Questions are stored as a JSONB
// column so the document shape matches what sessions carry at runtime.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save stores a quiz for later reuse and returns the stored record.
func (r *Repository) Save(ctx context.Context, ownerID string, q Quiz) (*Saved, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return nil, fmt.Errorf("encode questions: %w", err)
	}

	saved := &Saved{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Quiz:    q,
	}
	err = r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (id, owner_id, title, questions, duration_seconds)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		saved.ID, ownerID, q.Title, questions, q.DurationSeconds,
	).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Get fetches one quiz by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Saved, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, questions, duration_seconds, created_at
		 FROM quizzes WHERE id = $1`, id)
	return scanSaved(row)
}

// ListByOwner returns a host's saved quizzes, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]Saved, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, owner_id, title, questions, duration_seconds, created_at
		 FROM quizzes WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []Saved
	for rows.Next() {
		saved, err := scanSaved(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *saved)
	}
	return quizzes, rows.Err()
}

// Delete removes a quiz; only its owner may delete it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM quizzes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func scanSaved(row pgx.Row) (*Saved, error) {
	var saved Saved
	var questions []byte
	err := row.Scan(&saved.ID, &saved.OwnerID, &saved.Quiz.Title, &questions,
		&saved.Quiz.DurationSeconds, &saved.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &saved.Quiz.Questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return &saved, nil
}
