package storage

import (
	"context"
	"errors"
	"time"

	"github.com/unvios/memory-service/internal/models"
)

// ErrNotFound is returned when a row does not exist or is not owned by the
// requesting user. Handlers map it to 404 without leaking which case it was.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when a signup collides with an existing email.
var ErrEmailTaken = errors.New("email already registered")

type Storage interface {
	MemoryStore
	UserStore
	Close() error
}

// MemoryStore persists user memories. Every operation that touches an
// existing row is scoped by user id inside the query itself, so cross-user
// access is structurally impossible.
type MemoryStore interface {
	CreateMemory(ctx context.Context, memory *models.Memory) error
	UpdateMemory(ctx context.Context, userID, id int64, content, category string, tags []string) (*models.Memory, error)
	DeleteMemory(ctx context.Context, userID, id int64) error
	ListMemories(ctx context.Context, userID int64) ([]*models.Memory, error)

	// NearestMemories returns up to limit rows with an embedding, ordered by
	// cosine similarity to vec, each with Score = 1 - cosine distance. No
	// relevance filtering happens here; callers apply their own floor.
	NearestMemories(ctx context.Context, userID int64, vec []float32, limit int) ([]*models.Memory, error)

	// UpdateEmbedding writes the embedding for an existing memory. It is a
	// separate best-effort step after insert; failures leave a NULL embedding.
	UpdateEmbedding(ctx context.Context, id int64, vec []float32) error
}

type UserStore interface {
	CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error

	// SoftDeleteUser sets deleted_at and mangles the email to
	// "<email>-<id>-deleted" so the unique constraint stays satisfied.
	SoftDeleteUser(ctx context.Context, id int64) error

	SetMobileVerification(ctx context.Context, id int64, countryCode, number, token string, expires time.Time) error
	ConfirmMobileVerification(ctx context.Context, id int64) error

	// LogActivity is best-effort; implementations return errors but callers
	// log and continue.
	LogActivity(ctx context.Context, entry *models.ActivityLog) error
}
