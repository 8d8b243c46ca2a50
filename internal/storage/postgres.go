package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/unvios/memory-service/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) CreateMemory(ctx context.Context, memory *models.Memory) error {
	if memory.Category == "" {
		memory.Category = models.DefaultCategory
	}
	memory.Tags = models.ClampTags(memory.Tags)

	query := `
		INSERT INTO memories (user_id, content, category, tags)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(
		ctx,
		query,
		memory.UserID,
		memory.Content,
		memory.Category,
		encodeTags(memory.Tags),
	).Scan(&memory.ID, &memory.CreatedAt)

	if err != nil {
		return fmt.Errorf("error creating memory: %v", err)
	}

	return nil
}

func (s *PostgresStorage) UpdateMemory(ctx context.Context, userID, id int64, content, category string, tags []string) (*models.Memory, error) {
	if category == "" {
		category = models.DefaultCategory
	}
	tags = models.ClampTags(tags)

	// Ownership is part of the WHERE clause: a mismatched user updates nothing.
	query := `
		UPDATE memories
		SET content = $1, category = $2, tags = $3
		WHERE id = $4 AND user_id = $5
		RETURNING id, user_id, content, category, tags, created_at`

	memory := &models.Memory{}
	var rawTags string
	err := s.db.QueryRowContext(ctx, query, content, category, encodeTags(tags), id, userID).Scan(
		&memory.ID,
		&memory.UserID,
		&memory.Content,
		&memory.Category,
		&rawTags,
		&memory.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error updating memory: %v", err)
	}
	memory.Tags = decodeTags(rawTags)

	return memory, nil
}

func (s *PostgresStorage) DeleteMemory(ctx context.Context, userID, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM memories WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("error deleting memory: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) ListMemories(ctx context.Context, userID int64) ([]*models.Memory, error) {
	query := `
		SELECT id, user_id, content, category, tags, created_at
		FROM memories
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying memories: %v", err)
	}
	defer rows.Close()

	return scanMemories(rows, false)
}

func (s *PostgresStorage) NearestMemories(ctx context.Context, userID int64, vec []float32, limit int) ([]*models.Memory, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	// The query embedding travels as a parameter cast to vector in SQL, never
	// spliced into the statement text.
	query := `
		SELECT id, user_id, content, category, tags, created_at,
		       1 - (embedding <=> $1::vector) AS score
		FROM memories
		WHERE user_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(vec), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying nearest memories: %v", err)
	}
	defer rows.Close()

	return scanMemories(rows, true)
}

func (s *PostgresStorage) UpdateEmbedding(ctx context.Context, id int64, vec []float32) error {
	if len(vec) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET embedding = $1::vector WHERE id = $2`, vectorLiteral(vec), id)
	if err != nil {
		return fmt.Errorf("error updating embedding: %v", err)
	}
	return nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	user := &models.User{Email: email, Name: name, PasswordHash: passwordHash}

	query := `
		INSERT INTO users (email, name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query, email, name, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1 AND deleted_at IS NULL`, email)
}

func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (s *PostgresStorage) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	query := `
		SELECT id, email, name, password_hash,
		       mobile_country_code, mobile_number, mobile_verification_token,
		       mobile_verification_expires, mobile_verified,
		       created_at, deleted_at
		FROM users ` + where

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.MobileCountryCode,
		&user.MobileNumber,
		&user.MobileVerificationToken,
		&user.MobileVerificationExpires,
		&user.MobileVerified,
		&user.CreatedAt,
		&user.DeletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("error updating password: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SoftDeleteUser(ctx context.Context, id int64) error {
	// Email is mangled so the unique constraint stays satisfied for future
	// signups with the same address.
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET deleted_at = NOW(), email = CONCAT(email, '-', id, '-deleted')
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("error deleting user: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SetMobileVerification(ctx context.Context, id int64, countryCode, number, token string, expires time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET mobile_country_code = $1, mobile_number = $2,
		    mobile_verification_token = $3, mobile_verification_expires = $4,
		    mobile_verified = NULL
		WHERE id = $5`, countryCode, number, token, expires, id)
	if err != nil {
		return fmt.Errorf("error setting mobile verification: %v", err)
	}
	return nil
}

func (s *PostgresStorage) ConfirmMobileVerification(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET mobile_verified = NOW(), mobile_verification_token = '',
		    mobile_verification_expires = NULL
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error confirming mobile verification: %v", err)
	}
	return nil
}

func (s *PostgresStorage) LogActivity(ctx context.Context, entry *models.ActivityLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (user_id, action, ip_address)
		VALUES ($1, $2, $3)`, entry.UserID, string(entry.Action), entry.IPAddress)
	if err != nil {
		return fmt.Errorf("error logging activity: %v", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func scanMemories(rows *sql.Rows, withScore bool) ([]*models.Memory, error) {
	var memories []*models.Memory
	for rows.Next() {
		memory := &models.Memory{}
		var rawTags string
		var err error
		if withScore {
			err = rows.Scan(&memory.ID, &memory.UserID, &memory.Content, &memory.Category, &rawTags, &memory.CreatedAt, &memory.Score)
		} else {
			err = rows.Scan(&memory.ID, &memory.UserID, &memory.Content, &memory.Category, &rawTags, &memory.CreatedAt)
		}
		if err != nil {
			return nil, fmt.Errorf("error scanning memory: %v", err)
		}
		memory.Tags = decodeTags(rawTags)
		memories = append(memories, memory)
	}
	return memories, rows.Err()
}

func encodeTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func decodeTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return []string{}
	}
	return tags
}

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2]".
func vectorLiteral(vec []float32) string {
	parts := make([]string, len(vec))
	for i, f := range vec {
		parts[i] = fmt.Sprintf("%g", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
