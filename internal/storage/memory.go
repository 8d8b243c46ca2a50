package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/unvios/memory-service/internal/models"
)

// MemoryStorage is an in-process Storage for development and tests. Vector
// search is brute-force cosine similarity over all rows of one user.
type MemoryStorage struct {
	mu           sync.RWMutex
	nextMemoryID int64
	nextUserID   int64
	memories     map[int64]*models.Memory
	users        map[int64]*models.User
	activity     []*models.ActivityLog
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		memories: make(map[int64]*models.Memory),
		users:    make(map[int64]*models.User),
	}
}

func (s *MemoryStorage) CreateMemory(ctx context.Context, memory *models.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if memory.Category == "" {
		memory.Category = models.DefaultCategory
	}
	memory.Tags = models.ClampTags(memory.Tags)

	s.nextMemoryID++
	memory.ID = s.nextMemoryID
	memory.CreatedAt = time.Now()

	stored := *memory
	stored.Tags = append([]string(nil), memory.Tags...)
	s.memories[memory.ID] = &stored
	return nil
}

func (s *MemoryStorage) UpdateMemory(ctx context.Context, userID, id int64, content, category string, tags []string) (*models.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memory, exists := s.memories[id]
	if !exists || memory.UserID != userID {
		return nil, ErrNotFound
	}

	if category == "" {
		category = models.DefaultCategory
	}
	memory.Content = content
	memory.Category = category
	memory.Tags = models.ClampTags(tags)

	copied := *memory
	copied.Tags = append([]string(nil), memory.Tags...)
	return &copied, nil
}

func (s *MemoryStorage) DeleteMemory(ctx context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memory, exists := s.memories[id]
	if !exists || memory.UserID != userID {
		return ErrNotFound
	}
	delete(s.memories, id)
	return nil
}

func (s *MemoryStorage) ListMemories(ctx context.Context, userID int64) ([]*models.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var memories []*models.Memory
	for _, memory := range s.memories {
		if memory.UserID != userID {
			continue
		}
		copied := *memory
		copied.Tags = append([]string(nil), memory.Tags...)
		memories = append(memories, &copied)
	}

	sort.Slice(memories, func(i, j int) bool {
		if memories[i].CreatedAt.Equal(memories[j].CreatedAt) {
			return memories[i].ID > memories[j].ID
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	return memories, nil
}

func (s *MemoryStorage) NearestMemories(ctx context.Context, userID int64, vec []float32, limit int) ([]*models.Memory, error) {
	if len(vec) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var scored []*models.Memory
	for _, memory := range s.memories {
		if memory.UserID != userID || len(memory.Embedding) == 0 {
			continue
		}
		copied := *memory
		copied.Tags = append([]string(nil), memory.Tags...)
		copied.Score = cosineSimilarity(vec, memory.Embedding)
		scored = append(scored, &copied)
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *MemoryStorage) UpdateEmbedding(ctx context.Context, id int64, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	memory, exists := s.memories[id]
	if !exists {
		return ErrNotFound
	}
	memory.Embedding = append([]float32(nil), vec...)
	return nil
}

func (s *MemoryStorage) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email && user.DeletedAt == nil {
			return nil, ErrEmailTaken
		}
	}

	s.nextUserID++
	user := &models.User{
		ID:           s.nextUserID,
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	s.users[user.ID] = user

	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email && user.DeletedAt == nil {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStorage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists || user.DeletedAt != nil {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return ErrNotFound
	}
	user.PasswordHash = passwordHash
	return nil
}

func (s *MemoryStorage) SoftDeleteUser(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists || user.DeletedAt != nil {
		return nil
	}
	now := time.Now()
	user.DeletedAt = &now
	user.Email = fmt.Sprintf("%s-%d-deleted", user.Email, user.ID)
	return nil
}

func (s *MemoryStorage) SetMobileVerification(ctx context.Context, id int64, countryCode, number, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return ErrNotFound
	}
	user.MobileCountryCode = countryCode
	user.MobileNumber = number
	user.MobileVerificationToken = token
	user.MobileVerificationExpires = &expires
	user.MobileVerified = nil
	return nil
}

func (s *MemoryStorage) ConfirmMobileVerification(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[id]
	if !exists {
		return ErrNotFound
	}
	now := time.Now()
	user.MobileVerified = &now
	user.MobileVerificationToken = ""
	user.MobileVerificationExpires = nil
	return nil
}

func (s *MemoryStorage) LogActivity(ctx context.Context, entry *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = int64(len(s.activity) + 1)
	entry.Timestamp = time.Now()
	s.activity = append(s.activity, entry)
	return nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	length := len(a)
	if len(b) < length {
		length = len(b)
	}
	for i := 0; i < length; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
