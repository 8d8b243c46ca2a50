package memory

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/unvios/memory-service/internal/embedding"
	"github.com/unvios/memory-service/internal/llm"
	"github.com/unvios/memory-service/internal/models"
	"github.com/unvios/memory-service/internal/storage"
	"github.com/unvios/memory-service/pkg/config"
	"go.uber.org/zap"
)

// minContentLength filters trivial extractions out of persistence. Measured
// in runes, not bytes, so multi-byte scripts are held to the same bar.
const minContentLength = 10

// extractedCategory labels memories saved as a chat side effect.
const extractedCategory = "personal"

// Service runs the retrieval-augmented chat pipeline and memory persistence.
// Everything off the critical path to producing a reply degrades silently;
// only the LLM call itself is fatal.
type Service struct {
	store     storage.MemoryStore
	embedder  embedding.Embedder
	llmClient llm.Client
	retrieval config.RetrievalConfig
	logger    *zap.Logger
}

func NewService(store storage.MemoryStore, embedder embedding.Embedder, llmClient llm.Client, retrieval config.RetrievalConfig, logger *zap.Logger) *Service {
	if retrieval.ChatLimit <= 0 {
		retrieval.ChatLimit = 10
	}
	if retrieval.FallbackThreshold <= 0 {
		retrieval.FallbackThreshold = 3
	}
	// Zero is meaningful for the float knobs: a floor of 0 keeps every
	// positive-score match and a duplicate distance of 0 disables dedupe.
	// Only negative values fall back to the defaults.
	if retrieval.RelevanceFloor < 0 {
		retrieval.RelevanceFloor = 0.65
	}
	if retrieval.DuplicateDistance < 0 {
		retrieval.DuplicateDistance = 0.15
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		llmClient: llmClient,
		retrieval: retrieval,
		logger:    logger,
	}
}

// Chat runs one turn: embed the message, retrieve context, build the prompt,
// call the model, persist any extracted memories and return the reply with
// annotations stripped. The returned error means the LLM call failed.
func (s *Service) Chat(ctx context.Context, userID int64, message string) (string, error) {
	retrieved := s.Retrieve(ctx, userID, message)
	prompt := BuildPrompt(retrieved, message)

	output, err := s.llmClient.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}

	s.extractAndPersist(ctx, userID, output)

	return StripAnnotations(output), nil
}

// Retrieve returns the memories used as chat context: vector search first,
// full listing grouped by category when vector search is degraded or sparse.
func (s *Service) Retrieve(ctx context.Context, userID int64, message string) []*models.Memory {
	var retrieved []*models.Memory

	vec := s.embedder.Embed(ctx, message)
	if len(vec) > 0 {
		rows, err := s.store.NearestMemories(ctx, userID, vec, s.retrieval.ChatLimit)
		if err != nil {
			s.logger.Debug("vector search failed", zap.Error(err))
		}
		for _, row := range rows {
			if row.Score > s.retrieval.RelevanceFloor {
				retrieved = append(retrieved, row)
			}
		}
	}

	// Sparse results fall back to everything the user has stored: a
	// completeness-over-precision trade-off while vector search is degraded.
	if len(retrieved) < s.retrieval.FallbackThreshold {
		all, err := s.store.ListMemories(ctx, userID)
		if err != nil {
			s.logger.Debug("full memory fallback failed", zap.Error(err))
		} else if len(all) > 0 {
			retrieved = FlattenGrouped(GroupByCategory(all))
			s.logger.Debug("using full memory fallback", zap.Int("count", len(retrieved)))
		}
	}

	return retrieved
}

// SaveMemory persists a user-created memory and enriches it with an embedding
// when the embedding service cooperates. The embedding write is a separate
// best-effort step; its failure leaves a row without a vector.
func (s *Service) SaveMemory(ctx context.Context, userID int64, content, category string, tags []string) (*models.Memory, error) {
	mem := &models.Memory{
		UserID:   userID,
		Content:  content,
		Category: category,
		Tags:     tags,
	}
	if err := s.store.CreateMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}

	if vec := s.embedder.Embed(ctx, content); len(vec) > 0 {
		if err := s.store.UpdateEmbedding(ctx, mem.ID, vec); err != nil {
			s.logger.Debug("failed to write embedding", zap.Int64("memory_id", mem.ID), zap.Error(err))
		} else {
			mem.Embedding = vec
		}
	}

	return mem, nil
}

// isDuplicate reports whether content is near-identical to an existing
// memory. Without an embedding the check is skipped: a false negative is
// acceptable, blocking a legitimately new memory is not.
func (s *Service) isDuplicate(ctx context.Context, userID int64, vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	nearest, err := s.store.NearestMemories(ctx, userID, vec, 1)
	if err != nil {
		s.logger.Debug("duplicate check failed", zap.Error(err))
		return false
	}
	if len(nearest) == 0 {
		return false
	}
	distance := 1 - nearest[0].Score
	return distance < s.retrieval.DuplicateDistance
}

// extractAndPersist saves every valid memory annotation found in the model
// output. Each annotation is handled independently; failures are logged and
// never fail the chat turn.
func (s *Service) extractAndPersist(ctx context.Context, userID int64, output string) {
	for _, ann := range ParseMemories(output) {
		if utf8.RuneCountInString(ann.Content) < minContentLength {
			continue
		}

		vec := s.embedder.Embed(ctx, ann.Content)
		if s.isDuplicate(ctx, userID, vec) {
			s.logger.Debug("skipping duplicate memory", zap.String("content", ann.Content))
			continue
		}

		mem := &models.Memory{
			UserID:   userID,
			Content:  ann.Content,
			Category: extractedCategory,
			Tags:     ann.Tags,
		}
		if err := s.store.CreateMemory(ctx, mem); err != nil {
			s.logger.Error("failed to save memory", zap.Error(err))
			continue
		}

		if len(vec) > 0 {
			if err := s.store.UpdateEmbedding(ctx, mem.ID, vec); err != nil {
				s.logger.Debug("failed to write embedding", zap.Int64("memory_id", mem.ID), zap.Error(err))
			}
		}
		s.logger.Debug("memory saved", zap.Int64("memory_id", mem.ID))
	}
}
