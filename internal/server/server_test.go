package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unvios/memory-service/internal/auth"
	"github.com/unvios/memory-service/internal/memory"
	"github.com/unvios/memory-service/internal/models"
	"github.com/unvios/memory-service/internal/storage"
	"github.com/unvios/memory-service/pkg/config"
	"go.uber.org/zap"
)

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) []float32 {
	if f == nil || f.vectors == nil {
		return nil
	}
	return f.vectors[text]
}

type fakeLLM struct {
	output string
	err    error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.output, f.err
}

type testEnv struct {
	store    *storage.MemoryStorage
	sessions *auth.SessionManager
	handler  http.Handler
}

func newTestEnv(t *testing.T, llmClient *fakeLLM, embedder *fakeEmbedder) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	store := storage.NewMemoryStorage()
	sessions, err := auth.NewSessionManager(auth.SessionConfig{Secret: "test-secret", TTL: time.Hour}, logger)
	require.NoError(t, err)

	retrieval := config.RetrievalConfig{
		RelevanceFloor:    0.65,
		DuplicateDistance: 0.15,
		ChatLimit:         10,
		FallbackThreshold: 3,
	}
	chat := memory.NewService(store, embedder, llmClient, retrieval, logger)
	srv := New(store, sessions, chat, logger)

	return &testEnv{store: store, sessions: sessions, handler: srv.Handler()}
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	hash, err := auth.HashPassword("Passw0rdX")
	require.NoError(t, err)
	user, err := e.store.CreateUser(context.Background(), email, "Test User", hash)
	require.NoError(t, err)
	return user
}

func (e *testEnv) authedRequest(t *testing.T, userID int64, method, path string, body any) *http.Request {
	t.Helper()
	req := e.request(t, method, path, body)
	token, _, err := e.sessions.SignToken(userID)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "session", Value: token})
	return req
}

func (e *testEnv) request(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestChatRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})

	rec := env.do(env.request(t, "POST", "/api/llm/chat", map[string]string{"message": "hi"}))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Not authenticated"}`, rec.Body.String())
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{output: "hi"}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/llm/chat", map[string]string{"message": ""}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Message is required")
}

func TestChatRejectsOversizedMessage(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{output: "hi"}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	long := bytes.Repeat([]byte("x"), 5001)
	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/llm/chat", map[string]string{"message": string(long)}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Message too long")
}

func TestChatReturnsStrippedOutput(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{output: "Noted! [MEMORY: User likes pasta | food, preference]"}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/llm/chat", map[string]string{"message": "I like pasta"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Noted!", decodeBody(t, rec)["output"])

	// The annotation was persisted as a side effect.
	items, err := env.store.ListMemories(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "User likes pasta", items[0].Content)
}

func TestChatRespondsWhenEmbeddingUnavailable(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{output: "You like pasta."}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")
	mem := &models.Memory{UserID: user.ID, Content: "User likes pasta"}
	require.NoError(t, env.store.CreateMemory(context.Background(), mem))

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/llm/chat", map[string]string{"message": "what do I like?"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "You like pasta.", decodeBody(t, rec)["output"])
}

func TestChatSurfacesLLMFailure(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{err: fmt.Errorf("LLM request failed: 502 bad gateway")}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/llm/chat", map[string]string{"message": "hi"}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "LLM request failed")
}

func TestCreateMemoryCapsTags(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/memories", map[string]any{
		"content": "User speaks Portuguese",
		"tags":    []string{"t1", "t2", "t3", "t4", "t5"},
	}))

	require.Equal(t, http.StatusOK, rec.Code)
	mem := decodeBody(t, rec)["memory"].(map[string]any)
	assert.Len(t, mem["tags"], 3)
	assert.Equal(t, "general", mem["category"])
}

func TestListMemoriesGroupedAndFlat(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")
	require.NoError(t, env.store.CreateMemory(context.Background(), &models.Memory{UserID: user.ID, Content: "a", Category: "food"}))
	require.NoError(t, env.store.CreateMemory(context.Background(), &models.Memory{UserID: user.ID, Content: "b"}))

	rec := env.do(env.authedRequest(t, user.ID, "GET", "/api/memories", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["items"], 2)
	grouped := body["grouped"].(map[string]any)
	assert.Contains(t, grouped, "food")
	assert.Contains(t, grouped, "general")
}

func TestUpdateAndDeleteEnforceOwnership(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	owner := env.createUser(t, "owner@example.com")
	intruder := env.createUser(t, "intruder@example.com")

	mem := &models.Memory{UserID: owner.ID, Content: "private"}
	require.NoError(t, env.store.CreateMemory(context.Background(), mem))
	path := fmt.Sprintf("/api/memories/%d", mem.ID)

	rec := env.do(env.authedRequest(t, intruder.ID, "PUT", path, map[string]string{"content": "hijacked"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(env.authedRequest(t, intruder.ID, "DELETE", path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(env.authedRequest(t, owner.ID, "DELETE", path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignUpSignInFlow(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})

	rec := env.do(env.request(t, "POST", "/api/auth/signup", map[string]string{
		"email":    "new@example.com",
		"password": "Passw0rdX",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Result().Cookies())

	// Duplicate signup is rejected.
	rec = env.do(env.request(t, "POST", "/api/auth/signup", map[string]string{
		"email":    "new@example.com",
		"password": "Passw0rdX",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Wrong password is a 401.
	rec = env.do(env.request(t, "POST", "/api/auth/signin", map[string]string{
		"email":    "new@example.com",
		"password": "WrongPass1",
	}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Correct credentials sign in.
	rec = env.do(env.request(t, "POST", "/api/auth/signin", map[string]string{
		"email":    "new@example.com",
		"password": "Passw0rdX",
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignUpEnforcesPasswordPolicy(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})

	rec := env.do(env.request(t, "POST", "/api/auth/signup", map[string]string{
		"email":    "weak@example.com",
		"password": "alllowercase1",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "uppercase")
}

func TestExportDownloadsProfileAndMemories(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	mem := &models.Memory{UserID: user.ID, Content: "User likes pasta", Category: "food", Tags: []string{"food"}}
	require.NoError(t, env.store.CreateMemory(context.Background(), mem))
	require.NoError(t, env.store.UpdateEmbedding(context.Background(), mem.ID, []float32{1, 0, 0}))
	require.NoError(t, env.store.CreateMemory(context.Background(), &models.Memory{UserID: user.ID, Content: "User speaks French"}))

	rec := env.do(env.authedRequest(t, user.ID, "GET", "/api/user/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		fmt.Sprintf(`attachment; filename="unvios-export-%d.json"`, user.ID),
		rec.Header().Get("Content-Disposition"))

	var body struct {
		Profile struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
		} `json:"profile"`
		Memories []map[string]any `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, user.ID, body.Profile.ID)
	assert.Equal(t, "a@example.com", body.Profile.Email)
	require.Len(t, body.Memories, 2)
	for _, m := range body.Memories {
		assert.NotContains(t, m, "embedding")
		assert.NotContains(t, m, "user_id")
		assert.IsType(t, []any{}, m["tags"])
	}
}

func TestExportRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})

	rec := env.do(env.request(t, "GET", "/api/user/export", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error": "Not authenticated"}`, rec.Body.String())
}

func TestMobileVerificationFlow(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/user/mobile", map[string]string{
		"mobileNumber": "+15551234567",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := env.store.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.MobileVerificationToken, 6)

	// Wrong code is rejected.
	rec = env.do(env.authedRequest(t, user.ID, "POST", "/api/user/mobile/verify", map[string]string{
		"code": "000000",
	}))
	if stored.MobileVerificationToken != "000000" {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}

	// The issued code verifies.
	rec = env.do(env.authedRequest(t, user.ID, "POST", "/api/user/mobile/verify", map[string]string{
		"code": stored.MobileVerificationToken,
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	verified, err := env.store.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotNil(t, verified.MobileVerified)
}

func TestInvalidMobileNumberRejected(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "POST", "/api/user/mobile", map[string]string{
		"mobileNumber": "5551234567",
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "country code")
}

func TestDeleteAccountSoftDeletes(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	user := env.createUser(t, "a@example.com")

	rec := env.do(env.authedRequest(t, user.ID, "DELETE", "/api/user", map[string]string{
		"password": "Passw0rdX",
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	// Subsequent requests with the old session are unauthorized.
	rec = env.do(env.authedRequest(t, user.ID, "GET", "/api/memories", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, &fakeLLM{}, &fakeEmbedder{})
	rec := env.do(env.request(t, "GET", "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
