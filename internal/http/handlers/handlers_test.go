package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/badkiko/y2m/internal/actions"
	"github.com/badkiko/y2m/internal/adb"
	"github.com/badkiko/y2m/internal/crypto"
	"github.com/badkiko/y2m/internal/dispatch"
	httpapi "github.com/badkiko/y2m/internal/http"
	"github.com/badkiko/y2m/internal/http/handlers"
	"github.com/badkiko/y2m/internal/model"
	"github.com/badkiko/y2m/internal/oauth"
	"github.com/badkiko/y2m/internal/provider"
	"github.com/badkiko/y2m/internal/storage"
)

type publishedMessage struct {
	topic   string
	payload string
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []publishedMessage
}

func (p *capturePublisher) Publish(_ context.Context, topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMessage{topic: topic, payload: string(payload)})
	return nil
}

func (p *capturePublisher) byTopic(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		if m.topic == topic {
			out = append(out, m.payload)
		}
	}
	return out
}

type testEnv struct {
	router    http.Handler
	repo      *storage.Repository
	sealer    *crypto.Sealer
	publisher *capturePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	repo, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	sealer, err := crypto.New("handlers-test-key")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	catalog, err := provider.LoadEmbedded()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}

	runner := adb.NewRunner("adb", time.Second)
	pool := adb.NewPool(repo, runner, time.Minute, logger)
	registry := actions.NewRegistry()
	tokens := oauth.NewTokenService(repo, sealer)
	publisher := &capturePublisher{}
	dispatcher := dispatch.New(repo, registry, publisher, tokens, nil, "y2m", logger)

	api := handlers.New(handlers.Deps{
		Store:      repo,
		Registry:   registry,
		Dispatcher: dispatcher,
		Runner:     runner,
		Pool:       pool,
		Catalog:    catalog,
		Upstream:   oauth.NewClient("upstream-id", "upstream-secret", "http://localhost/cb"),
		Codes:      oauth.NewCodeStore(time.Minute),
		Tokens:     tokens,
		Sealer:     sealer,

		SkillClientID:     "skill-id",
		SkillClientSecret: "skill-secret",
		BaseURL:           "http://bridge.local",
		WebURL:            "http://ui.local",

		Logger: logger,
	})

	return &testEnv{
		router:    httpapi.NewRouter(api),
		repo:      repo,
		sealer:    sealer,
		publisher: publisher,
	}
}

// seedToken stores a sealed account token and returns its id. The plaintext
// doubles as the bearer credential for provider endpoints.
func (e *testEnv) seedToken(t *testing.T, plaintext string) string {
	t.Helper()
	sealed, err := e.sealer.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("seal token: %v", err)
	}
	refresh, err := e.sealer.Encrypt("refresh-" + plaintext)
	if err != nil {
		t.Fatalf("seal refresh token: %v", err)
	}
	now := time.Now().UTC()
	token := model.UserToken{
		ID:              uuid.NewString(),
		UserID:          "user-1",
		Provider:        oauth.ProviderYandex,
		AccessToken:     sealed,
		AccessTokenHash: crypto.HashToken(plaintext),
		RefreshToken:    &refresh,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.repo.SaveUserToken(context.Background(), token); err != nil {
		t.Fatalf("save token: %v", err)
	}
	return token.ID
}
