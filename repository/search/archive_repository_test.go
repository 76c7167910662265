package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"courtside/domain/entities"
	"courtside/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeElasticsearch serves the handful of endpoints the repository calls
type fakeElasticsearch struct {
	mu           sync.Mutex
	indexCreated bool
	docs         map[string]json.RawMessage
	failIndexing bool
}

func (f *fakeElasticsearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case r.Method == http.MethodHead && len(parts) == 1:
		if f.indexCreated {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && len(parts) == 1:
		f.indexCreated = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "_doc":
		if f.failIndexing {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"error":"boom"}`)
			return
		}
		body, _ := io.ReadAll(r.Body)
		f.docs[parts[2]] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case len(parts) == 2 && parts[1] == "_search":
		var query struct {
			Query struct {
				Term map[string]string `json:"term"`
			} `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&query)
		owner := query.Query.Term["owner_ids"]

		hits := make([]map[string]any, 0)
		for _, doc := range f.docs {
			var d archiveDocument
			_ = json.Unmarshal(doc, &d)
			for _, id := range d.OwnerIDs {
				if id == owner {
					hits = append(hits, map[string]any{"_source": doc})
					break
				}
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeElasticsearch) created() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.indexCreated
}

func (f *fakeElasticsearch) docCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

func setupSearchRepository(t *testing.T) (*ArchiveRepository, *fakeElasticsearch, string) {
	t.Helper()
	fake := &fakeElasticsearch{docs: make(map[string]json.RawMessage)}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	repo, err := NewArchiveRepository(context.Background(), memory.NewStore().ArchiveRepository(), Config{
		URL:   server.URL,
		Index: "archives_test",
	})
	require.NoError(t, err)
	return repo, fake, server.URL
}

func createTestArchive(key, sessionID string, owners ...string) *entities.SessionArchive {
	registrants := make([]*entities.Registrant, 0, len(owners))
	for i, owner := range owners {
		registrants = append(registrants, &entities.Registrant{
			ID:          owner + "-" + sessionID,
			SessionID:   sessionID,
			OwnerUserID: owner,
			DisplayName: owner,
			Kind:        entities.RegistrantKindSelf,
			Position:    i + 1,
			Paid:        true,
		})
	}
	return &entities.SessionArchive{
		Key:         key,
		SessionID:   sessionID,
		Date:        key,
		Capacity:    4,
		FeeAmount:   100,
		Registrants: registrants,
		ActiveCount: len(owners),
		Income:      int64(len(owners)) * 100,
		ArchivedAt:  time.Date(2026, 3, 7, 21, 0, 0, 0, time.UTC),
	}
}

func TestArchiveRepository_CreatesIndexOnce(t *testing.T) {
	t.Parallel()
	_, fake, serverURL := setupSearchRepository(t)
	assert.True(t, fake.created())

	// A second repository sees the existing index and does not recreate it
	_, err := NewArchiveRepository(context.Background(), memory.NewStore().ArchiveRepository(), Config{
		URL:   serverURL,
		Index: "archives_test",
	})
	require.NoError(t, err)
}

func TestArchiveRepository_CreateMirrorsToIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, fake, _ := setupSearchRepository(t)

	require.NoError(t, repo.Create(ctx, createTestArchive("2026-03-07", "s1", "ann", "bob")))
	require.NoError(t, repo.Create(ctx, createTestArchive("2026-03-14", "s2", "bob")))
	assert.Equal(t, 2, fake.docCount())

	stored, err := repo.GetByKey(ctx, "2026-03-07")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "s1", stored.SessionID)

	found, err := repo.SearchByOwner(ctx, "ann", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "2026-03-07", found[0].Key)
	assert.Len(t, found[0].Registrants, 2)

	found, err = repo.SearchByOwner(ctx, "bob", 10)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestArchiveRepository_IndexFailureDoesNotFailCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, fake, _ := setupSearchRepository(t)
	fake.mu.Lock()
	fake.failIndexing = true
	fake.mu.Unlock()

	require.NoError(t, repo.Create(ctx, createTestArchive("2026-03-07", "s1", "ann")))
	assert.Zero(t, fake.docCount())

	stored, err := repo.GetBySessionID(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, stored, "the base store keeps the archive")
}

func TestArchiveRepository_DuplicateKeySkipsIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo, fake, _ := setupSearchRepository(t)

	require.NoError(t, repo.Create(ctx, createTestArchive("2026-03-07", "s1", "ann")))
	err := repo.Create(ctx, createTestArchive("2026-03-07", "s9", "zed"))
	assert.ErrorIs(t, err, entities.ErrArchiveExists)
	assert.Equal(t, 1, fake.docCount())
}

func TestNewArchiveDocument_DeduplicatesOwners(t *testing.T) {
	t.Parallel()
	archive := createTestArchive("2026-03-07", "s1", "ann", "ann", "bob")
	archive.Registrants[1].Kind = entities.RegistrantKindGuest
	archive.Registrants[1].DisplayName = "ann/cat"

	doc := newArchiveDocument(archive)
	assert.Equal(t, []string{"ann", "bob"}, doc.OwnerIDs)
	assert.Equal(t, []string{"ann", "ann/cat", "bob"}, doc.Names)
}
