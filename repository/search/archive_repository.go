// Package search mirrors closed-session archives into Elasticsearch. The durable store
// stays the source of truth; the index only serves lookups the store has no index for.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	log "github.com/sirupsen/logrus"
)

// Config holds the Elasticsearch connection settings
type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

const archiveMapping = `{
	"mappings": {
		"properties": {
			"key": { "type": "keyword" },
			"session_id": { "type": "keyword" },
			"date": { "type": "date", "format": "yyyy-MM-dd" },
			"capacity": { "type": "integer" },
			"fee_amount": { "type": "long" },
			"active_count": { "type": "integer" },
			"paid_active_count": { "type": "integer" },
			"courts_used": { "type": "integer" },
			"equipment_units_used": { "type": "integer" },
			"income": { "type": "long" },
			"expense": { "type": "long" },
			"net": { "type": "long" },
			"owner_ids": { "type": "keyword" },
			"names": { "type": "text" },
			"archived_at": { "type": "date" },
			"registrants": { "type": "object", "enabled": false }
		}
	}
}`

// archiveDocument is the indexed shape of an archive
type archiveDocument struct {
	Key                string                 `json:"key"`
	SessionID          string                 `json:"session_id"`
	Date               string                 `json:"date"`
	Capacity           int                    `json:"capacity"`
	FeeAmount          int64                  `json:"fee_amount"`
	ActiveCount        int                    `json:"active_count"`
	PaidActiveCount    int                    `json:"paid_active_count"`
	CourtsUsed         int                    `json:"courts_used"`
	EquipmentUnitsUsed int                    `json:"equipment_units_used"`
	Income             int64                  `json:"income"`
	Expense            int64                  `json:"expense"`
	Net                int64                  `json:"net"`
	OwnerIDs           []string               `json:"owner_ids"`
	Names              []string               `json:"names"`
	ArchivedAt         time.Time              `json:"archived_at"`
	Registrants        []*entities.Registrant `json:"registrants"`
}

func newArchiveDocument(a *entities.SessionArchive) *archiveDocument {
	doc := &archiveDocument{
		Key:                a.Key,
		SessionID:          a.SessionID,
		Date:               a.Date,
		Capacity:           a.Capacity,
		FeeAmount:          a.FeeAmount,
		ActiveCount:        a.ActiveCount,
		PaidActiveCount:    a.PaidActiveCount,
		CourtsUsed:         a.CourtsUsed,
		EquipmentUnitsUsed: a.EquipmentUnitsUsed,
		Income:             a.Income,
		Expense:            a.Expense,
		Net:                a.Net,
		OwnerIDs:           make([]string, 0, len(a.Registrants)),
		Names:              make([]string, 0, len(a.Registrants)),
		ArchivedAt:         a.ArchivedAt,
		Registrants:        a.Registrants,
	}
	seen := make(map[string]bool)
	for _, reg := range a.Registrants {
		doc.Names = append(doc.Names, reg.DisplayName)
		if !seen[reg.OwnerUserID] {
			seen[reg.OwnerUserID] = true
			doc.OwnerIDs = append(doc.OwnerIDs, reg.OwnerUserID)
		}
	}
	return doc
}

func (d *archiveDocument) toArchive() *entities.SessionArchive {
	registrants := d.Registrants
	if registrants == nil {
		registrants = []*entities.Registrant{}
	}
	return &entities.SessionArchive{
		Key:                d.Key,
		SessionID:          d.SessionID,
		Date:               d.Date,
		Capacity:           d.Capacity,
		FeeAmount:          d.FeeAmount,
		Registrants:        registrants,
		ActiveCount:        d.ActiveCount,
		PaidActiveCount:    d.PaidActiveCount,
		CourtsUsed:         d.CourtsUsed,
		EquipmentUnitsUsed: d.EquipmentUnitsUsed,
		Income:             d.Income,
		Expense:            d.Expense,
		Net:                d.Net,
		ArchivedAt:         d.ArchivedAt,
	}
}

// ArchiveRepository writes archives to the base repository and mirrors them to an index
type ArchiveRepository struct {
	base   interfaces.ArchiveRepository
	client *elasticsearch.Client
	index  string
}

var _ interfaces.ArchiveRepository = (*ArchiveRepository)(nil)

// NewArchiveRepository connects to Elasticsearch and makes sure the index exists
func NewArchiveRepository(ctx context.Context, base interfaces.ArchiveRepository, cfg Config) (*ArchiveRepository, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
	}
	if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	repo := newArchiveRepository(base, client, cfg.Index)
	if err := repo.initIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize archive index: %w", err)
	}
	return repo, nil
}

func newArchiveRepository(base interfaces.ArchiveRepository, client *elasticsearch.Client, index string) *ArchiveRepository {
	if index == "" {
		index = "courtside_archives"
	}
	return &ArchiveRepository{base: base, client: client, index: index}
}

func (r *ArchiveRepository) initIndex(ctx context.Context) error {
	res, err := r.client.Indices.Exists([]string{r.index}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", r.index, err)
	}
	res.Body.Close()

	if res.StatusCode != http.StatusNotFound {
		return nil
	}

	req := esapi.IndicesCreateRequest{
		Index: r.index,
		Body:  bytes.NewReader([]byte(archiveMapping)),
	}
	res, err = req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", r.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to create index %s: %s", r.index, res.String())
	}
	log.WithField("index", r.index).Info("Created archive index")
	return nil
}

// Create stores the archive in the base repository, then indexes it. An indexing
// failure is logged and does not fail the write.
func (r *ArchiveRepository) Create(ctx context.Context, archive *entities.SessionArchive) error {
	if err := r.base.Create(ctx, archive); err != nil {
		return err
	}

	if err := r.indexArchive(ctx, archive); err != nil {
		log.WithFields(log.Fields{
			"key":       archive.Key,
			"sessionID": archive.SessionID,
			"error":     err,
		}).Warn("Failed to mirror archive to Elasticsearch")
	}
	return nil
}

func (r *ArchiveRepository) indexArchive(ctx context.Context, archive *entities.SessionArchive) error {
	body, err := json.Marshal(newArchiveDocument(archive))
	if err != nil {
		return fmt.Errorf("failed to marshal archive: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(body),
		r.client.Index.WithDocumentID(archive.Key),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to index archive: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index archive: %s", res.String())
	}
	return nil
}

func (r *ArchiveRepository) GetByKey(ctx context.Context, key string) (*entities.SessionArchive, error) {
	return r.base.GetByKey(ctx, key)
}

func (r *ArchiveRepository) GetBySessionID(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	return r.base.GetBySessionID(ctx, sessionID)
}

func (r *ArchiveRepository) List(ctx context.Context, limit int) ([]*entities.SessionArchive, error) {
	return r.base.List(ctx, limit)
}

// SearchByOwner returns the archived sessions a user paid for, most recent first
func (r *ArchiveRepository) SearchByOwner(ctx context.Context, userID string, limit int) ([]*entities.SessionArchive, error) {
	if limit <= 0 {
		limit = 50
	}
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"owner_ids": userID},
		},
		"sort": []any{
			map[string]any{"archived_at": map[string]any{"order": "desc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(body)),
		r.client.Search.WithSize(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search archives: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("failed to search archives: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source archiveDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	archives := make([]*entities.SessionArchive, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		archives = append(archives, hit.Source.toArchive())
	}
	return archives, nil
}
