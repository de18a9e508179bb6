package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/galleryprints/catalog-api/internal/domain"
	pfirestore "github.com/galleryprints/catalog-api/internal/platform/firestore"
)

const (
	worksCollection       = "works"
	workSourcesCollection = "workSources"

	existenceBatchSize = 100
)

type workDocument struct {
	GPSku             string             `firestore:"gpSku"`
	Title             string             `firestore:"title"`
	ArtistName        string             `firestore:"artistName"`
	WorkType          string             `firestore:"workType"`
	SourceType        string             `firestore:"sourceType"`
	SourceID          string             `firestore:"sourceId"`
	SourceLabel       string             `firestore:"sourceLabel,omitempty"`
	RetailerExclusive string             `firestore:"retailerExclusive,omitempty"`
	SourceImageURL    string             `firestore:"sourceImageUrl"`
	PreviewImageURL   string             `firestore:"previewImageUrl"`
	ThumbnailImageURL string             `firestore:"thumbnailImageUrl"`
	AiTagsHero        []string           `firestore:"aiTagsHero,omitempty"`
	AiTagsHidden      []string           `firestore:"aiTagsHidden,omitempty"`
	Medium            string             `firestore:"medium,omitempty"`
	Colors            []string           `firestore:"colors,omitempty"`
	WidthInches       *float64           `firestore:"widthInches,omitempty"`
	HeightInches      *float64           `firestore:"heightInches,omitempty"`
	DepthInches       *float64           `firestore:"depthInches,omitempty"`
	Orientation       string             `firestore:"orientation,omitempty"`
	PixelWidth        int                `firestore:"pixelWidth,omitempty"`
	PixelHeight       int                `firestore:"pixelHeight,omitempty"`
	Status            string             `firestore:"status"`
	Embedding         firestore.Vector32 `firestore:"embedding,omitempty"`
	CreatedAt         time.Time          `firestore:"createdAt"`
	UpdatedAt         time.Time          `firestore:"updatedAt"`
}

// workSourceDocument is the dedup index entry keyed by a digest of the
// (sourceType, sourceId) pair. Creating it in the same transaction as the work
// enforces exactly-once imports across concurrent batches.
type workSourceDocument struct {
	SourceType string    `firestore:"sourceType"`
	SourceID   string    `firestore:"sourceId"`
	WorkID     string    `firestore:"workId"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// WorkRepository implements repositories.WorkRepository backed by Firestore.
type WorkRepository struct {
	provider *pfirestore.Provider
	works    *pfirestore.BaseRepository[workDocument]
	sources  *pfirestore.BaseRepository[workSourceDocument]
}

// NewWorkRepository constructs a Firestore-backed work repository.
func NewWorkRepository(provider *pfirestore.Provider) (*WorkRepository, error) {
	if provider == nil {
		return nil, errors.New("work repository: firestore provider is required")
	}
	return &WorkRepository{
		provider: provider,
		works:    pfirestore.NewBaseRepository[workDocument](provider, worksCollection),
		sources:  pfirestore.NewBaseRepository[workSourceDocument](provider, workSourcesCollection),
	}, nil
}

// Create persists the work and its dedup index entry in one transaction.
func (r *WorkRepository) Create(ctx context.Context, work domain.Work) error {
	return r.create(ctx, work, nil)
}

// CreateWithEmbedding persists the work together with its search embedding.
func (r *WorkRepository) CreateWithEmbedding(ctx context.Context, work domain.Work, embedding []float32) error {
	return r.create(ctx, work, embedding)
}

func (r *WorkRepository) create(ctx context.Context, work domain.Work, embedding []float32) error {
	if r == nil || r.provider == nil {
		return errors.New("work repository not initialised")
	}
	workID := strings.TrimSpace(work.ID)
	if workID == "" {
		return errors.New("work repository: work id is required")
	}
	if strings.TrimSpace(work.SourceID) == "" {
		return errors.New("work repository: source id is required")
	}

	doc := encodeWorkDocument(work)
	if len(embedding) > 0 {
		doc.Embedding = firestore.Vector32(embedding)
	}
	sourceDoc := workSourceDocument{
		SourceType: string(work.SourceType),
		SourceID:   work.SourceID,
		WorkID:     workID,
		CreatedAt:  work.CreatedAt.UTC(),
	}

	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		workRef, err := r.works.DocumentRef(ctx, workID)
		if err != nil {
			return err
		}
		sourceRef, err := r.sources.DocumentRef(ctx, sourceKey(work.SourceType, work.SourceID))
		if err != nil {
			return err
		}
		if err := tx.Create(sourceRef, sourceDoc); err != nil {
			return err
		}
		return tx.Create(workRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("works.create", err)
	}
	return nil
}

// FindByID fetches a single work.
func (r *WorkRepository) FindByID(ctx context.Context, workID string) (domain.Work, error) {
	if r == nil || r.works == nil {
		return domain.Work{}, errors.New("work repository not initialised")
	}
	workID = strings.TrimSpace(workID)
	if workID == "" {
		return domain.Work{}, errors.New("work repository: work id is required")
	}
	doc, err := r.works.Get(ctx, workID)
	if err != nil {
		return domain.Work{}, err
	}
	return decodeWorkDocument(workID, doc.Data), nil
}

// FindExistingSourceIDs reports which source ids already have an imported work.
// The dedup index is consulted in fixed-size batches to stay within Firestore
// multi-get limits regardless of caller batch size.
func (r *WorkRepository) FindExistingSourceIDs(ctx context.Context, source domain.SourceType, sourceIDs []string) (map[string]bool, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("work repository not initialised")
	}
	existing := make(map[string]bool, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return existing, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	collection := client.Collection(workSourcesCollection)

	pending := make([]string, 0, len(sourceIDs))
	seen := make(map[string]struct{}, len(sourceIDs))
	for _, id := range sourceIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}

	for start := 0; start < len(pending); start += existenceBatchSize {
		end := start + existenceBatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		refs := make([]*firestore.DocumentRef, len(batch))
		for i, id := range batch {
			refs[i] = collection.Doc(sourceKey(source, id))
		}

		snapshots, err := client.GetAll(ctx, refs)
		if err != nil {
			return nil, pfirestore.WrapError("workSources.get_all", err)
		}
		for i, snapshot := range snapshots {
			if snapshot != nil && snapshot.Exists() {
				existing[batch[i]] = true
			}
		}
	}

	return existing, nil
}

// ListActiveIDs returns the ids of every active work.
func (r *WorkRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	if r == nil || r.works == nil {
		return nil, errors.New("work repository not initialised")
	}
	docs, err := r.works.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("status", "==", string(domain.WorkStatusActive)).Select("status")
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// UpdateTags replaces the AI tag collections and embedding of a work.
func (r *WorkRepository) UpdateTags(ctx context.Context, workID string, hero, hidden []string, medium string, embedding []float32) error {
	if r == nil || r.works == nil {
		return errors.New("work repository not initialised")
	}
	workID = strings.TrimSpace(workID)
	if workID == "" {
		return errors.New("work repository: work id is required")
	}
	updates := []firestore.Update{
		{Path: "aiTagsHero", Value: hero},
		{Path: "aiTagsHidden", Value: hidden},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if medium = strings.TrimSpace(medium); medium != "" {
		updates = append(updates, firestore.Update{Path: "medium", Value: medium})
	}
	if len(embedding) > 0 {
		updates = append(updates, firestore.Update{Path: "embedding", Value: firestore.Vector32(embedding)})
	}
	if _, err := r.works.Update(ctx, workID, updates); err != nil {
		return err
	}
	return nil
}

// sourceKey derives a deterministic document id for the dedup index. Source
// ids can contain slashes (Getty object URIs), so the pair is hashed rather
// than embedded verbatim.
func sourceKey(source domain.SourceType, sourceID string) string {
	sum := sha256.Sum256([]byte(string(source) + "|" + strings.TrimSpace(sourceID)))
	return hex.EncodeToString(sum[:])
}

func encodeWorkDocument(work domain.Work) workDocument {
	doc := workDocument{
		GPSku:             work.GPSku,
		Title:             work.Title,
		ArtistName:        work.ArtistName,
		WorkType:          string(work.WorkType),
		SourceType:        string(work.SourceType),
		SourceID:          work.SourceID,
		SourceLabel:       work.SourceLabel,
		RetailerExclusive: work.RetailerExclusive,
		SourceImageURL:    work.SourceImageURL,
		PreviewImageURL:   work.PreviewImageURL,
		ThumbnailImageURL: work.ThumbnailImageURL,
		AiTagsHero:        work.AiTagsHero,
		AiTagsHidden:      work.AiTagsHidden,
		Medium:            work.Medium,
		Colors:            work.Colors,
		Orientation:       string(work.Orientation),
		PixelWidth:        work.PixelWidth,
		PixelHeight:       work.PixelHeight,
		Status:            string(work.Status),
		CreatedAt:         work.CreatedAt.UTC(),
		UpdatedAt:         work.UpdatedAt.UTC(),
	}
	if work.Dimensions != nil {
		width, height := work.Dimensions.Width, work.Dimensions.Height
		doc.WidthInches = &width
		doc.HeightInches = &height
		doc.DepthInches = work.Dimensions.Depth
	}
	return doc
}

func decodeWorkDocument(id string, doc workDocument) domain.Work {
	work := domain.Work{
		ID:                id,
		GPSku:             doc.GPSku,
		Title:             doc.Title,
		ArtistName:        doc.ArtistName,
		WorkType:          domain.WorkType(doc.WorkType),
		SourceType:        domain.SourceType(doc.SourceType),
		SourceID:          doc.SourceID,
		SourceLabel:       doc.SourceLabel,
		RetailerExclusive: doc.RetailerExclusive,
		SourceImageURL:    doc.SourceImageURL,
		PreviewImageURL:   doc.PreviewImageURL,
		ThumbnailImageURL: doc.ThumbnailImageURL,
		AiTagsHero:        doc.AiTagsHero,
		AiTagsHidden:      doc.AiTagsHidden,
		Medium:            doc.Medium,
		Colors:            doc.Colors,
		Orientation:       domain.Orientation(doc.Orientation),
		PixelWidth:        doc.PixelWidth,
		PixelHeight:       doc.PixelHeight,
		Status:            domain.WorkStatus(doc.Status),
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	if doc.WidthInches != nil || doc.HeightInches != nil || doc.DepthInches != nil {
		dims := &domain.Dimensions{Depth: doc.DepthInches}
		if doc.WidthInches != nil {
			dims.Width = *doc.WidthInches
		}
		if doc.HeightInches != nil {
			dims.Height = *doc.HeightInches
		}
		work.Dimensions = dims
	}
	return work
}
