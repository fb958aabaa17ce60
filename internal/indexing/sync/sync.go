package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/platform/vectorstore"
)

const previewLength = 160

// pointNamespace anchors deterministic point identity: the same record
// chunk always maps to the same point id across processes and restarts.
var pointNamespace = uuid.MustParse("9c0a4b52-37a1-4b42-8d6f-5b7de34d2f10")

// Chunk is one embeddable unit of a record, already split and ordered.
type Chunk struct {
	Index      int
	SourcePath string
	Field      string
	Weight     float64
	Text       string
}

type Synchronizer struct {
	log *logger.Logger
	vec vectorstore.Store
}

func NewSynchronizer(log *logger.Logger, vec vectorstore.Store) *Synchronizer {
	return &Synchronizer{
		log: log.With("service", "Synchronizer"),
		vec: vec,
	}
}

// PointID derives the stable vector point id for one chunk of a record.
func PointID(recordType, recordID string, chunkIndex int) string {
	seed := fmt.Sprintf("%s|%s|%d", recordType, recordID, chunkIndex)
	return uuid.NewSHA1(pointNamespace, []byte(seed)).String()
}

// Sync replaces the record's vectors in the collection: delete every
// point belonging to the record, then upsert the new set. Deterministic
// point ids make the upsert itself idempotent; the delete pass exists so
// a shrinking chunk count leaves no orphans. A failed delete is logged
// and tolerated because the subsequent upsert overwrites the ids that
// matter most.
func (s *Synchronizer) Sync(ctx context.Context, profile *domain.IndexProfile, recordID string, chunks []Chunk, vectors [][]float32, metadata map[string]any) (int, error) {
	if len(chunks) != len(vectors) {
		return 0, fmt.Errorf("sync %s/%s: %d chunks but %d vectors", profile.RecordType, recordID, len(chunks), len(vectors))
	}

	points := make([]vectorstore.Point, 0, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) == 0 {
			continue
		}
		payload := map[string]any{
			"record_type": profile.RecordType,
			"record_id":   recordID,
			"chunk_index": c.Index,
			"field":       c.Field,
			"weight":      c.Weight,
			"preview":     preview(c.Text),
		}
		if c.SourcePath != "" {
			payload["source"] = c.SourcePath
		}
		for key, value := range metadata {
			if _, taken := payload[key]; taken {
				continue
			}
			payload[key] = value
		}
		points = append(points, vectorstore.Point{
			ID:      PointID(profile.RecordType, recordID, c.Index),
			Values:  vectors[i],
			Payload: payload,
		})
	}
	if len(points) == 0 {
		// Nothing embeddable: still clear stale points.
		return 0, s.Remove(ctx, profile, recordID)
	}

	dim := len(points[0].Values)
	if err := s.vec.EnsureCollection(ctx, profile.Collection, dim); err != nil {
		return 0, fmt.Errorf("ensure collection %s: %w", profile.Collection, err)
	}
	s.ensurePayloadIndexes(ctx, profile)

	filter := recordFilter(profile.RecordType, recordID)
	if err := s.vec.DeleteByFilter(ctx, profile.Collection, filter); err != nil {
		s.log.Warn("pre-upsert delete failed, stale chunks may linger until next sync",
			"collection", profile.Collection,
			"record_type", profile.RecordType,
			"record_id", recordID,
			"error", err)
	}

	if err := s.vec.Upsert(ctx, profile.Collection, points); err != nil {
		return 0, fmt.Errorf("upsert %s/%s: %w", profile.RecordType, recordID, err)
	}
	return len(points), nil
}

// Remove deletes every vector belonging to the record. Unlike the
// pre-upsert delete inside Sync, a failure here is an error: the caller
// asked for the record to be gone.
func (s *Synchronizer) Remove(ctx context.Context, profile *domain.IndexProfile, recordID string) error {
	filter := recordFilter(profile.RecordType, recordID)
	if err := s.vec.DeleteByFilter(ctx, profile.Collection, filter); err != nil {
		return fmt.Errorf("remove %s/%s: %w", profile.RecordType, recordID, err)
	}
	return nil
}

func (s *Synchronizer) ensurePayloadIndexes(ctx context.Context, profile *domain.IndexProfile) {
	indexed := []domain.FilterField{
		{Field: "record_type", Type: "keyword"},
		{Field: "record_id", Type: "keyword"},
	}
	indexed = append(indexed, profile.FilterFieldDefs()...)
	for _, def := range indexed {
		if err := s.vec.EnsurePayloadIndex(ctx, profile.Collection, def.Field, payloadIndexKind(def.Type)); err != nil {
			s.log.Warn("payload index creation failed",
				"collection", profile.Collection, "field", def.Field, "error", err)
		}
	}
}

func payloadIndexKind(filterType string) string {
	switch filterType {
	case "integer":
		return "integer"
	case "float":
		return "float"
	case "bool":
		return "bool"
	case "datetime":
		return "datetime"
	default:
		return "keyword"
	}
}

func recordFilter(recordType, recordID string) map[string]any {
	return map[string]any{
		"record_type": recordType,
		"record_id":   recordID,
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}
	return string(runes[:previewLength])
}
