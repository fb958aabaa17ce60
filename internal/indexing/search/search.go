package search

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/embed"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/platform/vectorstore"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// Chunk hits are collapsed to records, so we overfetch to keep the final
// page full when one record owns several of the top chunks.
const overfetchFactor = 3

var ErrProfileDisabled = errors.New("indexing profile is disabled")

// Result is one record-level hit after chunk collapse. Score is the best
// chunk score for the record; Preview comes from that same chunk.
type Result struct {
	RecordType string
	RecordID   string
	Score      float64
	Preview    string
	Record     *store.Record
}

type Service struct {
	log      *logger.Logger
	embed    *embed.Service
	vec      vectorstore.Store
	records  store.RecordStore
	profiles repos.ProfileRepo
}

func NewService(log *logger.Logger, embedder *embed.Service, vec vectorstore.Store, records store.RecordStore, profiles repos.ProfileRepo) *Service {
	return &Service{
		log:      log.With("service", "SearchService"),
		embed:    embedder,
		vec:      vec,
		records:  records,
		profiles: profiles,
	}
}

// Search embeds the query and returns the best-matching records of the
// type, most similar first. The optional filter is matched against
// vector payloads; records deleted since indexing are dropped from the
// results.
func (s *Service) Search(ctx context.Context, recordType, query string, limit int, threshold float64, filter map[string]any) ([]Result, error) {
	profile, err := s.profileFor(ctx, recordType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	vector, err := s.embed.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := s.vec.Query(ctx, profile.Collection, vector, limit*overfetchFactor, threshold, filter)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return s.collapse(ctx, recordType, matches, limit, "")
}

// FindSimilar returns records similar to the given one, seeded from the
// record's own stored vectors so no provider call is needed. The record
// itself is excluded from the results.
func (s *Service) FindSimilar(ctx context.Context, recordType, recordID string, limit int, threshold float64) ([]Result, error) {
	profile, err := s.profileFor(ctx, recordType)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	own, err := s.vec.FetchByFilter(ctx, profile.Collection, map[string]any{
		"record_type": recordType,
		"record_id":   recordID,
	}, 64)
	if err != nil {
		return nil, fmt.Errorf("fetch stored vectors: %w", err)
	}
	seed := averageVectors(own)
	if seed == nil {
		return nil, nil
	}

	matches, err := s.vec.Query(ctx, profile.Collection, seed, limit*overfetchFactor, threshold, map[string]any{
		"record_type": recordType,
		"record_id":   map[string]any{"$ne": recordID},
	})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}
	return s.collapse(ctx, recordType, matches, limit, recordID)
}

func (s *Service) profileFor(ctx context.Context, recordType string) (*domain.IndexProfile, error) {
	profile, err := s.profiles.GetByRecordType(dbctx.Context{Ctx: ctx}, recordType)
	if err != nil {
		return nil, err
	}
	if !profile.Enabled {
		return nil, fmt.Errorf("%s: %w", recordType, ErrProfileDisabled)
	}
	return profile, nil
}

// collapse reduces chunk-level matches to one result per record, keeping
// each record's best-scoring chunk.
func (s *Service) collapse(ctx context.Context, recordType string, matches []vectorstore.Match, limit int, excludeID string) ([]Result, error) {
	best := map[string]Result{}
	for _, m := range matches {
		recordID, _ := m.Payload["record_id"].(string)
		if recordID == "" || recordID == excludeID {
			continue
		}
		existing, seen := best[recordID]
		if seen && existing.Score >= m.Score {
			continue
		}
		preview, _ := m.Payload["preview"].(string)
		best[recordID] = Result{
			RecordType: recordType,
			RecordID:   recordID,
			Score:      m.Score,
			Preview:    preview,
		}
	}

	results := make([]Result, 0, len(best))
	for _, r := range best {
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score == results[j].Score {
			return results[i].RecordID < results[j].RecordID
		}
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}

	out := results[:0]
	for _, r := range results {
		rec, err := s.records.Get(ctx, recordType, r.RecordID, nil)
		if errors.Is(err, store.ErrRecordNotFound) {
			s.log.Debug("search hit for deleted record dropped",
				"record_type", recordType, "record_id", r.RecordID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve record %s/%s: %w", recordType, r.RecordID, err)
		}
		r.Record = rec
		out = append(out, r)
	}
	return out, nil
}

func averageVectors(points []vectorstore.Point) []float32 {
	var (
		sum   []float64
		count int
	)
	for _, p := range points {
		if len(p.Values) == 0 {
			continue
		}
		if sum == nil {
			sum = make([]float64, len(p.Values))
		}
		if len(p.Values) != len(sum) {
			continue
		}
		for i, v := range p.Values {
			sum[i] += float64(v)
		}
		count++
	}
	if count == 0 {
		return nil
	}
	out := make([]float32, len(sum))
	for i, v := range sum {
		out[i] = float32(v / float64(count))
	}
	return out
}
