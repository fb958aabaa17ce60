package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/chunk"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/embed"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/extract"
	vsync "github.com/yungbote/vectorbridge-backend/internal/indexing/sync"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// Outcome summarizes one processed item for auditing.
type Outcome struct {
	ChunkCount  int
	VectorCount int
}

// Processor runs a single queue item end to end: load the record with
// its eager plan, extract and chunk content, embed, and sync vectors.
type Processor struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	records  store.RecordStore
	embedder *embed.Service
	syncer   *vsync.Synchronizer
}

func NewProcessor(log *logger.Logger, profiles repos.ProfileRepo, records store.RecordStore, embedder *embed.Service, syncer *vsync.Synchronizer) *Processor {
	return &Processor{
		log:      log.With("service", "QueueProcessor"),
		profiles: profiles,
		records:  records,
		embedder: embedder,
		syncer:   syncer,
	}
}

func (p *Processor) Process(ctx context.Context, item *domain.QueueItem) (Outcome, error) {
	profile, err := p.profiles.GetByID(dbctx.Context{Ctx: ctx}, item.ProfileID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load profile: %w", err)
	}

	if item.Action == domain.ActionDelete {
		if err := p.syncer.Remove(ctx, profile, item.RecordID); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, nil
	}

	rec, err := p.records.Get(ctx, item.RecordType, item.RecordID, profile.EagerPaths())
	if errors.Is(err, store.ErrRecordNotFound) {
		// Deleted between enqueue and processing; clear any stale vectors
		// and treat the item as done.
		p.log.Debug("record vanished before processing, removing vectors",
			"record_type", item.RecordType, "record_id", item.RecordID)
		if err := p.syncer.Remove(ctx, profile, item.RecordID); err != nil {
			return Outcome{}, err
		}
		return Outcome{}, nil
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("load record: %w", err)
	}

	chunks := buildChunks(extract.Extract(rec, profile))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return Outcome{}, fmt.Errorf("embed: %w", err)
	}

	vectorCount, err := p.syncer.Sync(ctx, profile, item.RecordID, chunks, vectors, extract.Metadata(rec, profile))
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{ChunkCount: len(chunks), VectorCount: vectorCount}, nil
}

// buildChunks flattens extracted content into an ordered chunk list with
// stable indexes. Only rules that ask for chunking are split; everything
// else embeds whole.
func buildChunks(items []extract.ContentItem) []vsync.Chunk {
	var out []vsync.Chunk
	next := 0
	for _, item := range items {
		pieces := []string{item.Text}
		if item.Chunk {
			pieces = chunk.Split(item.Text, item.ChunkSize, item.ChunkOverlap)
		}
		for _, piece := range pieces {
			out = append(out, vsync.Chunk{
				Index:      next,
				SourcePath: item.SourcePath,
				Field:      item.Field,
				Weight:     item.Weight,
				Text:       piece,
			})
			next++
		}
	}
	return out
}
