package discovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

const (
	DefaultMaxDepth = 3

	relationWeightNear = 0.7
	relationWeightFar  = 0.5
)

var (
	ErrUnknownType  = errors.New("record type not registered in schema")
	ErrNotIndexable = errors.New("record type has no embeddable text fields")
)

// Analysis is the full output of schema discovery for one record type:
// a ready-to-persist profile plus the watcher rules derived from its
// relationship graph.
type Analysis struct {
	Profile         *domain.IndexProfile
	Watchers        []*domain.RelationshipWatcher
	Recommendations []string
}

type Analyzer struct {
	log    *logger.Logger
	schema *store.Schema
}

func NewAnalyzer(log *logger.Logger, schema *store.Schema) *Analyzer {
	return &Analyzer{
		log:    log.With("service", "DiscoveryAnalyzer"),
		schema: schema,
	}
}

// Analyze inspects a record type's schema and produces its indexing
// profile: field rules with weight heuristics, relationship rules from a
// breadth-first walk of the relation graph, the eager-load plan covering
// every relationship path, and one watcher per relationship rule.
func (a *Analyzer) Analyze(recordType string, maxDepth int) (*Analysis, error) {
	desc, ok := a.schema.Type(recordType)
	if !ok {
		return nil, fmt.Errorf("analyze %q: %w", recordType, ErrUnknownType)
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var (
		fieldRules      []domain.FieldRule
		metadataFields  []string
		filterFields    []domain.FilterField
		recommendations []string
	)
	for _, def := range desc.Fields {
		if rule, ok := classifyField(def); ok {
			fieldRules = append(fieldRules, rule)
			continue
		}
		metadata, filter := classifyMetadata(def)
		if metadata {
			metadataFields = append(metadataFields, def.Name)
		}
		if filter != nil {
			filterFields = append(filterFields, *filter)
		}
		if def.Type == store.StorageJSON {
			recommendations = append(recommendations,
				fmt.Sprintf("field %q is stored as json and is not indexed; flatten it into text fields if its content should be searchable", def.Name))
		}
	}
	if len(fieldRules) == 0 {
		return nil, fmt.Errorf("analyze %q: %w", recordType, ErrNotIndexable)
	}

	relationRules, moreRecs := a.walkRelations(recordType, desc, maxDepth)
	recommendations = append(recommendations, moreRecs...)

	profile := &domain.IndexProfile{
		RecordType: recordType,
		Collection: collectionFor(recordType),
		Enabled:    true,
		MaxDepth:   maxDepth,
	}
	profile.SetFieldRules(fieldRules)
	profile.SetMetadataFieldNames(metadataFields)
	profile.SetFilterFieldDefs(filterFields)
	profile.SetRelationshipRules(relationRules)

	eager := make([]string, 0, len(relationRules))
	for _, rule := range relationRules {
		eager = append(eager, rule.Path)
	}
	profile.SetEagerPaths(eager)

	if err := profile.Validate(); err != nil {
		return nil, err
	}

	watchers := make([]*domain.RelationshipWatcher, 0, len(relationRules))
	for _, rule := range relationRules {
		w := &domain.RelationshipWatcher{
			ParentType:  recordType,
			RelatedType: rule.RelatedType,
			Kind:        rule.Kind,
			Path:        rule.Path,
			Depth:       rule.Depth,
			OnChange:    domain.OnChangeReindexParent,
			Enabled:     true,
		}
		w.SetWatchedFields(rule.Fields)
		watchers = append(watchers, w)
	}

	a.log.Info("analyzed record type",
		"record_type", recordType,
		"fields", len(fieldRules),
		"relationships", len(relationRules),
		"watchers", len(watchers))

	return &Analysis{
		Profile:         profile,
		Watchers:        watchers,
		Recommendations: recommendations,
	}, nil
}

// walkRelations runs a breadth-first traversal of the relation graph.
// A (type, depth) pair is visited at most once, which keeps cycles and
// diamond-shaped graphs from producing duplicate rules while still
// letting a self-referential type contribute one path per depth level.
func (a *Analyzer) walkRelations(rootType string, rootDesc store.TypeDescriptor, maxDepth int) ([]domain.RelationshipRule, []string) {
	type frame struct {
		desc  store.TypeDescriptor
		path  string
		depth int
	}

	var (
		rules           []domain.RelationshipRule
		recommendations []string
	)
	visited := map[string]bool{visitKey(rootType, 0): true}
	queue := []frame{{desc: rootDesc, path: "", depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.depth >= maxDepth {
			continue
		}
		nextDepth := current.depth + 1

		for _, rel := range current.desc.Relations {
			relatedDesc, ok := a.schema.Type(rel.RelatedType)
			if !ok {
				recommendations = append(recommendations,
					fmt.Sprintf("relation %q of %q points at unregistered type %q and was skipped", rel.Accessor, current.desc.Name, rel.RelatedType))
				continue
			}

			key := visitKey(rel.RelatedType, nextDepth)
			if visited[key] {
				continue
			}
			visited[key] = true

			path := rel.Accessor
			if current.path != "" {
				path = current.path + "." + rel.Accessor
			}

			// A textless related type contributes no rule of its own but
			// stays on the walk: types behind it may still carry text.
			fields := relatedFieldPick(relatedDesc)
			if len(fields) == 0 {
				recommendations = append(recommendations,
					fmt.Sprintf("related type %q at path %q has no usable text fields; its own fields are not indexed", rel.RelatedType, path))
			} else {
				weight := relationWeightNear
				if nextDepth > 1 {
					weight = relationWeightFar
				}
				rules = append(rules, domain.RelationshipRule{
					Path:        path,
					RelatedType: rel.RelatedType,
					Kind:        string(rel.Kind),
					Depth:       nextDepth,
					Fields:      fields,
					Weight:      weight,
				})
			}

			queue = append(queue, frame{desc: relatedDesc, path: path, depth: nextDepth})
		}
	}
	return rules, recommendations
}

func visitKey(recordType string, depth int) string {
	return fmt.Sprintf("%s@%d", recordType, depth)
}

func collectionFor(recordType string) string {
	return "records_" + strings.ToLower(strings.TrimSpace(recordType))
}
