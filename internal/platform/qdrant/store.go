package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"

	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/platform/vectorstore"
)

const maxErrorBodyBytes = 1024

type qdrantStore struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
	Vector  []float32       `json:"vector"`
}

func NewStore(log *logger.Logger, cfg Config) (vectorstore.Store, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	s := &qdrantStore{
		log:     log.With("service", "QdrantStore"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}

	if err := s.verifyReady(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Qdrant vector store ready", "url", s.baseURL, "timeout", cfg.Timeout.String())
	return s, nil
}

func (s *qdrantStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	const op = "ensure_collection"
	if strings.TrimSpace(collection) == "" {
		return opErr(op, OperationErrorValidation, "collection name required", nil)
	}
	if dim <= 0 {
		return opErr(op, OperationErrorValidation, fmt.Sprintf("invalid vector dim %d", dim), nil)
	}

	var info struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	err := s.doJSON(ctx, op, http.MethodGet, collectionPath(collection, ""), nil, &info)
	if err == nil {
		// Pre-existing collection is left as-is; a dimension drift is only
		// surfaced in the logs because upserts will fail loudly anyway.
		if size := info.Config.Params.Vectors.Size; size != 0 && size != dim {
			s.log.Warn("qdrant collection dimension differs from requested",
				"collection", collection, "existing", size, "requested", dim)
		}
		return nil
	}
	var opErrTyped *OperationError
	if !errors.As(err, &opErrTyped) || opErrTyped.StatusCode != http.StatusNotFound {
		return err
	}

	req := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, ""), req, nil)
}

func (s *qdrantStore) EnsurePayloadIndex(ctx context.Context, collection, field, kind string) error {
	const op = "ensure_payload_index"
	if strings.TrimSpace(field) == "" {
		return opErr(op, OperationErrorValidation, "field name required", nil)
	}
	if strings.TrimSpace(kind) == "" {
		kind = "keyword"
	}

	req := map[string]any{
		"field_name":   field,
		"field_schema": kind,
	}
	err := s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/index?wait=true"), req, nil)
	if err == nil {
		return nil
	}
	var opErrTyped *OperationError
	if errors.As(err, &opErrTyped) &&
		opErrTyped.StatusCode == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(opErrTyped.Message), "exist") {
		return nil
	}
	return err
}

func (s *qdrantStore) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	const op = "upsert"
	if len(points) == 0 {
		return nil
	}

	body := make([]map[string]any, 0, len(points))
	for _, p := range points {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return opErr(op, OperationErrorValidation, "point id is required", nil)
		}
		if len(p.Values) == 0 {
			return opErr(op, OperationErrorValidation, fmt.Sprintf("point %q has empty vector", id), nil)
		}
		payload := p.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		body = append(body, map[string]any{
			"id":      id,
			"vector":  p.Values,
			"payload": payload,
		})
	}

	req := map[string]any{"points": body}
	return s.doJSON(ctx, op, http.MethodPut, collectionPath(collection, "/points?wait=true"), req, nil)
}

func (s *qdrantStore) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	const op = "delete_by_filter"
	if len(filter) == 0 {
		return opErr(op, OperationErrorValidation, "filter required", nil)
	}
	translated, err := translateFilter(filter)
	if err != nil {
		return err
	}
	req := map[string]any{"filter": translated.asMap()}
	return s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (s *qdrantStore) DeleteIDs(ctx context.Context, collection string, ids []string) error {
	const op = "delete_ids"
	deduped := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	if len(deduped) == 0 {
		return nil
	}

	req := map[string]any{"points": deduped}
	return s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/delete?wait=true"), req, nil)
}

func (s *qdrantStore) Query(ctx context.Context, collection string, vector []float32, topK int, threshold float64, filter map[string]any) ([]vectorstore.Match, error) {
	const op = "query"
	if len(vector) == 0 {
		return nil, opErr(op, OperationErrorValidation, "query vector required", nil)
	}
	if topK <= 0 {
		topK = 10
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  false,
	}
	if threshold > 0 {
		req["score_threshold"] = threshold
	}
	if len(filter) > 0 {
		translated, err := translateFilter(filter)
		if err != nil {
			var opErrTyped *OperationError
			if errors.As(err, &opErrTyped) && opErrTyped.Code == OperationErrorUnsupportedFilter {
				s.log.Warn("qdrant query filter unsupported", "collection", collection, "error", err)
			}
			return nil, err
		}
		req["filter"] = translated.asMap()
	}

	var raw []qdrantScoredPoint
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/search"), req, &raw); err != nil {
		return nil, err
	}

	out := make([]vectorstore.Match, 0, len(raw))
	for _, item := range raw {
		id := decodePointID(item.ID)
		if id == "" {
			continue
		}
		out = append(out, vectorstore.Match{
			ID:      id,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *qdrantStore) FetchByFilter(ctx context.Context, collection string, filter map[string]any, limit int) ([]vectorstore.Point, error) {
	const op = "scroll"
	if limit <= 0 {
		limit = 64
	}
	translated, err := translateFilter(filter)
	if err != nil {
		return nil, err
	}

	req := map[string]any{
		"filter":       translated.asMap(),
		"limit":        limit,
		"with_payload": true,
		"with_vector":  true,
	}
	var result struct {
		Points []qdrantScoredPoint `json:"points"`
	}
	if err := s.doJSON(ctx, op, http.MethodPost, collectionPath(collection, "/points/scroll"), req, &result); err != nil {
		return nil, err
	}

	out := make([]vectorstore.Point, 0, len(result.Points))
	for _, item := range result.Points {
		id := decodePointID(item.ID)
		if id == "" {
			continue
		}
		out = append(out, vectorstore.Point{
			ID:      id,
			Values:  item.Vector,
			Payload: item.Payload,
		})
	}
	return out, nil
}

func (s *qdrantStore) verifyReady(ctx context.Context) error {
	const op = "bootstrap_verify"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/readyz", nil)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build ready request failed", err)
	}
	s.authorize(req)
	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant ready check failed", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant ready check returned status=%d", resp.StatusCode),
		}
	}
	return nil
}

func (s *qdrantStore) doJSON(ctx context.Context, op, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return opErr(op, OperationErrorEncodeFailed, "encode request failed", err)
		}
		body = &buf
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return opErr(op, OperationErrorTransportFailed, "build request failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	s.authorize(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return classifyHTTPCallError(op, "qdrant request failed", err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if readErr != nil {
		return opErr(op, OperationErrorDecodeFailed, "read response failed", readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("qdrant http status=%d body=%q", resp.StatusCode, truncateBody(raw)),
		}
	}

	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant envelope failed", err)
	}
	if statusErr := parseEnvelopeStatus(envelope.Status); statusErr != "" {
		return &OperationError{
			Code:       OperationErrorRequestFailed,
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusErr,
		}
	}

	if out == nil {
		return nil
	}
	if len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return opErr(op, OperationErrorDecodeFailed, "decode qdrant result failed", err)
	}
	return nil
}

func (s *qdrantStore) authorize(req *http.Request) {
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
}

func classifyHTTPCallError(op, message string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return opErr(op, OperationErrorTimeout, message, err)
	}
	return opErr(op, OperationErrorTransportFailed, message, err)
}

func parseEnvelopeStatus(raw json.RawMessage) string {
	status := strings.TrimSpace(string(raw))
	if status == "" || status == "null" {
		return ""
	}

	var statusString string
	if err := json.Unmarshal(raw, &statusString); err == nil {
		if strings.EqualFold(statusString, "ok") || strings.EqualFold(statusString, "acknowledged") {
			return ""
		}
		return fmt.Sprintf("qdrant status=%q", statusString)
	}

	var statusObject struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &statusObject); err == nil {
		if strings.TrimSpace(statusObject.Error) != "" {
			return strings.TrimSpace(statusObject.Error)
		}
	}
	return fmt.Sprintf("qdrant status=%s", status)
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}

func decodePointID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var idString string
	if err := json.Unmarshal(raw, &idString); err == nil {
		return strings.TrimSpace(idString)
	}
	var idNumber int64
	if err := json.Unmarshal(raw, &idNumber); err == nil {
		return fmt.Sprintf("%d", idNumber)
	}
	return strings.TrimSpace(string(raw))
}

func collectionPath(collection, suffix string) string {
	path := "/collections/" + collection
	if strings.TrimSpace(suffix) == "" {
		return path
	}
	return path + suffix
}
