package qdrant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Engine-side filters use a small mongo-style operator surface
// ($and/$or/$not at the top level, $eq/$ne/$in per field); everything
// else is rejected as unsupported rather than silently dropped.
const (
	filterOpAnd = "$and"
	filterOpOr  = "$or"
	filterOpNot = "$not"
	filterOpIn  = "$in"
	filterOpEq  = "$eq"
	filterOpNe  = "$ne"
)

type qdrantFilter struct {
	Must    []any
	Should  []any
	MustNot []any
}

func (f qdrantFilter) asMap() map[string]any {
	out := map[string]any{}
	if len(f.Must) > 0 {
		out["must"] = f.Must
	}
	if len(f.Should) > 0 {
		out["should"] = f.Should
	}
	if len(f.MustNot) > 0 {
		out["must_not"] = f.MustNot
	}
	return out
}

func (f *qdrantFilter) merge(other qdrantFilter) {
	f.Must = append(f.Must, other.Must...)
	f.Should = append(f.Should, other.Should...)
	f.MustNot = append(f.MustNot, other.MustNot...)
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func translateFilter(filter map[string]any) (qdrantFilter, error) {
	out := qdrantFilter{}
	if len(filter) == 0 {
		return out, nil
	}

	keys := make([]string, 0, len(filter))
	for key := range filter {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := filter[key]
		k := strings.TrimSpace(key)
		if k == "" {
			continue
		}

		if strings.HasPrefix(k, "$") {
			part, err := translateOperator(k, value)
			if err != nil {
				return qdrantFilter{}, err
			}
			out.merge(part)
			continue
		}

		part, err := translateField(k, value)
		if err != nil {
			return qdrantFilter{}, err
		}
		out.merge(part)
	}
	return out, nil
}

func translateOperator(op string, value any) (qdrantFilter, error) {
	out := qdrantFilter{}
	switch strings.ToLower(op) {
	case filterOpAnd, filterOpOr:
		items, err := toObjectSlice(value)
		if err != nil {
			return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
				fmt.Sprintf("operator %s expects array of objects", op), err)
		}
		for _, item := range items {
			sub, err := translateFilter(item)
			if err != nil {
				return qdrantFilter{}, err
			}
			if op == filterOpAnd {
				out.Must = append(out.Must, sub.asMap())
			} else {
				out.Should = append(out.Should, sub.asMap())
			}
		}
		return out, nil
	case filterOpNot:
		item, ok := value.(map[string]any)
		if !ok {
			return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
				fmt.Sprintf("operator %s expects an object", filterOpNot), nil)
		}
		sub, err := translateFilter(item)
		if err != nil {
			return qdrantFilter{}, err
		}
		out.MustNot = append(out.MustNot, sub.asMap())
		return out, nil
	default:
		return qdrantFilter{}, opErr("filter_translate", OperationErrorUnsupportedFilter,
			fmt.Sprintf("unsupported top-level filter operator %q", op), nil)
	}
}

func translateField(field string, value any) (qdrantFilter, error) {
	out := qdrantFilter{}

	ops, isOperatorMap := value.(map[string]any)
	if !isOperatorMap {
		scalar, ok := toScalar(value)
		if !ok {
			return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
				fmt.Sprintf("field %q expects scalar value or operator object", field), nil)
		}
		out.Must = append(out.Must, matchCondition(field, scalar))
		return out, nil
	}

	if len(ops) == 0 {
		return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
			fmt.Sprintf("field %q has empty operator map", field), nil)
	}

	names := make([]string, 0, len(ops))
	for op := range ops {
		names = append(names, op)
	}
	sort.Strings(names)

	for _, op := range names {
		opVal := ops[op]
		switch strings.ToLower(strings.TrimSpace(op)) {
		case filterOpEq:
			scalar, ok := toScalar(opVal)
			if !ok {
				return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpEq, field), nil)
			}
			out.Must = append(out.Must, matchCondition(field, scalar))
		case filterOpNe:
			scalar, ok := toScalar(opVal)
			if !ok {
				return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects scalar value", filterOpNe, field), nil)
			}
			out.MustNot = append(out.MustNot, matchCondition(field, scalar))
		case filterOpIn:
			values, err := toScalarSlice(opVal)
			if err != nil || len(values) == 0 {
				return qdrantFilter{}, opErr("filter_translate", OperationErrorValidation,
					fmt.Sprintf("operator %s for field %q expects non-empty scalar array", filterOpIn, field), err)
			}
			out.Must = append(out.Must, map[string]any{
				"key":   field,
				"match": map[string]any{"any": values},
			})
		default:
			return qdrantFilter{}, opErr("filter_translate", OperationErrorUnsupportedFilter,
				fmt.Sprintf("unsupported filter operator %q for field %q", op, field), nil)
		}
	}
	return out, nil
}

func toObjectSlice(value any) ([]map[string]any, error) {
	rawSlice, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected []any, got %T", value)
	}
	out := make([]map[string]any, 0, len(rawSlice))
	for _, item := range rawSlice {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map[string]any in array, got %T", item)
		}
		out = append(out, obj)
	}
	return out, nil
}

func toScalarSlice(value any) ([]any, error) {
	switch typed := value.(type) {
	case []any:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			scalar, ok := toScalar(v)
			if !ok {
				return nil, fmt.Errorf("expected scalar, got %T", v)
			}
			out = append(out, scalar)
		}
		return out, nil
	case []string:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []int64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	case []float64:
		out := make([]any, 0, len(typed))
		for _, v := range typed {
			out = append(out, v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected scalar array, got %T", value)
	}
}

func toScalar(value any) (any, bool) {
	switch typed := value.(type) {
	case string, bool, int, int64, uint, uint64, float64:
		return typed, true
	case int8:
		return int(typed), true
	case int16:
		return int(typed), true
	case int32:
		return int(typed), true
	case uint8:
		return uint(typed), true
	case uint16:
		return uint(typed), true
	case uint32:
		return uint(typed), true
	case float32:
		return float64(typed), true
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			return i, true
		}
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
		return nil, false
	default:
		return nil, false
	}
}
