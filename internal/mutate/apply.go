package mutate

import (
	"context"
	"strings"
)

type OpKind string

const (
	OpInsert     OpKind = "insert"
	OpDelete     OpKind = "delete"
	OpArchive    OpKind = "archive"
	OpReactivate OpKind = "reactivate"
	OpReorder    OpKind = "reorder"
)

// Op is one order-affecting request in wire form.
type Op struct {
	Kind    OpKind      `json:"kind"`
	ID      int64       `json:"id,omitempty"`
	Order   []int64     `json:"order,omitempty"`
	Article *NewArticle `json:"article,omitempty"`
}

// ParseOpKind accepts the canonical kinds plus "activate".
func ParseOpKind(s string) (OpKind, bool) {
	switch OpKind(strings.ToLower(strings.TrimSpace(s))) {
	case OpInsert:
		return OpInsert, true
	case OpDelete:
		return OpDelete, true
	case OpArchive:
		return OpArchive, true
	case OpReactivate, "activate":
		return OpReactivate, true
	case OpReorder:
		return OpReorder, true
	}
	return "", false
}

// Apply dispatches op to the matching operation.
func (s *Service) Apply(ctx context.Context, op Op) (Result, error) {
	kind, ok := ParseOpKind(string(op.Kind))
	if !ok {
		return Result{}, ValidationError{Field: "kind", Reason: "unknown operation " + string(op.Kind)}
	}
	switch kind {
	case OpInsert:
		if op.Article == nil {
			return Result{}, ValidationError{Field: "article", Reason: "is required"}
		}
		return s.Insert(ctx, *op.Article)
	case OpReorder:
		return s.Reorder(ctx, op.Order)
	}

	if op.ID <= 0 {
		return Result{}, ValidationError{Field: "id", Reason: "is required"}
	}
	switch kind {
	case OpDelete:
		return s.Delete(ctx, op.ID)
	case OpArchive:
		return s.Archive(ctx, op.ID)
	default:
		return s.Reactivate(ctx, op.ID)
	}
}
