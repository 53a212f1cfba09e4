package sqlbuild

import (
	"fmt"
	"strings"
)

// IndexRange selects [Start, End). A negative End is unbounded.
type IndexRange struct {
	Start int
	End   int
}

// Range returns an IndexRange for [start, end)
func Range(start, end int) *IndexRange {
	return &IndexRange{Start: start, End: end}
}

type Order int

const (
	// OrderNone picks the query's natural direction: ascending for
	// library pages, newest first for history
	OrderNone Order = iota
	OrderAsc
	OrderDesc
)

func (o Order) sql() string {
	switch o {
	case OrderAsc:
		return "ASC"
	case OrderDesc:
		return "DESC"
	}
	return ""
}

// ParseOrder reads "asc", "desc" or an empty string
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "":
		return OrderNone, nil
	case "asc":
		return OrderAsc, nil
	case "desc":
		return OrderDesc, nil
	}
	return OrderNone, fmt.Errorf("%w: unknown order %q", ErrInvalidArgument, s)
}

type OrderBy int

const (
	OrderByAddedAt OrderBy = iota
	OrderByName
)

// ParseOrderBy reads "addedAt", "name" or an empty string
func ParseOrderBy(s string) (OrderBy, error) {
	switch strings.ToLower(s) {
	case "", "addedat":
		return OrderByAddedAt, nil
	case "name":
		return OrderByName, nil
	}
	return OrderByAddedAt, fmt.Errorf("%w: unknown order field %q", ErrInvalidArgument, s)
}

// Options controls how a Batch writes collections
type Options struct {
	// UpdateVersionID overwrites the stored versionId instead of keeping it
	UpdateVersionID bool
}

type LibraryItemSelectOptions struct {
	LibraryProvider string
	Range           *IndexRange
	Order           Order
	OrderBy         OrderBy
}

type HistorySelectOptions struct {
	Range *IndexRange
	// Order defaults to newest first
	Order Order
}

// limitClause renders LIMIT/OFFSET for r. An unbounded end with an
// offset uses LIMIT -1.
func limitClause(r *IndexRange) (string, []any) {
	if r == nil {
		return "", nil
	}
	start := max(r.Start, 0)
	if r.End >= 0 {
		count := max(r.End-start, 0)
		if start > 0 {
			return " LIMIT ? OFFSET ?", []any{count, start}
		}
		return " LIMIT ?", []any{count}
	}
	if start > 0 {
		return " LIMIT -1 OFFSET ?", []any{start}
	}
	return "", nil
}
