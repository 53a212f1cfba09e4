package dto

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cesargomez89/mediacache/internal/sqlbuild"
)

// MaxStateKeyLength bounds DBState keys accepted over HTTP
const MaxStateKeyLength = 128

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func parseIndex(q url.Values, field string, def int) (int, []ValidationError) {
	raw := q.Get(field)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, []ValidationError{{Field: field, Message: "must be an integer"}}
	}
	return n, nil
}

// ParseRange reads start and end query parameters. A missing end, or -1,
// is unbounded. ok is false when neither parameter was given.
func ParseRange(q url.Values) (r *sqlbuild.IndexRange, ok bool, errs []ValidationError) {
	start, e := parseIndex(q, "start", 0)
	errs = append(errs, e...)
	end, e := parseIndex(q, "end", -1)
	errs = append(errs, e...)
	if len(errs) > 0 {
		return nil, false, errs
	}
	if start < 0 {
		errs = append(errs, ValidationError{Field: "start", Message: "must not be negative"})
	}
	if end < -1 {
		errs = append(errs, ValidationError{Field: "end", Message: "must be -1 or greater"})
	}
	if end >= 0 && end < start {
		errs = append(errs, ValidationError{Field: "end", Message: "must not be before start"})
	}
	if len(errs) > 0 {
		return nil, false, errs
	}
	given := q.Has("start") || q.Has("end")
	return sqlbuild.Range(start, end), given, nil
}

// ParseLibraryQuery reads provider, start, end, order and orderBy
func ParseLibraryQuery(q url.Values) (sqlbuild.LibraryItemSelectOptions, []ValidationError) {
	opts := sqlbuild.LibraryItemSelectOptions{LibraryProvider: q.Get("provider")}
	r, given, errs := ParseRange(q)
	if given {
		opts.Range = r
	}
	order, err := sqlbuild.ParseOrder(q.Get("order"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "order", Message: "must be 'asc' or 'desc'"})
	}
	opts.Order = order
	orderBy, err := sqlbuild.ParseOrderBy(q.Get("orderBy"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "orderBy", Message: "must be 'addedAt' or 'name'"})
	}
	opts.OrderBy = orderBy
	return opts, errs
}

// ParseHistoryQuery reads start, end and order
func ParseHistoryQuery(q url.Values) (sqlbuild.HistorySelectOptions, []ValidationError) {
	var opts sqlbuild.HistorySelectOptions
	r, given, errs := ParseRange(q)
	if given {
		opts.Range = r
	}
	order, err := sqlbuild.ParseOrder(q.Get("order"))
	if err != nil {
		errs = append(errs, ValidationError{Field: "order", Message: "must be 'asc' or 'desc'"})
	}
	opts.Order = order
	return opts, errs
}

func ValidateStateKey(key string) []ValidationError {
	var errs []ValidationError
	switch {
	case strings.TrimSpace(key) == "":
		errs = append(errs, ValidationError{Field: "key", Message: "is required"})
	case len(key) > MaxStateKeyLength:
		errs = append(errs, ValidationError{Field: "key", Message: fmt.Sprintf("must be at most %d characters", MaxStateKeyLength)})
	}
	return errs
}
