package predefine

import (
	"math"
	"strings"
	"time"
)

// Query limits.
const (
	DefaultLimit = 10
	MaxLimit     = 1000
)

// SortFields are the fields a list may be sorted on.
var SortFields = map[string]bool{
	"weight":    true,
	"code":      true,
	"namespace": true,
	"bucket":    true,
	"createdAt": true,
	"updatedAt": true,
}

// Query selects a page of live documents.
type Query struct {
	Bucket    string
	Namespace string
	Code      string
	Q         string
	Sort      string
	Limit     int
	Skip      int
	Page      int
	Select    []string
	Populate  bool
}

// Normalize applies defaults and validates the query.
// Skip wins over page when both are set; page is 1-based.
func (q Query) Normalize() (Query, error) {
	verr := &ValidationError{}

	switch {
	case q.Limit <= 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}

	if q.Skip < 0 {
		verr.Add("skip", "must not be negative")
	}
	if q.Page < 0 {
		verr.Add("page", "must not be negative")
	}
	if q.Skip == 0 && q.Page > 1 {
		if q.Page-1 > math.MaxInt/q.Limit {
			verr.Add("page", "is too large")
			q.Page = 1
		} else {
			q.Skip = (q.Page - 1) * q.Limit
		}
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	q.Page = q.Skip/q.Limit + 1

	if q.Sort != "" {
		if !SortFields[strings.TrimPrefix(q.Sort, "-")] {
			verr.Add("sort", "unsupported sort field "+q.Sort)
		}
	}

	q.Q = strings.TrimSpace(q.Q)
	return q, verr.OrNil()
}

// SortField returns the sort field and whether it is descending.
// Lists without a sort are ordered by weight, then code.
func (q Query) SortField() (field string, desc bool) {
	if q.Sort == "" {
		return "weight", false
	}
	if strings.HasPrefix(q.Sort, "-") {
		return q.Sort[1:], true
	}
	return q.Sort, false
}

// Page is one page of a list result.
type Page struct {
	Data         []Document `json:"data"`
	Total        int        `json:"total"`
	Size         int        `json:"size"`
	Limit        int        `json:"limit"`
	Skip         int        `json:"skip"`
	Page         int        `json:"page"`
	Pages        int        `json:"pages"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

// NewPage builds a page from the normalized query and the matched documents.
func NewPage(q Query, docs []Document, total int, lastModified *time.Time) Page {
	if docs == nil {
		docs = []Document{}
	}
	pages := 0
	if q.Limit > 0 {
		pages = (total + q.Limit - 1) / q.Limit
	}
	return Page{
		Data:         docs,
		Total:        total,
		Size:         len(docs),
		Limit:        q.Limit,
		Skip:         q.Skip,
		Page:         q.Page,
		Pages:        pages,
		LastModified: lastModified,
	}
}
