package service

import (
	"context"
	"math"

	"ldap-admin/internal/directory"
	"ldap-admin/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// searcher is satisfied by *directory.Session.
type searcher interface {
	Search(ctx context.Context, req directory.SearchRequest) ([]model.DirectoryEntry, error)
}

// SearchParams selects the candidate set of a paginated listing.
type SearchParams struct {
	Base       string
	Filter     string
	Scope      directory.Scope
	Attributes []string
}

// Paginator slices full search results into pages.
type Paginator struct {
	defaultSize int
	maxSize     int
}

func NewPaginator(defaultSize int, maxSize int) Paginator {
	if maxSize <= 0 {
		maxSize = MaxPageSize
	}
	if defaultSize <= 0 || defaultSize > maxSize {
		defaultSize = min(DefaultPageSize, maxSize)
	}

	return Paginator{defaultSize: defaultSize, maxSize: maxSize}
}

// Normalize clamps a requested page: page < 1 becomes 1, a missing (zero) page size
// becomes the default, a negative one becomes 1 and anything above the maximum
// becomes the maximum. page is capped so that its offset fits in an int.
func (p Paginator) Normalize(page int, pageSize int) (int, int) {
	switch {
	case pageSize == 0:
		pageSize = p.defaultSize
	case pageSize < 0:
		pageSize = 1
	case pageSize > p.maxSize:
		pageSize = p.maxSize
	}

	page = max(page, 1)
	page = min(page, math.MaxInt/pageSize)

	return page, pageSize
}

// Paginate runs one search for the whole candidate set and returns the requested
// page of it. The caller owns sess.
func (p Paginator) Paginate(ctx context.Context, sess searcher, params SearchParams, page int, pageSize int) (model.Pagination, []model.DirectoryEntry, error) {
	page, pageSize = p.Normalize(page, pageSize)

	filter := params.Filter
	if filter == "" {
		filter = "(objectClass=*)"
	}

	all, err := sess.Search(ctx, directory.SearchRequest{
		BaseDN:     params.Base,
		Scope:      params.Scope,
		Filter:     filter,
		Attributes: params.Attributes,
	})
	if err != nil {
		return model.Pagination{}, nil, err
	}

	pagination, items := PageOf(all, page, pageSize)
	return pagination, items, nil
}

// PageOf slices items for an already normalized page request.
func PageOf[T any](items []T, page int, pageSize int) (model.Pagination, []T) {
	pagination := model.NewPagination(page, pageSize, len(items))
	start, end := pagination.Bounds()

	out := make([]T, end-start)
	copy(out, items[start:end])
	return pagination, out
}
