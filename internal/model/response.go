package model

import "math"

type APIError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// Pagination describes one page of a larger ordered result set.
type Pagination struct {
	CurrentPage     int  `json:"currentPage"`
	PageSize        int  `json:"pageSize"`
	TotalCount      int  `json:"totalCount"`
	TotalPages      int  `json:"totalPages"`
	HasNextPage     bool `json:"hasNextPage"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	StartIndex      int  `json:"startIndex"`
	EndIndex        int  `json:"endIndex"`
}

// NewPagination computes page metadata. currentPage and pageSize must already be
// normalized (both at least 1).
func NewPagination(currentPage int, pageSize int, totalCount int) Pagination {
	totalPages := 0
	if totalCount > 0 {
		totalPages = (totalCount + pageSize - 1) / pageSize
	}

	// Pages whose offset would overflow lie past any real result set.
	start, end := totalCount, totalCount
	if currentPage-1 <= (math.MaxInt-pageSize)/pageSize {
		start = (currentPage - 1) * pageSize
		end = min(start+pageSize, totalCount)
	}

	return Pagination{
		CurrentPage:     currentPage,
		PageSize:        pageSize,
		TotalCount:      totalCount,
		TotalPages:      totalPages,
		HasNextPage:     currentPage < totalPages,
		HasPreviousPage: currentPage > 1,
		StartIndex:      start,
		EndIndex:        end,
	}
}

// Bounds returns the slice bounds of the page inside a result set of TotalCount items.
// A page past the end yields an empty range.
func (p Pagination) Bounds() (int, int) {
	start := p.StartIndex
	if start > p.TotalCount {
		start = p.TotalCount
	}
	end := p.EndIndex
	if end < start {
		end = start
	}
	return start, end
}
