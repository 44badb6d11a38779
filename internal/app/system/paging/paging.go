// internal/app/system/paging/paging.go
package paging

import (
	"net/http"
	"strconv"

	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Page sizes used across list endpoints.
const (
	// DefaultLimit is the page size for public lists (NGOs, events).
	DefaultLimit = 10
	// AdminDefaultLimit is the page size for admin lists (users, audit).
	AdminDefaultLimit = 50
	// MaxLimit caps any requested page size.
	MaxLimit = 100
)

// Params is a 1-based page request.
type Params struct {
	Page  int
	Limit int
}

// Meta is the pagination block returned with every list.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Result is the {data, pagination} envelope for list responses.
type Result[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

// NewResult wraps rows with their page metadata. A nil slice is returned
// as an empty JSON array.
func NewResult[T any](rows []T, p Params, total int64) Result[T] {
	if rows == nil {
		rows = []T{}
	}
	return Result[T]{Data: rows, Pagination: Meta{Page: p.Page, Limit: p.Limit, Total: total}}
}

// Parse reads "page" and "limit" from the query string. Missing or invalid
// values fall back to page 1 and defaultLimit; limit is capped at MaxLimit.
func Parse(r *http.Request, defaultLimit int) Params {
	return Normalize(atoi(query.Get(r, "page")), atoi(query.Get(r, "limit")), defaultLimit)
}

// Normalize clamps page and limit to valid values.
func Normalize(page, limit, defaultLimit int) Params {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Page: page, Limit: limit}
}

// Skip returns the number of documents before this page.
func (p Params) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

// Apply sets skip and limit on find options.
func (p Params) Apply(find *options.FindOptions) *options.FindOptions {
	return find.SetSkip(p.Skip()).SetLimit(int64(p.Limit))
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
