package model

import "time"

// Crate is a published package and its listing metadata.
type Crate struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Downloads   int64     `json:"downloads"`
	MaxVersion  string    `json:"max_version"`
	Keywords    []string  `json:"keywords"`
	Yanked      bool      `json:"yanked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Pagination limits for crate listings.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
	// MaxPage keeps (Page-1)*PerPage well inside a 32-bit offset.
	MaxPage = 1_000_000
)

// CrateQuery filters a crate listing.
type CrateQuery struct {
	UserID        int64
	IncludeYanked bool
	Page          int
	PerPage       int
}

// Normalize clamps paging values into their valid ranges.
func (q CrateQuery) Normalize() CrateQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.PerPage < 1 {
		q.PerPage = DefaultPerPage
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}
	return q
}

// Offset returns the row offset for the query's page.
func (q CrateQuery) Offset() int {
	q = q.Normalize()
	return (q.Page - 1) * q.PerPage
}

// CratePage is one page of a crate listing.
type CratePage struct {
	Crates []*Crate
	Total  int64
}
