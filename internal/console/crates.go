package console

import (
	"net/url"
	"strconv"

	"github.com/cargoyard/cargoyard/internal/model"
	"github.com/cargoyard/cargoyard/internal/registry"
)

// Pagination is the paging bookkeeping of a crates page.
type Pagination struct {
	Page             int   `json:"page"`
	PerPage          int   `json:"per_page"`
	TotalItems       int64 `json:"total_items"`
	PageCount        int64 `json:"page_count"`
	CurrentPageStart int64 `json:"current_page_start"`
	CurrentPageEnd   int64 `json:"current_page_end"`
	PrevPage         *int  `json:"prev_page"`
	NextPage         *int  `json:"next_page"`
}

// NewPagination computes paging for a page of q out of total items.
func NewPagination(q model.CrateQuery, total int64) Pagination {
	q = q.Normalize()
	p := Pagination{Page: q.Page, PerPage: q.PerPage, TotalItems: total}

	perPage := int64(q.PerPage)
	p.PageCount = (total + perPage - 1) / perPage
	if total > 0 {
		p.CurrentPageStart = int64(q.Offset()) + 1
		p.CurrentPageEnd = min(int64(q.Offset())+perPage, total)
	}
	if q.Page > 1 {
		prev := q.Page - 1
		p.PrevPage = &prev
	}
	if int64(q.Page) < p.PageCount {
		next := q.Page + 1
		p.NextPage = &next
	}
	return p
}

// CratesView is the body of the user's crates page.
type CratesView struct {
	Crates     []model.Crate  `json:"crates"`
	User       *registry.User `json:"user"`
	Meta       CratesMeta     `json:"meta"`
	Pagination Pagination     `json:"pagination"`
}

// CratesMeta carries listing totals.
type CratesMeta struct {
	Total int64 `json:"total"`
}

// crateQueryFromURL reads page and per_page. Both always trigger a fresh
// listing; malformed values fall back to their defaults.
func crateQueryFromURL(values url.Values, userID int64) model.CrateQuery {
	page, _ := strconv.Atoi(values.Get("page"))
	perPage, _ := strconv.Atoi(values.Get("per_page"))
	return model.CrateQuery{
		UserID:        userID,
		IncludeYanked: true,
		Page:          page,
		PerPage:       perPage,
	}.Normalize()
}

func newCratesView(user *registry.User, q model.CrateQuery, page *registry.CratePage) CratesView {
	crates := page.Crates
	if crates == nil {
		crates = []model.Crate{}
	}
	return CratesView{
		Crates:     crates,
		User:       user,
		Meta:       CratesMeta{Total: page.Meta.Total},
		Pagination: NewPagination(q, page.Meta.Total),
	}
}
