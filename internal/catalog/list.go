package catalog

import (
	"net/url"
	"sort"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-gateway/pkg/errors"
	"github.com/angelmondragon/storefront-gateway/pkg/types"
)

// SortKey orders a product listing.
type SortKey string

const (
	SortNone       SortKey = ""
	SortPriceAsc   SortKey = "price-asc"
	SortPriceDesc  SortKey = "price-desc"
	SortRatingDesc SortKey = "rating-desc"
)

// ProductServlet filter values for the orders it applies itself.
var servletFilters = map[SortKey]string{
	SortPriceAsc:  "low-high",
	SortPriceDesc: "high-low",
}

// ListFilter describes the browse knobs.
type ListFilter struct {
	Category string  `json:"category,omitempty"`
	Query    string  `json:"query,omitempty"`
	Sort     SortKey `json:"sort,omitempty"`
}

func (f ListFilter) normalized() (ListFilter, error) {
	f.Category = strings.TrimSpace(f.Category)
	f.Query = strings.TrimSpace(f.Query)
	f.Sort = SortKey(strings.ToLower(strings.TrimSpace(string(f.Sort))))
	switch f.Sort {
	case SortNone, SortPriceAsc, SortPriceDesc, SortRatingDesc:
		return f, nil
	default:
		return f, pkgerrors.New(pkgerrors.CodeValidation, "sort must be one of price-asc, price-desc, rating-desc")
	}
}

// query maps the filter onto ProductServlet parameters.
func (f ListFilter) query() url.Values {
	q := url.Values{}
	if f.Category != "" {
		q.Set("category_id", f.Category)
	}
	if f.Query != "" {
		q.Set("query", f.Query)
	}
	if v, ok := servletFilters[f.Sort]; ok {
		q.Set("filter", v)
	}
	return q
}

// sortByRating orders products best rated first, keeping the servlet's order for ties.
func sortByRating(products []types.Product) {
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Rating > products[j].Rating
	})
}
