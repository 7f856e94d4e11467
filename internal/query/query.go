// Package query filters and orders annotated items for presentation.
//
// Ordering conventions for items without a usable expiry date:
//   - mhdAsc and mhdDesc place them last in both directions.
//   - daysAsc places them last, daysDesc places them first.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/DaDevFox/task-systems/mhd-core/internal/domain"
)

// SortKey selects the ordering of a query result
type SortKey string

const (
	SortNameAsc  SortKey = "nameAsc"
	SortNameDesc SortKey = "nameDesc"
	SortMHDAsc   SortKey = "mhdAsc"
	SortMHDDesc  SortKey = "mhdDesc"
	SortDaysAsc  SortKey = "daysAsc"
	SortDaysDesc SortKey = "daysDesc"
)

// SortKeys lists every supported key in display order.
var SortKeys = []SortKey{SortNameAsc, SortNameDesc, SortMHDAsc, SortMHDDesc, SortDaysAsc, SortDaysDesc}

// ParseSortKey matches s against SortKeys case-insensitively
func ParseSortKey(s string) (SortKey, error) {
	for _, key := range SortKeys {
		if strings.EqualFold(string(key), strings.TrimSpace(s)) {
			return key, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// Filter restricts a query to one status, or none
type Filter int

const (
	FilterAll Filter = iota
	FilterOK
	FilterSoon
	FilterExpired
)

// ParseFilter accepts "all" or a status name
func ParseFilter(s string) (Filter, error) {
	if strings.EqualFold(strings.TrimSpace(s), "all") || strings.TrimSpace(s) == "" {
		return FilterAll, nil
	}
	status, err := domain.ParseStatus(s)
	if err != nil {
		return FilterAll, err
	}
	return FilterFor(status), nil
}

// FilterFor returns the filter matching exactly status
func FilterFor(status domain.Status) Filter {
	switch status {
	case domain.StatusSoon:
		return FilterSoon
	case domain.StatusExpired:
		return FilterExpired
	default:
		return FilterOK
	}
}

// Matches reports whether status passes the filter
func (f Filter) Matches(status domain.Status) bool {
	switch f {
	case FilterAll:
		return true
	case FilterOK:
		return status == domain.StatusOK
	case FilterSoon:
		return status == domain.StatusSoon
	case FilterExpired:
		return status == domain.StatusExpired
	default:
		return false
	}
}

func (f Filter) String() string {
	switch f {
	case FilterAll:
		return "all"
	case FilterOK:
		return domain.StatusOK.String()
	case FilterSoon:
		return domain.StatusSoon.String()
	case FilterExpired:
		return domain.StatusExpired.String()
	default:
		return fmt.Sprintf("Filter(%d)", int(f))
	}
}

// Engine runs queries with a fixed collation language
type Engine struct {
	tag language.Tag
}

// NewEngine creates an engine comparing names by the rules of tag
func NewEngine(tag language.Tag) *Engine {
	return &Engine{tag: tag}
}

// Query returns the items passing filter and search, ordered by key. The sort is stable
// and the input slice is never modified. An unknown key keeps input order.
func (e *Engine) Query(items []domain.AnnotatedItem, search string, filter Filter, key SortKey) []domain.AnnotatedItem {
	needle := strings.ToLower(strings.TrimSpace(search))

	out := make([]domain.AnnotatedItem, 0, len(items))
	for _, item := range items {
		if filter.Matches(item.Status) && matchesSearch(item.Item, needle) {
			out = append(out, item)
		}
	}

	if compare := e.comparator(key); compare != nil {
		slices.SortStableFunc(out, compare)
	}
	return out
}

func matchesSearch(item domain.Item, needle string) bool {
	if needle == "" {
		return true
	}
	for _, field := range item.SearchableFields() {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (e *Engine) comparator(key SortKey) func(a, b domain.AnnotatedItem) int {
	switch key {
	case SortNameAsc, SortNameDesc:
		// collators keep internal buffers and are not safe for concurrent use
		coll := collate.New(e.tag)
		desc := key == SortNameDesc
		return func(a, b domain.AnnotatedItem) int {
			return direction(coll.CompareString(a.Name, b.Name), desc)
		}
	case SortMHDAsc, SortMHDDesc:
		desc := key == SortMHDDesc
		return func(a, b domain.AnnotatedItem) int {
			return compareExpiry(a.Item, b.Item, desc)
		}
	case SortDaysAsc, SortDaysDesc:
		desc := key == SortDaysDesc
		return func(a, b domain.AnnotatedItem) int {
			return compareDays(a.DaysRemaining, b.DaysRemaining, desc)
		}
	default:
		return nil
	}
}

func direction(c int, desc bool) int {
	if desc {
		return -c
	}
	return c
}

func compareExpiry(a, b domain.Item, desc bool) int {
	ta, okA := domain.ParseDate(a.ExpiryDate)
	tb, okB := domain.ParseDate(b.ExpiryDate)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return 1
	case !okB:
		return -1
	}
	return direction(ta.Compare(tb), desc)
}

func compareDays(a, b domain.DaysRemaining, desc bool) int {
	da, finiteA := a.Days()
	db, finiteB := b.Days()
	switch {
	case !finiteA && !finiteB:
		return 0
	case !finiteA:
		return direction(1, desc)
	case !finiteB:
		return direction(-1, desc)
	}
	return direction(cmp.Compare(da, db), desc)
}
