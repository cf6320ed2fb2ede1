package pipeline

import (
	"strconv"
	"strings"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// ParsePages parses a page selection such as "1-3,7,10-" against a document
// of pageCount pages. An empty selection or "all" selects every page. Ranges
// are inclusive; an open range runs to the last page.
func ParsePages(ranges string, pageCount int) ([]int, error) {
	ranges = strings.TrimSpace(ranges)
	if ranges == "" || strings.EqualFold(ranges, "all") {
		pages := make([]int, pageCount)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages, apperr.ValidatePages(pages, pageCount)
	}

	var pages []int
	for _, part := range strings.Split(ranges, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRange(part, pageCount)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			pages = append(pages, p)
		}
	}
	if err := apperr.ValidatePages(pages, pageCount); err != nil {
		return nil, err
	}
	return pages, nil
}

func parseRange(part string, pageCount int) (lo, hi int, err error) {
	from, to, isRange := strings.Cut(part, "-")
	if lo, err = parsePage(from); err != nil {
		return 0, 0, err
	}
	if !isRange {
		return lo, lo, nil
	}
	if strings.TrimSpace(to) == "" {
		hi = pageCount
	} else if hi, err = parsePage(to); err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, apperr.New(apperr.ErrCodeInvalidPages, "invalid page range %q", part)
	}
	return lo, hi, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, apperr.New(apperr.ErrCodeInvalidPages, "invalid page number %q", s)
	}
	return n, nil
}
