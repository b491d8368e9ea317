package library

import (
	"fmt"
	"strconv"
	"strings"
)

// PageRange selects pages by 1-based inclusive bounds. A zero Start means the
// first page and a zero End means the last one.
type PageRange struct {
	Start int
	End   int
}

// ParsePageRange accepts "" (all pages), "N" or "A-B".
func ParsePageRange(s string) (PageRange, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PageRange{}, nil
	}

	if from, to, ok := strings.Cut(s, "-"); ok {
		start, err := parsePage(from)
		if err != nil {
			return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
		}

		end, err := parsePage(to)
		if err != nil {
			return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
		}

		return PageRange{Start: start, End: end}, nil
	}

	page, err := parsePage(s)
	if err != nil {
		return PageRange{}, fmt.Errorf("%w: %q", ErrInvalidPageRange, s)
	}

	return PageRange{Start: page, End: page}, nil
}

func parsePage(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("page %d is not positive", n)
	}

	return n, nil
}

func (r PageRange) String() string {
	switch {
	case r.Start == 0 && r.End == 0:
		return ""
	case r.Start == r.End:
		return strconv.Itoa(r.Start)
	default:
		return fmt.Sprintf("%d-%d", r.Start, r.End)
	}
}

// bounds resolves the range against a document with count pages.
func (r PageRange) bounds(count int) (int, int, error) {
	if r == (PageRange{}) && count == 0 {
		return 1, 0, nil
	}

	start, end := r.Start, r.End
	if start == 0 {
		start = 1
	}
	if end == 0 {
		end = count
	}

	if start < 1 || end < start || end > count {
		return 0, 0, fmt.Errorf("%w: pages %d-%d of a document with %d pages", ErrInvalidPageRange, start, end, count)
	}

	return start, end, nil
}
