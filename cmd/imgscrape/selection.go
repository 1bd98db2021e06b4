package main

import (
	"fmt"
	"strconv"
	"strings"
)

func isAll(spec string) bool {
	return strings.EqualFold(strings.TrimSpace(spec), "all")
}

// parseSelection expands a --select value into 1-based image numbers, in
// the order given. spec is "all" or a comma separated list of numbers and
// inclusive ranges ("1,3-5"). Every number must lie in [1, total].
func parseSelection(spec string, total int) ([]int, error) {
	if isAll(spec) {
		numbers := make([]int, total)
		for i := range numbers {
			numbers[i] = i + 1
		}
		return numbers, nil
	}

	var numbers []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseNumber(lo, total)
		if err != nil {
			return nil, err
		}
		last := first
		if isRange {
			if last, err = parseNumber(hi, total); err != nil {
				return nil, err
			}
			if last < first {
				return nil, fmt.Errorf("invalid range %q", part)
			}
		}
		for n := first; n <= last; n++ {
			numbers = append(numbers, n)
		}
	}

	if len(numbers) == 0 {
		return nil, fmt.Errorf("empty selection %q", spec)
	}
	return numbers, nil
}

func parseNumber(s string, total int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid image number %q", s)
	}
	if n < 1 || n > total {
		return 0, fmt.Errorf("image number %d out of range 1-%d", n, total)
	}
	return n, nil
}
