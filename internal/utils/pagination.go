// Package utils holds query-string parsing helpers shared by the handlers.
package utils

import (
	"strconv"
	"strings"
)

// AtoiDefault parses s as a base-10 int, ignoring surrounding whitespace.
// Empty or malformed input yields def.
func AtoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi].
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// PageParams parses page and page_size values, applying defaults and
// keeping page >= 1 and 1 <= pageSize <= maxSize.
func PageParams(pageRaw, sizeRaw string, defSize, maxSize int) (page, pageSize int) {
	page = AtoiDefault(pageRaw, 1)
	if page < 1 {
		page = 1
	}
	pageSize = Clamp(AtoiDefault(sizeRaw, defSize), 1, maxSize)
	return page, pageSize
}
