package util

func AsInt32(i int) int32 {
	if i > 2147483647 {
		return 2147483647
	}
	if i < -2147483648 {
		return -2147483648
	}
	// #nosec G115 - bounded by explicit check
	return int32(i)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Paging is a zero based page request.
type Paging struct {
	Page int
	Size int
}

// NormalizePaging clamps a page request: negative pages become 0, a non positive
// size becomes DefaultPageSize and sizes above MaxPageSize are capped.
func NormalizePaging(page, size int) Paging {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Paging{Page: page, Size: size}
}

// Offset returns the index of the first element of the page.
func (p Paging) Offset() int {
	return p.Page * p.Size
}

// TotalPages returns the number of pages needed for total elements.
func (p Paging) TotalPages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}
