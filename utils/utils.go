package utils

// TotalPages returns ceil(total/limit). A non-positive limit yields zero pages.
func TotalPages(total int64, limit int) int64 {
	if limit <= 0 || total <= 0 {
		return 0
	}
	l := int64(limit)
	return (total + l - 1) / l
}

// Offset returns the number of items preceding a 1-based page.
func Offset(page, limit int) int64 {
	if page <= 1 || limit <= 0 {
		return 0
	}
	return int64(page-1) * int64(limit)
}
