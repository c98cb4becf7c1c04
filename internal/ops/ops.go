package ops

// Pagination limits
const (
	DefaultPhotosLimit  = 50
	MaxPhotosLimit      = 500
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// clampPage applies defaults and bounds to limit and offset.
func clampPage(limit, offset, def, maxLimit int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, max(offset, 0)
}

func newPagination(limit, offset, returned, total int) Pagination {
	return Pagination{
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+returned < total,
		Total:   total,
	}
}
