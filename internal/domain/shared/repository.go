package shared

const (
	defaultPageSize = 20
	defaultOrderBy  = "created_at"
)

// Filter is the paging, ordering and free-text part of a list query.
// Page is 1-based.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

// DefaultFilter is the first page of 20, newest first
func DefaultFilter() Filter {
	return Filter{Page: 1, PageSize: defaultPageSize, OrderBy: defaultOrderBy, OrderDir: "desc"}
}

// Normalize replaces missing paging values and caps PageSize at maxPageSize
// when it is positive
func (f Filter) Normalize(maxPageSize int) Filter {
	f.Page = max(f.Page, 1)
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if maxPageSize > 0 {
		f.PageSize = min(f.PageSize, maxPageSize)
	}
	return f
}

// Offset is the number of rows before the current page
func (f Filter) Offset() int {
	return max(f.Page-1, 0) * f.PageSize
}

// Paginated is one page of a list result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated wraps items with the paging totals
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	pageSize = max(pageSize, 1)
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}
