package pagination

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Pagination 分页参数，Page 从 1 开始
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// New 规范化页码和每页条数
func New(page, limit int) Pagination {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = 1
	}
	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// Result 是分页查询的返回
type Result[T any] struct {
	Items []T
	Total int64
	Page  int
	Limit int
}
