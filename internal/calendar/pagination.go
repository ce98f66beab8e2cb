package calendar

const defaultPageSize = 10

// PageRequest: номер страницы (с 1) и её размер, как их прислал клиент.
type PageRequest struct {
	Page     int
	PageSize int
}

// Normalize подставляет дефолты вместо некорректных значений.
func (r PageRequest) Normalize() PageRequest {
	if r.PageSize <= 0 {
		r.PageSize = defaultPageSize
	}
	if r.Page <= 0 {
		r.Page = 1
	}
	return r
}

// Offset: сколько элементов пропустить в запросе.
func (r PageRequest) Offset() int {
	n := r.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"` // общее количество элементов, не только на странице
}

// NewPage собирает страницу из уже выбранных items и общего числа строк.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     req.Page,
		PageSize: req.PageSize,
		HasPrev:  req.Page > 1,
		HasNext:  req.Offset()+len(items) < total,
		Total:    total,
	}
}
