package pagination

type Pagination struct {
	Limit  int `form:"limit,default=50"`
	Offset int `form:"offset"`
}

// Clamp normalizes the page window. Min 1, max 250.
func (p Pagination) Clamp() Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 250 {
		p.Limit = 250
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
