package utils

import "github.com/gofiber/fiber/v2"

const maxPageLimit = 100

// Page is the window a list endpoint reads from ?page= and ?limit=.
type Page struct {
	Number int
	Limit  int
}

// ParsePage falls back to page 1 and defaultLimit on missing or bad input
// and caps the limit at maxPageLimit.
func ParsePage(c *fiber.Ctx, defaultLimit int) Page {
	p := Page{Number: c.QueryInt("page", 1), Limit: c.QueryInt("limit", defaultLimit)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p
}

func (p Page) Offset() int { return (p.Number - 1) * p.Limit }

type PageInfo struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"lastPage"`
}

type Paged[T any] struct {
	Data       []T      `json:"data"`
	Pagination PageInfo `json:"pagination"`
}

func NewPaged[T any](items []T, p Page, total int64) Paged[T] {
	return Paged[T]{
		Data: items,
		Pagination: PageInfo{
			Page:     p.Number,
			Limit:    p.Limit,
			Total:    total,
			LastPage: int((total + int64(p.Limit) - 1) / int64(p.Limit)),
		},
	}
}
