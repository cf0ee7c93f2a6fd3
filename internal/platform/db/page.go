package db

import "strconv"

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

// Normalize は未指定・不正値を既定値に寄せる。Order の既定は asc（登録順）。
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "desc" {
		p.Order = "asc"
	}
	return p
}

// NextOffset は次ページの offset を返す。0=終端
func NextOffset(p Page, total int64) int {
	p = p.Normalize()
	next := p.Offset + p.Limit
	if next >= int(total) {
		next = 0
	}
	return next
}

// ParsePage は ?limit=&offset=&order= の文字列から Page を作る。数値でなければ既定値。
func ParsePage(limit, offset, order string) Page {
	return Page{
		Limit:  parseIntDefault(limit, DefaultLimit),
		Offset: parseIntDefault(offset, 0),
		Order:  order,
	}.Normalize()
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
