package catalog

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Book struct {
	ID     string
	Title  string
	Author string
	ISBN   string
}

// BookFilter は部分一致検索の条件。空のフィールドは条件に含めない（全フィールド AND）。
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
}

func (f BookFilter) IsEmpty() bool {
	return strings.TrimSpace(f.Title) == "" &&
		strings.TrimSpace(f.Author) == "" &&
		strings.TrimSpace(f.ISBN) == ""
}

// Matches は Store.Search と同じ条件をメモリ上で評価する。
func (f BookFilter) Matches(b Book) bool {
	return containsFold(b.Title, f.Title) &&
		containsFold(b.Author, f.Author) &&
		containsFold(b.ISBN, f.ISBN)
}

// Fold は大文字小文字を無視した比較用に正規化する。
// Caser は状態を持つので呼び出しごとに作る。
func Fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func containsFold(value, term string) bool {
	term = Fold(term)
	if term == "" {
		return true
	}
	return strings.Contains(Fold(value), term)
}

// LikePattern は LIKE ... ESCAPE '!' 用の部分一致パターンを作る。
func LikePattern(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(Fold(term)) + "%"
}
