package analysis

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords are generic title words that carry no topic signal.
var DefaultStopwords = []string{
	"する", "できる", "なる", "ある", "いる",
	"こと", "よう", "ため",
	"紹介", "解説", "入門", "まとめ", "完全", "徹底", "超", "便利",
	"記事", "方法", "対応", "環境", "設定", "解決", "問題",
	"みる", "られる", "れる", "せる", "てる", "でき", "され",
}

// StopwordSet holds words excluded from a table regardless of count.
type StopwordSet map[string]struct{}

// NewStopwordSet unions the defaults, the comma-separated configured list
// and the given selector terms. Terms are stored both as given and in NFKC
// form so they match normalized keys.
func NewStopwordSet(configured string, terms ...string) StopwordSet {
	set := make(StopwordSet, len(DefaultStopwords)+len(terms))
	for _, w := range DefaultStopwords {
		set.add(w)
	}
	for _, w := range strings.Split(configured, ",") {
		set.add(w)
	}
	for _, w := range terms {
		set.add(w)
	}
	return set
}

func (s StopwordSet) add(w string) {
	w = strings.TrimSpace(w)
	if w == "" {
		return
	}
	s[w] = struct{}{}
	s[norm.NFKC.String(w)] = struct{}{}
}

// Contains reports whether w is a stopword.
func (s StopwordSet) Contains(w string) bool {
	_, ok := s[w]
	return ok
}
