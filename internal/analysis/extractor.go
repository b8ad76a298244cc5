// Package analysis turns article titles into a ranked table of noun
// frequencies.
package analysis

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/Adithya-Monish-Kumar-K/Title-Trend-Analytics/internal/analysis/tokenizer"
)

const nounPOS = "名詞"

// allowed spans the Hiragana and Katakana blocks (ー and ・ included), the CJK
// Unified Ideographs block and ASCII letters. The iteration mark 々 sits
// outside these blocks and is rejected.
var allowed = regexp.MustCompile(`^[\x{3040}-\x{30FF}\x{4E00}-\x{9FFF}a-zA-Z]+$`)

// Frequencies maps a noun's base form to its occurrence count.
type Frequencies map[string]int

// Extractor counts qualifying nouns across titles.
type Extractor struct {
	tok tokenizer.Tokenizer
}

// NewExtractor wraps tok.
func NewExtractor(tok tokenizer.Tokenizer) *Extractor {
	return &Extractor{tok: tok}
}

// Analyze tokenizes every non-empty title after NFKC normalization and
// counts the base forms of the nouns that pass Qualifies.
func (e *Extractor) Analyze(titles []string) Frequencies {
	freq := make(Frequencies)
	for _, title := range titles {
		title = norm.NFKC.String(title)
		if title == "" {
			continue
		}
		for _, tok := range e.tok.Tokenize(title) {
			if len(tok.POS) == 0 || tok.POS[0] != nounPOS {
				continue
			}
			key := tok.BaseForm
			if key == "" || key == "*" {
				key = tok.Surface
			}
			if Qualifies(key) {
				freq[key]++
			}
		}
	}
	return freq
}

// Qualifies reports whether key may appear in a table: longer than one code
// point, longer than two if hiragana only, not numeric, and drawn only from
// kana, kanji and Latin letters.
func Qualifies(key string) bool {
	n := utf8.RuneCountInString(key)
	if n <= 1 {
		return false
	}
	if isHiragana(key) && n <= 2 {
		return false
	}
	if isNumeric(key) {
		return false
	}
	return allowed.MatchString(key)
}

func isHiragana(s string) bool {
	for _, r := range s {
		if r < 0x3040 || r > 0x309F {
			return false
		}
	}
	return s != ""
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}
