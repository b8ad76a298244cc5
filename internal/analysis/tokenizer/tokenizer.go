// Package tokenizer segments Japanese text into morphemes carrying surface
// form, dictionary base form and part-of-speech features.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/ikawaha/kagome-dict/ipa"
	kagome "github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is one morpheme. POS holds the part-of-speech hierarchy with the
// top-level category first.
type Token struct {
	Surface  string
	BaseForm string
	POS      []string
}

// Tokenizer splits text into tokens. Implementations must be safe for
// concurrent use and deterministic.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// Kagome is a Tokenizer backed by kagome v2 and the IPA dictionary.
type Kagome struct {
	t *kagome.Tokenizer
}

var (
	defaultOnce sync.Once
	defaultTok  *Kagome
	defaultErr  error
)

// NewKagome returns a process-wide shared kagome tokenizer. The IPA
// dictionary is loaded on first use.
func NewKagome() (*Kagome, error) {
	defaultOnce.Do(func() {
		t, err := kagome.New(ipa.Dict(), kagome.OmitBosEos())
		if err != nil {
			defaultErr = fmt.Errorf("loading kagome tokenizer: %w", err)
			return
		}
		defaultTok = &Kagome{t: t}
	})
	return defaultTok, defaultErr
}

// Tokenize segments text in normal mode.
func (k *Kagome) Tokenize(text string) []Token {
	raw := k.t.Tokenize(text)
	out := make([]Token, 0, len(raw))
	for _, tok := range raw {
		base, ok := tok.BaseForm()
		if !ok {
			base = ""
		}
		out = append(out, Token{
			Surface:  tok.Surface,
			BaseForm: base,
			POS:      tok.POS(),
		})
	}
	return out
}

// Func adapts a plain function to the Tokenizer interface.
type Func func(text string) []Token

func (f Func) Tokenize(text string) []Token { return f(text) }
