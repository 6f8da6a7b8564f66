package rollup

import (
	"sort"
	"strings"
	"unicode"
)

const topKeywordLimit = 20

// tokenize splits text into lower-cased whitespace tokens, dropping tokens
// shorter than three characters and any token with non-ASCII characters.
func tokenize(text string) []string {
	var out []string
	for _, tok := range strings.Fields(text) {
		tok = strings.ToLower(tok)
		if len(tok) <= 2 || !isASCII(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isASCII(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// mergeTopKeywords folds the tokens of one message into a profile's stored
// top-keyword list and returns the new top 20.
//
// The stored list is the only history we keep: each stored keyword re-enters
// the frequency table at weight 1, so a word that fell out of a past top-20
// has permanently lost its count. Ties break by insertion order (stored
// keywords first, then first occurrence in the new text). Lossy on purpose;
// do not replace with an exact frequency index.
func mergeTopKeywords(stored []string, text string) []string {
	type entry struct {
		word  string
		count int
	}
	var order []entry
	index := map[string]int{}

	bump := func(w string) {
		if i, ok := index[w]; ok {
			order[i].count++
			return
		}
		index[w] = len(order)
		order = append(order, entry{word: w, count: 1})
	}

	for _, w := range stored {
		bump(w)
	}
	for _, w := range tokenize(text) {
		bump(w)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].count > order[j].count
	})

	n := min(len(order), topKeywordLimit)
	out := make([]string, n)
	for i := range n {
		out[i] = order[i].word
	}
	return out
}
