package recommend

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxKeywords   = 5
	minKeywordLen = 4
	maxExcerpt    = 200
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

var stopwords = toSet(`the a an and or but in on at to for of with by from as is was are were be
been being have has had do does did will would could should may might must can this
that these those i you he she it we they using based via through over under between among
our ours ourselves your yours yourself yourselves him his himself her hers herself its itself
them their theirs themselves what which who whom whose where when why how all each few more
most other some such no nor not only own same so than too very just now also new novel
proposed approach method methods algorithm algorithms model models system systems framework
frameworks technique techniques`)

func toSet(words string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(words) {
		out[w] = true
	}
	return out
}

// Keywords returns up to five of the most frequent content words in text,
// ties broken by first occurrence.
func Keywords(text string) []string {
	words := strings.Fields(nonWord.ReplaceAllString(strings.ToLower(text), " "))

	freq := make(map[string]int)
	var order []string
	for _, w := range words {
		if utf8.RuneCountInString(w) < minKeywordLen || stopwords[w] || !alpha(w) {
			continue
		}
		if freq[w] == 0 {
			order = append(order, w)
		}
		freq[w]++
	}

	sort.SliceStable(order, func(i, j int) bool { return freq[order[i]] > freq[order[j]] })
	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}

func alpha(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Excerpt shortens an abstract to at most 200 characters, cutting at a
// word boundary and marking the cut with "...".
func Excerpt(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= maxExcerpt {
		return s
	}
	cut := string([]rune(s)[:maxExcerpt])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut + "..."
}
