package analysis

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"github.com/nao1215/sitemapper/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultKeywordCount is how many site-wide keywords are extracted.
const DefaultKeywordCount = 10

// tokenize lower-cases text and splits it into runs of letters and digits.
// Tokens shorter than two runes are dropped.
func tokenize(text string) []string {
	lower := cases.Lower(language.English).String(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// ExtractKeywords ranks the terms of docs by their summed TF-IDF weight and
// returns the top n. Stop words are ignored. Fewer than two distinct
// documents carry no contrast, so the result is empty in that case.
func ExtractKeywords(docs []string, n int) []string {
	distinct := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		distinct[d] = struct{}{}
	}
	if len(distinct) < 2 || n <= 0 {
		return []string{}
	}

	termFreqs := make([]map[string]int, 0, len(docs))
	docFreq := make(map[string]int)
	for _, d := range docs {
		tf := make(map[string]int)
		for _, tok := range tokenize(d) {
			if isStopWord(tok) {
				continue
			}
			tf[tok]++
		}
		for term := range tf {
			docFreq[term]++
		}
		termFreqs = append(termFreqs, tf)
	}

	// Smoothed IDF: ln((1+N)/(1+df)) + 1, and each document vector is
	// L2-normalized before summing.
	total := float64(len(docs))
	scores := make(map[string]float64, len(docFreq))
	for _, tf := range termFreqs {
		weights := make(map[string]float64, len(tf))
		var norm float64
		for term, count := range tf {
			idf := math.Log((1+total)/(1+float64(docFreq[term]))) + 1
			w := float64(count) * idf
			weights[term] = w
			norm += w * w
		}
		if norm == 0 {
			continue
		}
		norm = math.Sqrt(norm)
		for term, w := range weights {
			scores[term] += w / norm
		}
	}

	terms := make([]string, 0, len(scores))
	for term := range scores {
		terms = append(terms, term)
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(scores[b], scores[a]); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// WordFrequencies counts the alphabetic, non-stop-word tokens of text and
// returns the n most common, ties broken alphabetically.
func WordFrequencies(text string, n int) []model.WordCount {
	counts := make(map[string]int)
	for _, tok := range tokenize(text) {
		if isStopWord(tok) || !isAlpha(tok) {
			continue
		}
		counts[tok]++
	}

	words := make([]model.WordCount, 0, len(counts))
	for w, c := range counts {
		words = append(words, model.WordCount{Word: w, Count: c})
	}
	slices.SortFunc(words, func(a, b model.WordCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})
	if len(words) > n {
		words = words[:n]
	}
	return words
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}
