package analysis

import (
	"strings"
	"unicode"
)

// maxWordLength drops tokens such as inlined data URIs and minified code
// that would otherwise dominate the syllable count.
const maxWordLength = 100

// FleschReadingEase scores text with the Flesch reading-ease formula.
// ok is false when the text has no words left after filtering.
func FleschReadingEase(text string) (score float64, ok bool) {
	var words []string
	for _, w := range strings.Fields(text) {
		if len([]rune(w)) <= maxWordLength {
			words = append(words, w)
		}
	}

	var wordCount, syllables int
	for _, w := range words {
		letters := strings.ToLower(strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) }))
		if letters == "" {
			continue
		}
		wordCount++
		syllables += countSyllables(letters)
	}
	if wordCount == 0 {
		return 0, false
	}

	sentences := countSentences(strings.Join(words, " "))
	return 206.835 -
		1.015*(float64(wordCount)/float64(sentences)) -
		84.6*(float64(syllables)/float64(wordCount)), true
}

// countSentences counts runs of terminal punctuation. Text without any
// counts as one sentence.
func countSentences(text string) int {
	n := 0
	inTerminator := false
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if !inTerminator {
				n++
			}
			inTerminator = true
			continue
		}
		inTerminator = false
	}
	// Trailing words after the last terminator form a sentence too.
	if trimmed := strings.TrimRightFunc(text, unicode.IsSpace); trimmed != "" {
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			n++
		}
	}
	return max(n, 1)
}

// countSyllables estimates syllables as vowel groups, discounting a silent
// final "e". Every word has at least one.
func countSyllables(word string) int {
	n := 0
	prevVowel := false
	for _, r := range word {
		v := isVowel(r)
		if v && !prevVowel {
			n++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && !strings.HasSuffix(word, "le") && n > 1 {
		n--
	}
	return max(n, 1)
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}
