package model

// ReadabilityBand is the Flesch reading-ease band a page falls into.
// Bands are ordered from hardest to easiest so they sort naturally.
type ReadabilityBand int

const (
	// BandExtremelyDifficult is a Flesch score below 0.
	BandExtremelyDifficult ReadabilityBand = iota

	// BandDifficult is a Flesch score in [0, 30).
	BandDifficult

	// BandModerate is a Flesch score in [30, 60).
	BandModerate

	// BandEasy is a Flesch score of 60 or above.
	BandEasy
)

// Bands lists every band from hardest to easiest.
var Bands = []ReadabilityBand{BandExtremelyDifficult, BandDifficult, BandModerate, BandEasy}

// BandForScore maps a Flesch reading-ease score to its band.
func BandForScore(score float64) ReadabilityBand {
	switch {
	case score < 0:
		return BandExtremelyDifficult
	case score < 30:
		return BandDifficult
	case score < 60:
		return BandModerate
	default:
		return BandEasy
	}
}

// String returns a short label suitable for charts and tables.
func (b ReadabilityBand) String() string {
	switch b {
	case BandExtremelyDifficult:
		return "Extremely difficult"
	case BandDifficult:
		return "Difficult"
	case BandModerate:
		return "Moderate"
	case BandEasy:
		return "Easy"
	default:
		return "Unknown"
	}
}

// Interpretation returns the sentence stored in readability reports.
func (b ReadabilityBand) Interpretation() string {
	switch b {
	case BandExtremelyDifficult:
		return "Extremely difficult to read."
	case BandDifficult:
		return "Difficult to read."
	case BandModerate:
		return "Moderately difficult to read."
	case BandEasy:
		return "Easy to read."
	default:
		return ""
	}
}

// Recommendations returns the advice attached to the band. Easy pages get
// none; the result is never nil so it serializes as an empty JSON array.
func (b ReadabilityBand) Recommendations() []string {
	switch b {
	case BandExtremelyDifficult:
		return []string{
			"Check for complex sentences and lack of punctuation.",
			"Consider simplifying the language.",
		}
	case BandDifficult:
		return []string{"Simplify sentences and use more common words."}
	case BandModerate:
		return []string{"Consider breaking up long sentences."}
	default:
		return []string{}
	}
}
