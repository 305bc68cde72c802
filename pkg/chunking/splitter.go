package chunking

import (
	"strings"
	"unicode"
)

// span is a half-open [Start, End) range of rune offsets into the source
// text. Spans produced by the splitter are contiguous: each one ends where
// the next begins, and together they cover the whole input.
type span struct {
	Start int
	End   int
}

// sentenceSplitter locates sentence boundaries in plain text. It is
// rule-based: sentence-ending punctuation followed by whitespace and an
// upper-case letter, with carve-outs for abbreviations, decimals, ellipses
// and closing quotes. Paragraph breaks (blank lines) always end a sentence.
type sentenceSplitter struct {
	abbreviations map[string]bool
}

func newSentenceSplitter() *sentenceSplitter {
	return &sentenceSplitter{abbreviations: commonAbbreviations()}
}

// split returns contiguous sentence spans over runes. The final span always
// ends at len(runes), so no input is lost even without trailing punctuation.
func (s *sentenceSplitter) split(runes []rune) []span {
	if len(runes) == 0 {
		return nil
	}

	var spans []span
	start := 0

	for i := 0; i < len(runes); i++ {
		// Paragraph boundary: double newline ends the sentence after the
		// second newline.
		if runes[i] == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			spans = append(spans, span{Start: start, End: i + 2})
			start = i + 2
			i++
			continue
		}

		if s.isSentenceEnd(runes, i) && !s.isContinuation(runes, i) {
			// Include trailing closing quotes/brackets in the sentence.
			end := i + 1
			for end < len(runes) && isClosing(runes[end]) {
				end++
			}
			// Trailing whitespace belongs to the preceding span so spans
			// stay contiguous.
			for end < len(runes) && unicode.IsSpace(runes[end]) {
				end++
			}
			spans = append(spans, span{Start: start, End: end})
			start = end
			i = end - 1
		}
	}

	if start < len(runes) {
		spans = append(spans, span{Start: start, End: len(runes)})
	}

	return spans
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '}'
}

// isSentenceEnd checks if the rune at pos terminates a sentence
func (s *sentenceSplitter) isSentenceEnd(runes []rune, pos int) bool {
	r := runes[pos]
	if r != '.' && r != '!' && r != '?' {
		return false
	}

	if r == '.' {
		// Abbreviation: look back for the word the period closes.
		wordStart := pos
		for wordStart > 0 && !unicode.IsSpace(runes[wordStart-1]) {
			wordStart--
		}
		if s.abbreviations[strings.ToLower(string(runes[wordStart:pos]))] {
			return false
		}

		// Decimal number (e.g. 3.14)
		if pos > 0 && unicode.IsDigit(runes[pos-1]) &&
			pos+1 < len(runes) && unicode.IsDigit(runes[pos+1]) {
			return false
		}

		// Ellipsis
		if pos+2 < len(runes) && runes[pos+1] == '.' && runes[pos+2] == '.' {
			return false
		}
		if pos > 0 && pos+1 < len(runes) && runes[pos-1] == '.' && runes[pos+1] == '.' {
			return false
		}
	}

	if pos+1 >= len(runes) {
		return true
	}

	nextPos := pos + 1
	for nextPos < len(runes) && isClosing(runes[nextPos]) {
		nextPos++
	}

	// Punctuation glued to more text (e.g. "U.S.A.") does not end a sentence.
	if nextPos < len(runes) && !unicode.IsSpace(runes[nextPos]) {
		return false
	}

	for nextPos < len(runes) && unicode.IsSpace(runes[nextPos]) {
		nextPos++
	}
	if nextPos >= len(runes) {
		return true
	}

	return unicode.IsUpper(runes[nextPos]) || unicode.IsDigit(runes[nextPos])
}

// isContinuation checks for immediate continuation without a space
func (s *sentenceSplitter) isContinuation(runes []rune, pos int) bool {
	nextPos := pos + 1
	for nextPos < len(runes) && isClosing(runes[nextPos]) {
		nextPos++
	}
	return nextPos < len(runes) && !unicode.IsSpace(runes[nextPos])
}

func commonAbbreviations() map[string]bool {
	return map[string]bool{
		// Titles
		"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
		"sr": true, "jr": true,

		// Common abbreviations
		"inc": true, "corp": true, "co": true, "ltd": true, "llc": true,
		"vs": true, "etc": true, "i.e": true, "e.g": true, "cf": true,
		"al": true, "et": true, "approx": true,

		// Months and days
		"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
		"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
		"nov": true, "dec": true,
		"mon": true, "tue": true, "wed": true, "thu": true, "fri": true,
		"sat": true, "sun": true,

		// Units
		"ft": true, "cm": true, "mm": true, "km": true,
		"kg": true, "lb": true, "oz": true,

		// Addresses
		"st": true, "ave": true, "blvd": true, "rd": true, "u.s": true,
		"u.k": true, "u.s.a": true,
	}
}
