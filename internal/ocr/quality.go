package ocr

import (
	"regexp"
	"strings"
	"unicode"
)

// Quality scoring for OCR output. Several tesseract configurations run
// against each image; the score picks the least garbled result.

const validPunctuation = `.,;:!?()-+/%$@&'"ªº°`

func isValidChar(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	return strings.ContainsRune(validPunctuation, r)
}

// Score rates extracted text: valid characters raise it, garbage characters
// sink it twice as fast, and a glut of 1-2 letter tokens (a classic OCR
// failure mode) drags it down. Empty input scores 0.
func Score(text string) float64 {
	var valid, invalid, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if isValidChar(r) {
			valid++
		} else {
			invalid++
		}
	}
	if total == 0 {
		return 0
	}

	words := strings.Fields(text)
	var short int
	for _, w := range words {
		var letters int
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 1 && letters <= 2 {
			short++
		}
	}
	var shortRatio float64
	if len(words) > 0 {
		shortRatio = float64(short) / float64(len(words))
	}

	validRatio := float64(valid) / float64(total)
	invalidRatio := float64(invalid) / float64(total)
	return validRatio*100 - invalidRatio*200 - shortRatio*50
}

var (
	reStrayMarks = regexp.MustCompile(`[\[\]|]`)
	reManySpaces = regexp.MustCompile(`[ \t]{2,}`)
	reManyBlank  = regexp.MustCompile(`\n{3,}`)
)

// CleanText applies the light post-OCR cleanup: drops lines that carry fewer
// than two visible characters or no valid characters at all, strips stray
// bracket and pipe marks, and collapses runs of whitespace and blank lines.
func CleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = reStrayMarks.ReplaceAllString(line, "")
		line = reManySpaces.ReplaceAllString(line, " ")
		line = strings.TrimSpace(line)

		var visible, valid int
		for _, r := range line {
			if !unicode.IsSpace(r) {
				visible++
			}
			if isValidChar(r) {
				valid++
			}
		}
		if visible < 2 || valid == 0 {
			kept = append(kept, "")
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	out = reManyBlank.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
