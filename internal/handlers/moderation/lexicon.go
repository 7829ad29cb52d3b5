package moderation

import (
	"bufio"
	"io/fs"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/pkg/errors"
)

// Lexicon is a case-insensitive term list loaded once at startup. Terms
// may be single words or short phrases.
type Lexicon struct {
	terms []string
}

// LoadLexicon reads one term per line from the given file, skipping
// blank lines and lines starting with '#'.
func LoadLexicon(fsys fs.FS, path string) (*Lexicon, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "cant open lexicon %s", path)
	}
	defer f.Close()

	var terms []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithMessagef(err, "cant read lexicon %s", path)
	}
	return &Lexicon{terms: terms}, nil
}

func (l *Lexicon) Terms() []string {
	return l.terms
}

// MatchExact returns the first term found in the text, matching whole
// tokens only. Phrases match as substrings on token boundaries.
func (l *Lexicon) MatchExact(text string) (string, bool) {
	lowered := strings.ToLower(text)
	tokens := tokenize(lowered)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		tokenSet[tok] = struct{}{}
	}
	joined := " " + strings.Join(tokens, " ") + " "

	for _, term := range l.terms {
		if strings.ContainsRune(term, ' ') {
			if strings.Contains(joined, " "+term+" ") {
				return term, true
			}
			continue
		}
		if _, ok := tokenSet[term]; ok {
			return term, true
		}
	}
	return "", false
}

// MatchFuzzy returns the first term whose similarity to any token of the
// text is at least minPercent. Exact hits count too.
func (l *Lexicon) MatchFuzzy(text string, minPercent int) (string, bool) {
	if term, ok := l.MatchExact(text); ok {
		return term, true
	}
	tokens := tokenize(strings.ToLower(text))
	for _, term := range l.terms {
		if strings.ContainsRune(term, ' ') {
			continue
		}
		for _, tok := range tokens {
			if similarityPercent(term, tok) >= minPercent {
				return term, true
			}
		}
	}
	return "", false
}

// similarityPercent converts edit distance into a 0-100 similarity score
// relative to the longer string.
func similarityPercent(a, b string) int {
	if a == b {
		return 100
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return int(100 * (1 - float64(dist)/float64(maxLen)))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return false
		case r >= 'а' && r <= 'я', r == 'ё':
			return false
		}
		return true
	})
}
