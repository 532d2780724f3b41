package checkin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNameNotFound  = errors.New("no member on the roster matches that name")
	ErrAmbiguousName = errors.New("name matches more than one member")
)

type Candidate struct {
	MemberID int64  `json:"member_id"`
	Name     string `json:"name"`
}

// AmbiguousNameError lists the members a manual check-in could refer to.
type AmbiguousNameError struct {
	Query      string
	Candidates []Candidate
}

func (e *AmbiguousNameError) Error() string {
	return fmt.Sprintf("name %q matches %d members", e.Query, len(e.Candidates))
}

func (e *AmbiguousNameError) Is(target error) bool {
	return target == ErrAmbiguousName
}

// normalizeName folds case, strips accents and collapses whitespace so
// "  josé  GARCÍA" and "Jose Garcia" compare equal.
func normalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// matchName prefers exact matches and falls back to a unique substring.
func matchName(query string, roster []Candidate) (Candidate, error) {
	q := normalizeName(query)
	if q == "" {
		return Candidate{}, ErrNameNotFound
	}

	var exact, partial []Candidate
	for _, c := range roster {
		n := normalizeName(c.Name)
		if n == "" {
			continue
		}
		switch {
		case n == q:
			exact = append(exact, c)
		case strings.Contains(n, q):
			partial = append(partial, c)
		}
	}

	for _, set := range [][]Candidate{exact, partial} {
		switch len(set) {
		case 0:
			continue
		case 1:
			return set[0], nil
		default:
			sort.Slice(set, func(i, j int) bool { return set[i].MemberID < set[j].MemberID })
			return Candidate{}, &AmbiguousNameError{Query: query, Candidates: set}
		}
	}
	return Candidate{}, ErrNameNotFound
}
