package domain

import (
	"regexp"
	"sort"
	"strconv"
)

// CitationKey identifies a cited passage by its origin, not by chunk id:
// several chunks of the same page share one citation.
type CitationKey struct {
	Source string
	Page   int
}

// CitationRegistry maps (source, page) pairs to stable small integer ids for
// the lifetime of one session. Ids are assigned in first-seen order starting
// at 1 and are never reused or renumbered, even when the passage later drops
// out of retrieval results. Not safe for concurrent use; the session manager
// serializes turns per session.
type CitationRegistry struct {
	ids    map[CitationKey]int
	order  []CitationKey
	nextID int
}

func NewCitationRegistry() *CitationRegistry {
	return &CitationRegistry{
		ids:    make(map[CitationKey]int),
		nextID: 1,
	}
}

// Assign returns the id already held by (source, page) or allocates the next
// one.
func (r *CitationRegistry) Assign(source string, page int) int {
	key := CitationKey{Source: source, Page: page}
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := r.nextID
	r.nextID++
	r.ids[key] = id
	r.order = append(r.order, key)
	return id
}

// Lookup resolves an id back to its key.
func (r *CitationRegistry) Lookup(id int) (CitationKey, bool) {
	if id < 1 || id > len(r.order) {
		return CitationKey{}, false
	}
	return r.order[id-1], true
}

// Len reports how many ids have been assigned.
func (r *CitationRegistry) Len() int {
	return len(r.order)
}

// Citation markers follow one exact grammar: "[#" + one or more ASCII digits
// + "]", with optional whitespace around the digits. Anything else is
// ignored, never fuzzy-recovered. The empty form "[#]" is matched separately
// so it can be rejected.
var (
	citationMarkerRe = regexp.MustCompile(`\[#\s*([0-9]+)\s*\]`)
	emptyMarkerRe    = regexp.MustCompile(`\[#\s*\]`)
)

// ExtractCitations returns the distinct ids referenced by well-formed markers
// in text, ascending.
func ExtractCitations(text string) []int {
	matches := citationMarkerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(matches))
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// CitationReport is the outcome of validating generated text against the
// registry.
type CitationReport struct {
	Cited       []int
	Unknown     []int
	EmptyMarker bool
}

// Valid reports whether every reference in the text is verifiable.
func (c CitationReport) Valid() bool {
	return len(c.Unknown) == 0 && !c.EmptyMarker
}

// Validate checks every citation marker in text against the ids assigned this
// session. Any unknown id or bare "[#]" marker invalidates the whole answer:
// an unverifiable claim anywhere poisons the response's reliability.
func (r *CitationRegistry) Validate(text string) CitationReport {
	report := CitationReport{
		Cited:       ExtractCitations(text),
		EmptyMarker: emptyMarkerRe.MatchString(text),
	}
	for _, id := range report.Cited {
		if id < 1 || id > len(r.order) {
			report.Unknown = append(report.Unknown, id)
		}
	}
	return report
}
