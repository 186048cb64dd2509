package crepl

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// CatalogEntry is one callable function and its reconstructed prototype.
type CatalogEntry struct {
	Name      string
	Signature string
}

// Catalog lists the functions of one loaded module. It scans the module's
// source text for identifiers followed by '(' and keeps only those the module
// actually resolves, which drops keywords, macros and static functions.
// Resolution searches the module's dependencies too, so a libc function the
// source calls (snprintf, strlen) is listed alongside the module's own.
// Comments and string literals are not understood, so a commented-out
// definition of a resolvable name still shows up.
//
// A Catalog belongs to one module; the session builds a fresh one on reload.
type Catalog struct {
	source  string
	resolve func(name string) bool

	built   bool
	entries []CatalogEntry
}

// NewCatalog prepares a catalog; nothing is scanned until first use.
func NewCatalog(source string, resolve func(name string) bool) *Catalog {
	return &Catalog{source: source, resolve: resolve}
}

// Entries returns the callable functions in first-occurrence order, one per
// name.
func (c *Catalog) Entries() []CatalogEntry {
	if !c.built {
		c.entries = c.scan()
		c.built = true
	}
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Names returns just the function names, in catalog order.
func (c *Catalog) Names() []string {
	es := c.Entries()
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Name
	}
	return out
}

// Closest suggests a catalog name for a mistyped callee, or "".
func (c *Catalog) Closest(name string) string {
	names := c.Names()
	if name == "" || len(names) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(name, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}
	best, bestDist := "", 3
	for _, n := range names {
		if d := fuzzy.LevenshteinDistance(strings.ToLower(name), strings.ToLower(n)); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}

func (c *Catalog) scan() []CatalogEntry {
	var out []CatalogEntry
	seen := map[string]bool{}
	for _, name := range callCandidates(c.source) {
		if seen[name] {
			continue
		}
		if c.resolve == nil || !c.resolve(name) {
			continue
		}
		sig, ok := FunctionSignature(c.source, name)
		if !ok {
			continue
		}
		seen[name] = true
		out = append(out, CatalogEntry{Name: name, Signature: sig})
	}
	return out
}

// callCandidates returns every maximal identifier that is followed, after
// optional whitespace, by '('. Duplicates are kept.
func callCandidates(src string) []string {
	var out []string
	i := 0
	for i < len(src) {
		ch := src[i]
		switch {
		case isAlpha(ch):
			start := i
			for i < len(src) && isAlphaNum(src[i]) {
				i++
			}
			j := i
			for j < len(src) && isSpace(src[j]) {
				j++
			}
			if j < len(src) && src[j] == '(' {
				out = append(out, src[start:i])
			}
		case isDigit(ch):
			// 0x1f and 12abc are number spellings, not identifiers
			for i < len(src) && isAlphaNum(src[i]) {
				i++
			}
		default:
			i++
		}
	}
	return out
}

// FunctionSignature rebuilds a one-line prototype for name: from the same
// boundary the return type inferencer uses, through the matching ')', with
// whitespace runs collapsed.
func FunctionSignature(source, name string) (string, bool) {
	if name == "" {
		return "", false
	}
	at := strings.Index(source, name+"(")
	if at < 0 {
		return "", false
	}
	start, _ := declSpan(source, at)
	end := at + len(name) + 1
	for depth := 1; end < len(source) && depth > 0; end++ {
		switch source[end] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	return strings.Join(strings.Fields(source[start:end]), " "), true
}
