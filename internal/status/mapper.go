// Package status normalizes backend-native status vocabularies to the
// canonical lifecycle set and back.
//
// Resolution order for Normalize: canonical passthrough, context-scoped
// custom mapping, global custom mapping, default pattern families, then a
// deterministic lossy fallback. The fallback is NOT guaranteed to be one of
// the five canonical statuses; callers must treat it as backend-specific.
package status

import (
	"regexp"
	"sort"
	"strings"

	"github.com/trackwire/trackwire/internal/types"
)

// GlobalContext is the context key for mappings that apply to every
// project/board.
const GlobalContext = ""

// patternFamily pairs a canonical status with the vocabulary that implies it.
type patternFamily struct {
	status  types.Status
	pattern *regexp.Regexp
}

// defaultFamilies are evaluated in fixed priority order; first match wins.
// on-hold vocabulary deliberately lands in blocked: trackers that
// distinguish the two do so via custom mappings.
var defaultFamilies = []patternFamily{
	{types.StatusOpen, regexp.MustCompile(`(?i)open|new|to.?do|backlog|ready|created`)},
	{types.StatusInProgress, regexp.MustCompile(`(?i)in.?progress|active|working|started|doing`)},
	{types.StatusBlocked, regexp.MustCompile(`(?i)blocked|waiting|pending|on.?hold|paused`)},
	{types.StatusClosed, regexp.MustCompile(`(?i)done|closed|completed|finished|resolved|fixed`)},
}

// Mapper resolves native status tokens against custom per-context mappings
// with pattern-matching fallback. Mappings are supplied at construction and
// read-only afterwards, so a Mapper is safe for concurrent use.
type Mapper struct {
	// contexts maps context key -> native token -> canonical status.
	// The GlobalContext entry is the fallback scope.
	contexts map[string]map[string]types.Status
}

// NewMapper builds a mapper from context-keyed native→canonical tables.
// The GlobalContext ("") entry applies when no context-specific entry
// exists. mappings may be nil.
func NewMapper(mappings map[string]map[string]string) *Mapper {
	contexts := make(map[string]map[string]types.Status, len(mappings))
	for ctx, table := range mappings {
		scoped := make(map[string]types.Status, len(table))
		for native, canonical := range table {
			scoped[native] = types.Status(canonical)
		}
		contexts[ctx] = scoped
	}
	return &Mapper{contexts: contexts}
}

// Normalize resolves a backend-native status token to a canonical status.
// context is the scoping key (project or board id); pass GlobalContext for
// unscoped resolution. When nothing matches, the token is lower-cased with
// spaces and dashes converted to underscores — a lossy, deterministic,
// backend-specific value.
func (m *Mapper) Normalize(native string, context string) types.Status {
	if types.IsCanonical(types.Status(native)) {
		return types.Status(native)
	}

	if mapped, ok := m.lookup(native, context); ok {
		return mapped
	}

	for _, family := range defaultFamilies {
		if family.pattern.MatchString(native) {
			return family.status
		}
	}

	return types.Status(Fallback(native))
}

// Denormalize resolves a canonical status back to a backend-native token via
// reverse lookup in the custom mappings (context scope first, then global).
// Tokens are tried in sorted order so the result is deterministic. When no
// custom entry maps to the target, the canonical value is returned unchanged
// for backend-specific handling by the caller.
func (m *Mapper) Denormalize(canonical types.Status, context string) string {
	for _, scope := range m.scopes(context) {
		tokens := make([]string, 0, len(scope))
		for native := range scope {
			tokens = append(tokens, native)
		}
		sort.Strings(tokens)
		for _, native := range tokens {
			if scope[native] == canonical {
				return native
			}
		}
	}
	return string(canonical)
}

// IsKnown reports whether status is a canonical symbol, a custom-mapped
// native token, or matches a default pattern family.
func (m *Mapper) IsKnown(status string, context string) bool {
	if types.IsCanonical(types.Status(status)) {
		return true
	}
	if _, ok := m.lookup(status, context); ok {
		return true
	}
	for _, family := range defaultFamilies {
		if family.pattern.MatchString(status) {
			return true
		}
	}
	return false
}

// ValidStatuses returns the canonical set plus every custom-mapped native
// token visible from context, sorted.
func (m *Mapper) ValidStatuses(context string) []string {
	seen := make(map[string]bool)
	for _, s := range types.CanonicalStatuses() {
		seen[string(s)] = true
	}
	for _, scope := range m.scopes(context) {
		for native := range scope {
			seen[native] = true
		}
	}

	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// lookup finds a custom mapping for native, context scope first.
func (m *Mapper) lookup(native, context string) (types.Status, bool) {
	for _, scope := range m.scopes(context) {
		if mapped, ok := scope[native]; ok {
			return mapped, true
		}
	}
	return "", false
}

// scopes returns the mapping tables to consult, most specific first.
func (m *Mapper) scopes(context string) []map[string]types.Status {
	var scopes []map[string]types.Status
	if context != GlobalContext {
		if scoped, ok := m.contexts[context]; ok {
			scopes = append(scopes, scoped)
		}
	}
	if global, ok := m.contexts[GlobalContext]; ok {
		scopes = append(scopes, global)
	}
	return scopes
}

// Fallback derives the lossy status symbol for an unmapped token:
// lower-cased, spaces and dashes converted to underscores.
func Fallback(native string) string {
	lowered := strings.ToLower(strings.TrimSpace(native))
	lowered = strings.ReplaceAll(lowered, " ", "_")
	lowered = strings.ReplaceAll(lowered, "-", "_")
	return lowered
}
