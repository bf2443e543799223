package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"genline/internal/naming"
)

// IDStrategy selects how new plan identifiers are minted.
type IDStrategy string

const (
	// IDRandom yields plan_<unix-millis>_<uuid prefix>.
	IDRandom IDStrategy = "random"
	// IDKeyword derives readable ids from description keywords and falls
	// back to IDRandom when no keyword family matches.
	IDKeyword IDStrategy = "keyword"
)

// keywordFamily maps description keywords onto an id prefix plus fixed
// aliases the plan is also reachable under.
type keywordFamily struct {
	all     []string
	prefix  string
	aliases []string
}

var keywordFamilies = []keywordFamily{
	{
		all:     []string{"user", "management"},
		prefix:  "user-management-plan-",
		aliases: []string{"user-management-simple-integration", "simplified-user-management"},
	},
	{
		all:     []string{"blog"},
		prefix:  "blog-system-plan-",
		aliases: []string{"blog-system-integration"},
	},
}

func (f keywordFamily) matches(desc string) bool {
	for _, kw := range f.all {
		if !strings.Contains(desc, kw) {
			return false
		}
	}
	return true
}

// mintedID is a fresh identifier plus the keys it must be stored under.
type mintedID struct {
	ID      string
	Aliases []string
}

// Keys returns the canonical id, its normalized form when different, and
// any keyword aliases, without duplicates.
func (m mintedID) Keys() []string {
	keys := []string{m.ID}
	seen := map[string]bool{m.ID: true}
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	add(naming.NormalizeID(m.ID))
	for _, a := range m.Aliases {
		add(a)
	}
	return keys
}

func mintID(strategy IDStrategy, description string, now time.Time) mintedID {
	if strategy == IDKeyword {
		desc := strings.ToLower(description)
		for _, f := range keywordFamilies {
			if f.matches(desc) {
				return mintedID{
					ID:      fmt.Sprintf("%s%d", f.prefix, now.UnixMilli()%10000),
					Aliases: f.aliases,
				}
			}
		}
	}
	return mintedID{ID: randomID(now)}
}

func randomID(now time.Time) string {
	return fmt.Sprintf("plan_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// nextVersionID derives the id a plan gets under the new-id update policy:
// plan -> plan_v2 -> plan_v3.
func nextVersionID(id string) string {
	if i := strings.LastIndex(id, "_v"); i >= 0 {
		var n int
		if _, err := fmt.Sscanf(id[i+2:], "%d", &n); err == nil && fmt.Sprint(n) == id[i+2:] && n >= 2 {
			return fmt.Sprintf("%s_v%d", id[:i], n+1)
		}
	}
	return id + "_v2"
}
