package identity

import (
	"sort"
	"strings"
)

// GroupKeyResolver normalizes raw group strings from the identity signal and
// derives org-unit keys. Org-unit keys carry a configurable prefix, e.g.
// "ou:/Engineering/Backend".
type GroupKeyResolver struct {
	prefix string
}

// NewGroupKeyResolver creates a resolver. An empty prefix defaults to "ou".
func NewGroupKeyResolver(prefix string) *GroupKeyResolver {
	if prefix == "" {
		prefix = "ou"
	}
	return &GroupKeyResolver{prefix: prefix}
}

// Normalize trims whitespace, drops blanks, deduplicates and sorts the given
// group keys. The returned slice is a fresh copy.
func (r *GroupKeyResolver) Normalize(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// OrgUnitKey builds the group key for an org-unit path.
func (r *GroupKeyResolver) OrgUnitKey(path string) string {
	return r.prefix + ":" + path
}

// IsOrgUnitKey reports whether key carries the org-unit prefix.
func (r *GroupKeyResolver) IsOrgUnitKey(key string) bool {
	return strings.HasPrefix(key, r.prefix+":")
}

// OrgUnitPath strips the org-unit prefix from key, returning false when key
// is not an org-unit key.
func (r *GroupKeyResolver) OrgUnitPath(key string) (string, bool) {
	if !r.IsOrgUnitKey(key) {
		return "", false
	}
	return strings.TrimPrefix(key, r.prefix+":"), true
}

// DeepestOrgUnitKey picks the org-unit key with the most path segments from
// keys. Ties resolve to the lexicographically first key, so the choice is
// deterministic for a given normalized set. Returns false when no org-unit
// key is present.
func (r *GroupKeyResolver) DeepestOrgUnitKey(keys []string) (string, bool) {
	best := ""
	bestDepth := -1
	for _, k := range r.Normalize(keys) {
		path, ok := r.OrgUnitPath(k)
		if !ok {
			continue
		}
		depth := len(PathSegments(path))
		if depth > bestDepth {
			best = k
			bestDepth = depth
		}
	}
	return best, bestDepth >= 0
}

// PathSegments splits an org-unit path on "/", dropping empty segments.
func PathSegments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
