// Package keys provides the cache key codec shared by every tier.
//
// Key semantics:
//   - {namespace}:{id}                      entity and query results
//   - {namespace}:{id}:{q}={v}[:{q}={v}]*   qualified variants (viewer, cursor, filter)
//
// Qualifiers are sorted lexicographically before encoding so identical logical
// queries always produce identical keys regardless of caller-supplied order.
package keys

import (
	"sort"
	"strings"
)

// Namespaces used by the content platform. Listing namespaces share a
// wildcard-qualifier shape so one rule can purge every paginated variant.
const (
	NSStory          = "story"
	NSStoryList      = "story-list"
	NSStoryStructure = "story-structure"
	NSChapter        = "chapter"
	NSChapterList    = "chapter-list"
	NSScene          = "scene"
	NSSceneList      = "scene-list"
	NSPost           = "post"
	NSPostFeed       = "post-feed"
	NSCommentThread  = "comment-thread"
)

// CacheKey is the structured form of a cache key.
type CacheKey struct {
	Namespace  string
	ID         string
	Qualifiers map[string]string
}

// New builds a key with no qualifiers.
func New(namespace, id string) CacheKey {
	return CacheKey{Namespace: namespace, ID: id}
}

// WithQualifier returns a copy of the key with one more qualifier set.
func (k CacheKey) WithQualifier(name, value string) CacheKey {
	quals := make(map[string]string, len(k.Qualifiers)+1)
	for q, v := range k.Qualifiers {
		quals[q] = v
	}
	quals[name] = value
	return CacheKey{Namespace: k.Namespace, ID: k.ID, Qualifiers: quals}
}

// String encodes the key in wire format with deterministic qualifier order.
func (k CacheKey) String() string {
	var b strings.Builder
	b.WriteString(k.Namespace)
	b.WriteByte(':')
	b.WriteString(k.ID)

	if len(k.Qualifiers) > 0 {
		names := make([]string, 0, len(k.Qualifiers))
		for name := range k.Qualifiers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteByte(':')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(k.Qualifiers[name])
		}
	}
	return b.String()
}

// Parse decodes a wire-format key. Malformed qualifier segments are kept as
// empty-valued qualifiers rather than rejected; keys are produced internally
// and a decode failure here would mean a writer bug, not bad user input.
func Parse(raw string) CacheKey {
	parts := strings.Split(raw, ":")
	key := CacheKey{}
	if len(parts) > 0 {
		key.Namespace = parts[0]
	}
	if len(parts) > 1 {
		key.ID = parts[1]
	}
	for _, seg := range parts[2:] {
		name, value, _ := strings.Cut(seg, "=")
		if key.Qualifiers == nil {
			key.Qualifiers = make(map[string]string)
		}
		key.Qualifiers[name] = value
	}
	return key
}

// Pattern matches cache keys either exactly or by prefix. A trailing "*"
// makes the pattern a prefix match over everything before the star, so
// "chapter-list:42:*" covers every paginated or filtered variant of the
// chapter listing for story 42 without enumerating qualifier combinations.
type Pattern string

// Exact builds a pattern matching exactly one key.
func Exact(key CacheKey) Pattern { return Pattern(key.String()) }

// Prefix builds a wildcard pattern over all qualified variants of a key.
func Prefix(namespace, id string) Pattern {
	return Pattern(namespace + ":" + id + ":*")
}

// PrefixAll builds a wildcard pattern over an entire namespace.
func PrefixAll(namespace string) Pattern {
	return Pattern(namespace + ":*")
}

// IsWildcard reports whether the pattern is a prefix match.
func (p Pattern) IsWildcard() bool {
	return strings.HasSuffix(string(p), "*")
}

// Matches reports whether the pattern covers the given wire-format key.
// A wildcard pattern "ns:id:*" also covers the bare key "ns:id".
func (p Pattern) Matches(rawKey string) bool {
	s := string(p)
	if !strings.HasSuffix(s, "*") {
		return rawKey == s
	}
	prefix := strings.TrimSuffix(s, "*")
	if strings.HasPrefix(rawKey, prefix) {
		return true
	}
	return rawKey == strings.TrimSuffix(prefix, ":")
}

func (p Pattern) String() string { return string(p) }
