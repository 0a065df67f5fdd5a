package event

import "strings"

// MatchTopic reports whether a subscription pattern matches a topic.
//
// A pattern is either an exact topic, the catch-all "*", or a topic
// with exactly one wildcard segment at the head or tail:
//
//	MatchTopic("test.*", "test.event")    // true
//	MatchTopic("test.*", "testing.event") // false
//	MatchTopic("*.error", "api.error")    // true
//	MatchTopic("*.error", "apierror")     // false
func MatchTopic(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if pattern == "*" {
		return true
	}
	if suffix, ok := strings.CutPrefix(pattern, "*."); ok {
		return strings.HasSuffix(topic, "."+suffix)
	}
	if prefix, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(topic, prefix+".")
	}
	return false
}

// validPattern reports whether a pattern is well formed: non-empty,
// and containing at most one wildcard, which must be a full leading
// or trailing segment (or the bare catch-all "*").
func validPattern(pattern string) bool {
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}
	switch strings.Count(pattern, "*") {
	case 0:
		return true
	case 1:
		return strings.HasPrefix(pattern, "*.") || strings.HasSuffix(pattern, ".*")
	default:
		return false
	}
}
