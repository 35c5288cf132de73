package mqtt

import (
	"fmt"
	"strings"
)

// MQTT topic wildcards.
const (
	wildcardSingle = "+"
	wildcardMulti  = "#"
)

// ValidateTopicName checks a topic used for publishing.
// Publish topics must be non-empty and must not contain wildcards.
func ValidateTopicName(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, wildcardSingle+wildcardMulti) {
		return fmt.Errorf("%w: wildcard in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateTopicFilter checks a subscription filter.
//
// "+" must occupy a whole level and "#" must occupy the whole last level:
//
//	homie/+/+/+/set   valid
//	homie/#           valid
//	homie/lamp+/x     invalid
//	homie/#/set       invalid
func ValidateTopicFilter(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, wildcardMulti) && (level != wildcardMulti || i != len(levels)-1) {
			return fmt.Errorf("%w: misplaced %q in filter %q", ErrInvalidTopic, wildcardMulti, filter)
		}
		if strings.Contains(level, wildcardSingle) && level != wildcardSingle {
			return fmt.Errorf("%w: misplaced %q in filter %q", ErrInvalidTopic, wildcardSingle, filter)
		}
	}
	return nil
}

// MatchTopic reports whether topic matches the subscription filter.
//
// The filter is assumed valid (see ValidateTopicFilter). Topics starting with
// "$" are not matched by a leading wildcard, as required by MQTT 3.1.1.
func MatchTopic(filter, topic string) bool {
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, wildcardSingle) || strings.HasPrefix(filter, wildcardMulti)) {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == wildcardMulti {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != wildcardSingle && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
