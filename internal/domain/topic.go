package domain

import "strings"

// Topic is the record-kind identifier carried by every frame. Values are the
// literal strings field devices put on the wire.
type Topic string

const (
	TopicSample            Topic = "99/1"
	TopicSampleDiscrepancy Topic = "99/2"
	TopicProtectionStart   Topic = "200/1"
	TopicProtectionEnd     Topic = "200/2"
	TopicAccumulatedEvent  Topic = "400/1"
	TopicRegionalAlarm     Topic = "CEP/Alarm"

	// TopicUnknown is used when a frame carries no topic at all.
	TopicUnknown Topic = ""
)

// KnownTopics lists the six topics the classifier understands, most urgent first.
var KnownTopics = []Topic{
	TopicProtectionStart,
	TopicProtectionEnd,
	TopicSampleDiscrepancy,
	TopicAccumulatedEvent,
	TopicRegionalAlarm,
	TopicSample,
}

var topicNames = map[Topic]string{
	TopicSample:            "sample",
	TopicSampleDiscrepancy: "sample-discrepancy",
	TopicProtectionStart:   "protection-start",
	TopicProtectionEnd:     "protection-end",
	TopicAccumulatedEvent:  "accumulated-event",
	TopicRegionalAlarm:     "regional-alarm",
}

// Name returns the descriptive alias of a known topic, or the raw value otherwise.
func (t Topic) Name() string {
	if n, ok := topicNames[t]; ok {
		return n
	}
	return string(t)
}

// Known reports whether the classifier has a variant for t.
func (t Topic) Known() bool {
	_, ok := topicNames[t]
	return ok
}

// ParseTopic accepts either the wire literal ("99/1") or its alias ("sample").
// Unrecognised input is returned verbatim with ok=false so callers can still
// route it through the fallback priority.
func ParseTopic(s string) (Topic, bool) {
	s = strings.TrimSpace(s)
	t := Topic(s)
	if t.Known() {
		return t, true
	}
	for topic, name := range topicNames {
		if strings.EqualFold(name, s) {
			return topic, true
		}
	}
	return t, false
}

// PriorityClass orders frames for dispatch. Lower is more urgent.
type PriorityClass int

// LowestUrgency is the fallback class for topics absent from the priority table.
const LowestUrgency PriorityClass = 5

// DefaultPriorities is the priority table used when configuration does not override it.
func DefaultPriorities() map[Topic]PriorityClass {
	return map[Topic]PriorityClass{
		TopicProtectionStart:   1,
		TopicProtectionEnd:     1,
		TopicSampleDiscrepancy: 2,
		TopicAccumulatedEvent:  3,
		TopicRegionalAlarm:     4,
		TopicSample:            5,
	}
}

// PriorityMap is an immutable topic -> class lookup with an independent fallback.
type PriorityMap struct {
	classes  map[Topic]PriorityClass
	fallback PriorityClass
}

// NewPriorityMap copies classes so later mutation by the caller has no effect.
func NewPriorityMap(classes map[Topic]PriorityClass, fallback PriorityClass) PriorityMap {
	cp := make(map[Topic]PriorityClass, len(classes))
	for t, c := range classes {
		cp[t] = c
	}
	return PriorityMap{classes: cp, fallback: fallback}
}

// DefaultPriorityMap returns the built-in table with LowestUrgency as fallback.
func DefaultPriorityMap() PriorityMap {
	return NewPriorityMap(DefaultPriorities(), LowestUrgency)
}

// Class returns the class for t, or the fallback when t is not in the table.
func (m PriorityMap) Class(t Topic) PriorityClass {
	if c, ok := m.classes[t]; ok {
		return c
	}
	return m.Fallback()
}

// Fallback returns the class assigned to unknown topics.
func (m PriorityMap) Fallback() PriorityClass {
	if m.fallback <= 0 {
		return LowestUrgency
	}
	return m.fallback
}
