// Package notify fans out employee change events to live subscribers.
//
// Delivery is best effort: every subscriber owns a buffered channel and a publish
// never waits for a subscriber. Events that do not fit are dropped for that
// subscriber only. There is no replay for late subscribers.
package notify

import "context"

// TopicPrefix is shared by every change topic.
const TopicPrefix = "/topic"

const (
	TopicNewEmployee    = TopicPrefix + "/newEmployee"
	TopicUpdateEmployee = TopicPrefix + "/updateEmployee"
	TopicDeleteEmployee = TopicPrefix + "/deleteEmployee"
)

// Topics lists every change topic.
func Topics() []string {
	return []string{TopicNewEmployee, TopicUpdateEmployee, TopicDeleteEmployee}
}

// ValidTopic reports whether topic is one of the change topics.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicNewEmployee, TopicUpdateEmployee, TopicDeleteEmployee:
		return true
	}
	return false
}

// Message is one change event. Payload is the location of the affected record.
type Message struct {
	Topic   string `json:"topic"`
	Payload string `json:"payload"`
}

// Publisher emits change events. Publish never blocks on subscribers and never fails.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string)
}

// Hub is a Publisher that also accepts subscribers.
type Hub interface {
	Publisher

	// Subscribe registers for the given topics, or all topics when none are given.
	// The returned stop function must be called once; it closes the channel.
	Subscribe(topics ...string) (<-chan Message, func())
}
