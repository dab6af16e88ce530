package types

import "time"

// Notification is a single message delivered to the destinations of a channel.
type Notification struct {
	ID        string      `json:"id"`
	Channel   ChannelName `json:"channel"`
	Title     string      `json:"title"`
	Body      string      `json:"body"`
	Timestamp time.Time   `json:"timestamp"`
}
