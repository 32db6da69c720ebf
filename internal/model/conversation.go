package model

import "time"

// ConversationMessage is one turn in a chat conversation. Conversations
// live only in Redis (see internal/cache.ConversationStore); there is
// no relational table for them, matching the original's Redis-only
// history design.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
