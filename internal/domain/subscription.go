package domain

import "time"

// Subscription is a directed edge: Subscriber follows Channel. Both are user IDs.
type Subscription struct {
	ID         string    `json:"id"`
	Subscriber string    `json:"subscriber"`
	Channel    string    `json:"channel"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}
