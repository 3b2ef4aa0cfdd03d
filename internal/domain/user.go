// Package domain defines the record types and repositories for the relay bot.
package domain

import "time"

// User represents one chat identity known to the bot. A user starts
// unregistered and flips to registered exactly once, when a contact with a
// phone number is shared.
type User struct {
	ChatID          int64     `bson:"chat_id" json:"chat_id"`
	Registered      bool      `bson:"registered" json:"registered"`
	FirstName       string    `bson:"first_name,omitempty" json:"first_name,omitempty"`
	Username        string    `bson:"username,omitempty" json:"username,omitempty"`
	PhoneNumber     string    `bson:"phone_number,omitempty" json:"phone_number,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	LastInteraction time.Time `bson:"last_interaction" json:"last_interaction"`
}
