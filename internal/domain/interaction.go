package domain

import "time"

// Interaction is one processed image and its derived analysis. Records are
// append-only; nothing in the bot mutates or deletes them. UserID is a weak
// reference to User.ChatID.
type Interaction struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	FileID    string    `bson:"file_id" json:"file_id"`
	Analysis  string    `bson:"analysis" json:"analysis"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
