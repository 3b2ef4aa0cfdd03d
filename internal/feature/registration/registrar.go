// Package registration implements the phone-number registration gate that
// stands between a chat identity and the inference model.
package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_ai_relay_bot/internal/logging"
)

type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Gate checks and mutates the registration state of users.
type Gate struct {
	users  userCollection
	logger *logrus.Entry
}

// NewGate constructs a Gate over the provided users collection.
func NewGate(users userCollection, logger *logrus.Entry) *Gate {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Gate{
		users:  users,
		logger: logger,
	}
}

// IsRegistered reports whether the chat identity has completed registration.
// Every call is a fresh point lookup; an unknown identity is simply not
// registered, not an error.
func (g *Gate) IsRegistered(ctx context.Context, chatID int64) (bool, error) {
	if g == nil || g.users == nil {
		return false, errors.New("registration gate is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}

	result := g.users.FindOne(ctx, bson.M{"chat_id": chatID, "registered": true})
	if result == nil {
		return false, errors.New("find user returned no result")
	}

	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("check registration: %w", err)
	}

	return true, nil
}

// Complete marks the user registered with the shared phone number and bumps
// last_interaction. The returned bool reports whether a record matched the
// chat id: re-sharing an identical contact still matches and counts as
// success, while a missing record (no prior /start) does not.
func (g *Gate) Complete(ctx context.Context, chatID int64, phoneNumber string) (bool, error) {
	if g == nil || g.users == nil {
		return false, errors.New("registration gate is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return false, errors.New("phone number is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	result, err := g.users.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": bson.M{
			"phone_number":     strings.TrimSpace(phoneNumber),
			"registered":       true,
			"last_interaction": now,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("complete registration: %w", err)
	}

	matched := result != nil && result.MatchedCount > 0
	if matched {
		g.logger.WithFields(logging.Fields{
			"event":   "registration_complete",
			"chat_id": chatID,
		}).Info("user completed registration")
	} else {
		g.logger.WithFields(logging.Fields{
			"event":   "registration_no_record",
			"chat_id": chatID,
		}).Warn("contact shared before start command")
	}

	return matched, nil
}
