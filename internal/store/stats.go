// Package store encapsulates MongoDB client management and collection helpers.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type countCollection interface {
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
}

// StatsProvider exposes helper methods to retrieve collection counts for basic
// diagnostics without leaking MongoDB internals to callers.
type StatsProvider struct {
	users        countCollection
	interactions countCollection
}

// NewStatsProvider constructs a StatsProvider backed by the provided user and
// interaction collections.
func NewStatsProvider(users, interactions countCollection) *StatsProvider {
	return &StatsProvider{
		users:        users,
		interactions: interactions,
	}
}

// CountUsers returns the number of documents in the users collection.
func (p *StatsProvider) CountUsers(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}

	return count, nil
}

// CountRegisteredUsers returns the number of users that completed the contact
// registration flow.
func (p *StatsProvider) CountRegisteredUsers(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.users == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.users.CountDocuments(ctx, bson.D{{Key: "registered", Value: true}})
	if err != nil {
		return 0, fmt.Errorf("count registered users: %w", err)
	}

	return count, nil
}

// CountInteractions returns the number of recorded image analyses.
func (p *StatsProvider) CountInteractions(ctx context.Context) (int64, error) {
	if ctx == nil {
		return 0, errors.New("context is required")
	}
	if p == nil || p.interactions == nil {
		return 0, errors.New("stats provider is not initialized")
	}

	count, err := p.interactions.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}

	return count, nil
}
