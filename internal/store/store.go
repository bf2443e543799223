// Package store keeps plans addressable under several alias keys.
//
// Every key maps to exactly one plan; a plan may be reachable from many
// keys. Writing a plan under any key replaces the record seen through all
// of its keys, and removing a plan drops every key that points at it.
package store

import (
	"context"
	"errors"

	"genline/internal/domain"
)

var ErrNotFound = errors.New("not found")

// Store is safe for concurrent use. Values handed out by Get are copies.
type Store interface {
	// Put stores p under key, replacing any previous mapping for key.
	Put(ctx context.Context, key string, p *domain.Plan) error
	// Get returns the plan stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (*domain.Plan, error)
	// Keys lists every live key in no particular order.
	Keys(ctx context.Context) ([]string, error)
	// AliasesOf lists the keys that currently resolve to planID.
	AliasesOf(ctx context.Context, planID string) ([]string, error)
	// RemoveAllAliasesOf drops p and every key resolving to it, returning
	// how many keys were removed.
	RemoveAllAliasesOf(ctx context.Context, p *domain.Plan) (int, error)
	Close() error
}
