// Package storage defines persistence contracts for finished battles.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/skirmish/internal/battle/result"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ResultRecord is one finished encounter.
type ResultRecord struct {
	ID        string
	Encounter string
	Seed      int64
	StartedAt time.Time
	EndedAt   time.Time
	Result    result.Result
}

// ResultStore persists finished battle results.
type ResultStore interface {
	PutResult(ctx context.Context, record ResultRecord) error
	GetResult(ctx context.Context, id string) (ResultRecord, error)
	ListResults(ctx context.Context, limit int) ([]ResultRecord, error)
}
