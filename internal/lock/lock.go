// Package lock serializes operations on named keys ("team:<id>", "user:<id>").
//
// Keys are always acquired in sorted order. Every "team:" key sorts before every
// "user:" key, so an operation that takes at most one team key, and takes it
// first, can never deadlock against another such operation.
package lock

import (
	"context"
	"slices"

	"github.com/pkg/errors"
)

var ErrTimeout = errors.New("timed out waiting for lock")

type Locker interface {
	// Lock blocks until every key is held and returns the function releasing them.
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

func TeamKey(teamID string) string {
	return "team:" + teamID
}

func UserKey(userID string) string {
	return "user:" + userID
}

func normalize(keys []string) []string {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func waitError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
