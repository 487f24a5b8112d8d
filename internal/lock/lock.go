// Package lock serializes lifecycle transitions per property and per tenant.
package lock

import (
	"context"
	"errors"
	"slices"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentflow/pkg/relation"
)

var ErrLockTimeout = errors.New("lock_timeout")

// Locker holds every key until release is called. Keys are acquired in
// sorted order so two callers with overlapping key sets cannot deadlock.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// Key names the lock guarding one entity.
func Key(kind relation.Kind, id snowflake.ID) string {
	return "rentflow:lock:" + relation.New(kind, id).String()
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

type chain []Locker

// Chain acquires through each locker in order and releases in reverse.
func Chain(lockers ...Locker) Locker {
	return chain(lockers)
}

func (c chain) Acquire(ctx context.Context, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Acquire(ctx, keys...)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
