// Package activity merges the recent-activity feed shown to administrators.
package activity

import (
	"sort"
	"time"
)

// Kind distinguishes the sources merged into the activity feed.
type Kind string

// Kind constants
const (
	KindDonation Kind = "donation"
	KindSignup   Kind = "signup"
)

// FeedSize is how many items the admin activity feed shows.
const FeedSize = 10

// PerSourceLimit is how many recent rows each source contributes.
const PerSourceLimit = 5

// Item is one line in the recent activity feed.
type Item struct {
	ID       string
	Kind     Kind
	UserName string
	Action   string
	At       time.Time
}

// Merge combines feeds newest-first and keeps at most limit items.
// Ties keep the order they were given in.
func Merge(limit int, feeds ...[]Item) []Item {
	var all []Item
	for _, f := range feeds {
		all = append(all, f...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].At.After(all[j].At) })
	if limit >= 0 && len(all) > limit {
		all = all[:limit]
	}
	return all
}
