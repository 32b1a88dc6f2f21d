// Package repository holds the account and listener registries backing
// subscription generation.
package repository

import (
	"errors"

	"github.com/creamcroissant/marzgo/internal/subscription"
)

// ErrUserNotFound is returned when a username has no registered account.
var ErrUserNotFound = errors.New("user not found")

// User is one subscriber account together with its traffic counters and
// the inbound tags each protocol is admitted to.
type User struct {
	Username    string
	Status      string
	Expire      int64
	DataLimit   int64
	UsedTraffic int64
	Inbounds    map[subscription.Protocol][]string
	Account     subscription.ProxyAccount
}

// Snapshot projects the user onto the fields the variable resolver needs.
func (u *User) Snapshot() subscription.StatusSnapshot {
	return subscription.StatusSnapshot{
		Username:    u.Username,
		Status:      u.Status,
		Expire:      u.Expire,
		DataLimit:   u.DataLimit,
		UsedTraffic: u.UsedTraffic,
	}
}

// UserStore resolves usernames to accounts.
type UserStore interface {
	User(username string) (*User, error)
}
