// Package domain contains core concepts of the chat system.
// This file defines the User identity snapshot and presence status.
package domain

import "time"

type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusAway    Status = "AWAY"
	StatusOffline Status = "OFFLINE"
	StatusCustom  Status = "CUSTOM"
)

func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline, StatusCustom:
		return true
	}
	return false
}

// User is the identity snapshot carried by outbound events.
// The identity itself is owned by the persistence collaborator and
// referenced by value everywhere in the realtime layer.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	Status       Status     `json:"status,omitempty"`
	CustomStatus string     `json:"customStatus,omitempty"`
	IsOnline     bool       `json:"isOnline"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
}
