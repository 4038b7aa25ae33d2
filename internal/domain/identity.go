// Package domain contains entity without logic, just meta-data
package domain

import (
	"strings"
)

const MaxIdentityLen = 64

// Identity is the caller-chosen name of one relay endpoint. It is both the
// relay channel address and the to/from routing key of every envelope.
type Identity string

// NewIdentity trims and validates a raw identity.
func NewIdentity(raw string) (Identity, error) {
	s := strings.TrimSpace(raw)
	if len(s) == 0 {
		return "", ErrIdentityEmpty
	}
	if len(s) > MaxIdentityLen {
		return "", ErrIdentityTooLong
	}
	if strings.ContainsAny(s, "/?#") {
		return "", ErrIdentityInvalid
	}
	return Identity(s), nil
}

func (id Identity) String() string { return string(id) }

func (id Identity) IsZero() bool { return id == "" }
