package model

import "time"

// AccessCode is a short-lived opaque token scoping one controller-to-receiver
// pairing. LastUsedAt is nil until a controller first relays a message with
// the code; the first use is what hides the pairing target on receivers.
type AccessCode struct {
	Code       string     `db:"code" json:"code"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expiresAt"`
	LastUsedAt *time.Time `db:"last_used_at" json:"lastUsedAt,omitempty"`
}

// Used reports whether a controller has relayed with this code.
func (c *AccessCode) Used() bool {
	return c.LastUsedAt != nil
}

type CreateAccessCodeParams struct {
	Code      string
	ExpiresAt time.Time
}
