package models

import "time"

// UserSample is one enrolled biometric sample: the raw and min-max
// normalized feature vectors plus the informational hash from the
// signature that produced it.
//
// Login compares against RawVector, never NormalizedVector — min-max
// normalization is taken over a single vector's own range, so it destroys
// the inter-subject amplitude scale the matcher depends on. NormalizedVector
// is kept only so a UserTemplate round-trips through the store unchanged.
type UserSample struct {
	RawVector        []float64 `json:"rawVector"`
	NormalizedVector []float64 `json:"normalizedVector"`
	HashHex          string    `json:"hashHex"`
	RegisteredAt     time.Time `json:"registeredAt"`
}

// MaxSamplesPerUser bounds the enrolled sample window; adding a sixth
// sample for a user evicts the oldest one (FIFO).
const MaxSamplesPerUser = 5

// UserTemplate is the persisted record for one enrolled user.
type UserTemplate struct {
	UserID     string       `json:"userId"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
	Templates  []UserSample `json:"templates"`
	LoginCount int          `json:"loginCount"`
	LastLogin  *time.Time   `json:"lastLogin,omitempty"`
}

// AddSample appends a sample, evicting the oldest if the window would
// otherwise exceed MaxSamplesPerUser.
func (u *UserTemplate) AddSample(sample UserSample) {
	u.Templates = append(u.Templates, sample)
	if len(u.Templates) > MaxSamplesPerUser {
		u.Templates = u.Templates[len(u.Templates)-MaxSamplesPerUser:]
	}
	u.UpdatedAt = sample.RegisteredAt
}

// Session is an opaque token bound to a user. ExpiresAt is set once at
// creation to the matcher's session timeout (one hour by default); no
// operation extends or refreshes it.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s Session) Expired(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

// LoginAttempt is a forensic, non-authoritative audit record of one login
// call. It is written best-effort to the optional audit sink and never
// feeds back into the accept/reject decision.
type LoginAttempt struct {
	AttemptedAt time.Time `json:"attemptedAt"`
	UserID      string    `json:"userId"`
	Accepted    bool      `json:"accepted"`
	Similarity  float64   `json:"similarity"`
	Threshold   float64   `json:"threshold"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
}
