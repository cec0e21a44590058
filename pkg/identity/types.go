package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is the identity aggregate. Exactly one non-deleted user exists per
// canonical email.
type User struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name,omitempty"`
	ProfilePictureURL string     `json:"profile_picture_url,omitempty"`
	InvitedAt         *time.Time `json:"invited_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsPlaceholder reports whether the user was created by invitation and has
// never authenticated. Activation clears InvitedAt.
func (u *User) IsPlaceholder() bool {
	return u.InvitedAt != nil
}

// Claim is the already-authenticated identity signal extracted by upstream
// middleware. Header parsing and signature verification happen before a Claim
// is constructed.
type Claim struct {
	Email             string
	Name              string
	ProfilePictureURL string
	GroupKeys         []string
	Source            string
}
