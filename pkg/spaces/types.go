package spaces

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the stores.
var (
	ErrSpaceNotFound = errors.New("space not found")
	ErrMappingExists = errors.New("mapping for this group key and space already exists")
)

// Space is a membership scope. Exactly one moderator; the moderator is never
// duplicated in MemberIDs.
type Space struct {
	ID              uuid.UUID   `json:"id"`
	Name            string      `json:"name"`
	ModeratorUserID uuid.UUID   `json:"moderator_user_id"`
	MemberIDs       []uuid.UUID `json:"member_ids"`
	IsDeleted       bool        `json:"is_deleted"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// IsModerator reports whether userID moderates this space.
func (s *Space) IsModerator(userID uuid.UUID) bool {
	return s.ModeratorUserID == userID
}

// HasMember reports whether userID is in the member list. The moderator is
// not a listed member.
func (s *Space) HasMember(userID uuid.UUID) bool {
	for _, id := range s.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AddMember appends userID to the member list, preserving the invariants
// that the moderator is never listed and members are unique. Returns true
// when the list changed.
func (s *Space) AddMember(userID uuid.UUID) bool {
	if s.IsModerator(userID) || s.HasMember(userID) {
		return false
	}
	s.MemberIDs = append(s.MemberIDs, userID)
	return true
}

// RemoveMember drops userID from the member list. Returns true when the list
// changed. The moderator cannot be removed this way.
func (s *Space) RemoveMember(userID uuid.UUID) bool {
	for i, id := range s.MemberIDs {
		if id == userID {
			s.MemberIDs = append(s.MemberIDs[:i], s.MemberIDs[i+1:]...)
			return true
		}
	}
	return false
}

// GroupSpaceMapping binds one external group key to one space. Mappings are
// never hard-deleted; deactivation retains them for audit while excluding
// them from reconciliation.
type GroupSpaceMapping struct {
	ID        uuid.UUID `json:"id"`
	GroupKey  string    `json:"group_key"`
	SpaceID   uuid.UUID `json:"space_id"`
	IsActive  bool      `json:"is_active"`
	CreatedBy uuid.UUID `json:"created_by"`
	UpdatedBy uuid.UUID `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
