package spaces

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAddMemberMaintainsInvariants(t *testing.T) {
	moderator := uuid.New()
	member := uuid.New()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: moderator}

	assert.True(t, space.AddMember(member))
	assert.True(t, space.HasMember(member))

	// duplicate add is a no-op
	assert.False(t, space.AddMember(member))
	assert.Len(t, space.MemberIDs, 1)

	// the moderator never appears in the member list
	assert.False(t, space.AddMember(moderator))
	assert.False(t, space.HasMember(moderator))
	assert.True(t, space.IsModerator(moderator))
}

func TestRemoveMember(t *testing.T) {
	member := uuid.New()
	other := uuid.New()
	space := &Space{ID: uuid.New(), Name: "Backend", ModeratorUserID: uuid.New()}
	space.AddMember(member)
	space.AddMember(other)

	assert.True(t, space.RemoveMember(member))
	assert.False(t, space.HasMember(member))
	assert.True(t, space.HasMember(other))

	// removing a non-member is a no-op
	assert.False(t, space.RemoveMember(member))
}
