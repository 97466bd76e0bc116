package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInviteChannelRoundTrip(t *testing.T) {
	channel := InviteChannelFor("node123")
	assert.Equal(t, "@invite:node123", channel)

	target, ok := InviteTarget(channel)
	assert.True(t, ok)
	assert.Equal(t, "node123", target)
}

func TestInviteTargetRejectsOrdinaryChannel(t *testing.T) {
	_, ok := InviteTarget("general")
	assert.False(t, ok)

	_, ok = InviteTarget(InviteChannelPrefix)
	assert.False(t, ok, "bare prefix with no node id is not a valid invite channel")
}
