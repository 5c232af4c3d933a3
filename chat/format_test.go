package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStamp_MatchesReferenceLayout(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "2026-03-04 09:05:07", stamp(ts))
}

func TestWithTimestamp_PrefixesBracketedStamp(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 9, 5, 7, 0, time.UTC)
	got := withTimestamp(ts, "alice: hello")
	assert.Equal(t, "[2026-03-04 09:05:07] alice: hello", got)
}

func TestBracket_WrapsStampOnly(t *testing.T) {
	ts := time.Date(2026, time.March, 4, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "[2026-03-04 09:05:07]", bracket(ts))
}

func TestSystemBlock_EmptyRendersEMPTY(t *testing.T) {
	got := systemBlock("USERS", nil)
	assert.Equal(t, "*** USERS ***\nEMPTY", got)
}

func TestSystemBlock_ListsItemsInOrder(t *testing.T) {
	got := systemBlock("USERS", []string{"alice", "bob"})
	assert.Equal(t, "*** USERS ***\nalice\nbob", got)
}
