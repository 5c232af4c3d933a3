package state_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avbezrukov/linechat/state"
	"github.com/avbezrukov/linechat/token"
)

func newTestSession(t *testing.T, historySize int) (*state.Session, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	sess := state.NewSession("127.0.0.1:1234", buf, historySize)
	sess.SetName("alice")
	return sess, buf
}

func TestSession_SendRawAppendsNewline(t *testing.T) {
	sess, buf := newTestSession(t, 20)
	require.NoError(t, sess.SendRaw("hello"))
	assert.Equal(t, "hello\n", buf.String())
}

func TestSession_PersonalHistoryIsBounded(t *testing.T) {
	sess, _ := newTestSession(t, 2)
	sess.AddToPersonalHistory("one")
	sess.AddToPersonalHistory("two")
	sess.AddToPersonalHistory("three")

	assert.Equal(t, []string{"two", "three"}, sess.PersonalHistory())
}

func TestSession_SeedPersonalHistory(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	sess.SeedPersonalHistory([]string{"a", "b"})
	sess.AddToPersonalHistory("c")
	assert.Equal(t, []string{"a", "b", "c"}, sess.PersonalHistory())
}

func TestSession_PendingDelaysAreLIFO(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	t1 := token.New()
	t2 := token.New()
	sess.PushDelay(t1)
	sess.PushDelay(t2)

	got, ok := sess.PopDelay()
	require.True(t, ok)
	assert.Same(t, t2, got)

	got, ok = sess.PopDelay()
	require.True(t, ok)
	assert.Same(t, t1, got)

	_, ok = sess.PopDelay()
	assert.False(t, ok)
}

func TestSession_RemoveDelay(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	t1 := token.New()
	t2 := token.New()
	sess.PushDelay(t1)
	sess.PushDelay(t2)

	sess.RemoveDelay(t1)

	got, ok := sess.PopDelay()
	require.True(t, ok)
	assert.Same(t, t2, got)
	_, ok = sess.PopDelay()
	assert.False(t, ok)
}

func TestSession_DrainDelays(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	sess.PushDelay(token.New())
	sess.PushDelay(token.New())

	toks := sess.DrainDelays()
	assert.Len(t, toks, 2)

	_, ok := sess.PopDelay()
	assert.False(t, ok)
}

func TestSession_AddReporterIsIdempotent(t *testing.T) {
	target, _ := newTestSession(t, 20)
	reporter, _ := newTestSession(t, 20)

	assert.True(t, target.AddReporter(reporter))
	assert.False(t, target.AddReporter(reporter))
	assert.Equal(t, 1, target.ReportCount())
	assert.True(t, target.HasReporter(reporter))
}

func TestSession_ClearReporters(t *testing.T) {
	target, _ := newTestSession(t, 20)
	reporter, _ := newTestSession(t, 20)
	target.AddReporter(reporter)

	target.ClearReporters()

	assert.Equal(t, 0, target.ReportCount())
	assert.False(t, target.HasReporter(reporter))
}

func TestSession_RemoveReporterFreeFunc(t *testing.T) {
	target, _ := newTestSession(t, 20)
	reporter, _ := newTestSession(t, 20)
	target.AddReporter(reporter)

	state.RemoveReporter(target, reporter)

	assert.Equal(t, 0, target.ReportCount())
}

func TestSession_BanUntil(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	now := time.Now()

	_, banned := sess.BanUntil(now)
	assert.False(t, banned)

	until := now.Add(10 * time.Minute)
	sess.Ban(until)

	got, banned := sess.BanUntil(now)
	require.True(t, banned)
	assert.Equal(t, until, got)

	_, banned = sess.BanUntil(until.Add(time.Second))
	assert.False(t, banned)
}

func TestSession_IncrementSpamAndCheck(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	now := time.Now()
	period := 10 * time.Second

	for i := 1; i <= 5; i++ {
		rejected, _ := sess.IncrementSpamAndCheck(now, 5, period)
		assert.False(t, rejected, "message %d should not be rejected", i)
	}

	// 6th message within the window exceeds the limit of 5.
	rejected, windowEnd := sess.IncrementSpamAndCheck(now, 5, period)
	assert.True(t, rejected)
	assert.Equal(t, now.Add(period), windowEnd)

	// After the window elapses, the counter resets.
	rejected, _ = sess.IncrementSpamAndCheck(windowEnd.Add(time.Millisecond), 5, period)
	assert.False(t, rejected)
}

func TestSession_ClosedDefaultsFalse(t *testing.T) {
	sess, _ := newTestSession(t, 20)
	assert.False(t, sess.Closed())
	sess.MarkClosed()
	assert.True(t, sess.Closed())
}

func TestSession_IDIsStableAndUnique(t *testing.T) {
	a, _ := newTestSession(t, 20)
	b, _ := newTestSession(t, 20)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, a.ID(), a.ID())
}
