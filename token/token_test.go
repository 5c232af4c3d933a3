package token_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avbezrukov/linechat/token"
)

func TestToken_InitialState(t *testing.T) {
	tok := token.New()

	assert.True(t, tok.IsActive())
	assert.False(t, tok.IsCompleted())
	assert.False(t, tok.IsCancelled())
}

func TestToken_StateAfterCancel(t *testing.T) {
	tok := token.New()
	tok.Cancel()

	assert.False(t, tok.IsActive())
	assert.False(t, tok.IsCompleted())
	assert.True(t, tok.IsCancelled())
}

func TestToken_StateAfterComplete(t *testing.T) {
	tok := token.New()
	tok.Complete()

	assert.False(t, tok.IsActive())
	assert.True(t, tok.IsCompleted())
	assert.False(t, tok.IsCancelled())
}

func TestToken_StateImmutableAfterCancel(t *testing.T) {
	tok := token.New()
	tok.Cancel()
	tok.Complete()

	assert.False(t, tok.IsActive())
	assert.False(t, tok.IsCompleted())
	assert.True(t, tok.IsCancelled())
}

func TestToken_StateImmutableAfterComplete(t *testing.T) {
	tok := token.New()
	tok.Complete()
	tok.Cancel()

	assert.False(t, tok.IsActive())
	assert.True(t, tok.IsCompleted())
	assert.False(t, tok.IsCancelled())
}

func TestToken_CallbacksCalledOnCancel(t *testing.T) {
	var counter int32
	cb := func() { atomic.AddInt32(&counter, 1) }

	tok := token.New()
	tok.OnCancel(cb)
	tok.OnCancel(cb)

	tok.Cancel()

	assert.EqualValues(t, 2, atomic.LoadInt32(&counter))
}

// TestToken_CallbackNotCalledWhenComplete preserves the distilled spec's
// REDESIGN FLAG: unlike the original source, OnCancel never fires a callback
// when the token is already completed — only on the cancelled path.
func TestToken_CallbackNotCalledWhenComplete(t *testing.T) {
	var counter int32
	cb := func() { atomic.AddInt32(&counter, 1) }

	tok := token.New()
	tok.Complete()
	tok.OnCancel(cb)

	assert.EqualValues(t, 0, atomic.LoadInt32(&counter))
}

func TestToken_RemoveCallback(t *testing.T) {
	var counter int32
	cb := func() { atomic.AddInt32(&counter, 1) }

	tok := token.New()
	tok.OnCancel(cb)
	h2 := tok.OnCancel(cb)
	tok.RemoveCallback(h2)

	tok.Cancel()

	assert.EqualValues(t, 1, atomic.LoadInt32(&counter))
}

func TestToken_CallbacksNotCalledTwice(t *testing.T) {
	var counter int32
	cb := func() { atomic.AddInt32(&counter, 1) }

	tok := token.New()
	tok.OnCancel(cb)
	tok.OnCancel(cb)

	tok.Cancel()
	tok.Cancel()

	assert.EqualValues(t, 2, atomic.LoadInt32(&counter))
}

func TestToken_OnCancelFiresImmediatelyWhenAlreadyCancelled(t *testing.T) {
	var counter int32
	cb := func() { atomic.AddInt32(&counter, 1) }

	tok := token.New()
	tok.Cancel()
	tok.OnCancel(cb)

	assert.EqualValues(t, 1, atomic.LoadInt32(&counter))
}

func TestToken_RemoveCallbackUnknownHandleIsNoop(t *testing.T) {
	tok := token.New()
	assert.NotPanics(t, func() {
		tok.RemoveCallback(999)
		tok.RemoveCallback(0)
	})
}
