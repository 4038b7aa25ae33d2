package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

func record(l *Lines) *[]core.Segment {
	var got []core.Segment
	l.OnResult(func(s core.Segment) { got = append(got, s) })
	return &got
}

func TestFeedEmitsInterimThenFinal(t *testing.T) {
	l := NewLines(0)
	got := record(l)
	require.NoError(t, l.Start())

	assert.True(t, l.Feed("  hello   there friend "))
	assert.Equal(t, []core.Segment{
		{Text: "hello"},
		{Text: "hello there"},
		{Text: "hello there friend ", Final: true},
	}, *got)
}

func TestFeedIgnoredWhenStopped(t *testing.T) {
	l := NewLines(0)
	got := record(l)

	assert.False(t, l.Feed("hello"))
	require.NoError(t, l.Start())
	assert.False(t, l.Feed("   "))
	l.Stop()
	l.Stop()
	assert.False(t, l.Feed("hello"))
	assert.Empty(t, *got)
}

func TestSessionLimitEndsRecognition(t *testing.T) {
	l := NewLines(2)
	record(l)
	ends := 0
	l.OnEnd(func() { ends++ })
	require.NoError(t, l.Start())

	assert.True(t, l.Feed("one"))
	assert.Equal(t, 0, ends)
	assert.True(t, l.Feed("two"))
	assert.Equal(t, 1, ends)
	assert.False(t, l.Running())
	assert.False(t, l.Feed("three"))

	require.NoError(t, l.Start())
	assert.True(t, l.Feed("three"))
	assert.Equal(t, 1, ends)
}

func TestDisabled(t *testing.T) {
	l := &Lines{Disabled: true}
	assert.ErrorIs(t, l.Start(), domain.ErrRecognitionUnsupported)
	assert.False(t, l.Running())
}

func TestPermissionFailureStops(t *testing.T) {
	l := NewLines(0)
	var errs []error
	l.OnError(func(err error) { errs = append(errs, err) })
	require.NoError(t, l.Start())

	l.Fail(domain.ErrRecognitionPermissionDenied)
	assert.False(t, l.Running())
	assert.Equal(t, []error{domain.ErrRecognitionPermissionDenied}, errs)
}
