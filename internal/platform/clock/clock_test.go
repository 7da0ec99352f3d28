package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMock_Advance(t *testing.T) {
	start := time.Unix(1700000000, 0)
	m := NewMock(start)

	assert.Equal(t, start, m.Now())
	m.Advance(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), m.Now())

	assert.Panics(t, func() { m.Advance(-time.Second) })
}

func TestMock_ZeroStart(t *testing.T) {
	assert.False(t, NewMock(time.Time{}).Now().IsZero())
}

func TestMock_Step(t *testing.T) {
	m := NewMock(time.Time{})
	m.SetStep(10 * time.Millisecond)

	start := m.Now()
	assert.Equal(t, 10*time.Millisecond, Since(m, start))
	assert.Equal(t, 20*time.Millisecond, Since(m, start))

	assert.Panics(t, func() { m.SetStep(-time.Millisecond) })
}

func TestSystem_Monotonic(t *testing.T) {
	var c Clock = System{}
	a := c.Now()
	b := c.Now()
	assert.False(t, b.Before(a))
	assert.GreaterOrEqual(t, Since(c, a), time.Duration(0))
}
