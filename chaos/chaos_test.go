package chaos

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRandom_ClampsProbability(t *testing.T) {
	assert.Equal(t, 0.0, NewRandom(-0.5).Probability())
	assert.Equal(t, 1.0, NewRandom(3).Probability())
	assert.Equal(t, DefaultProbability, NewRandom(DefaultProbability).Probability())
}

func TestRandom_Extremes(t *testing.T) {
	never := NewRandom(0)
	always := NewRandom(1)

	for i := 0; i < 1000; i++ {
		require.False(t, never.ShouldFail(), "p=0 must never fail")
		require.True(t, always.ShouldFail(), "p=1 must always fail")
	}
}

func TestRandom_ThresholdUsesDraw(t *testing.T) {
	r := NewRandom(0.10)

	r.draw = func() float64 { return 0.0999 }
	assert.True(t, r.ShouldFail())

	r.draw = func() float64 { return 0.10 }
	assert.False(t, r.ShouldFail())
}

func TestRandom_ConvergesNearProbability(t *testing.T) {
	const samples = 20000

	r := NewRandom(DefaultProbability)
	failures := 0
	for i := 0; i < samples; i++ {
		if r.ShouldFail() {
			failures++
		}
	}

	// The standard deviation of the observed rate is about 0.002 here.
	rate := float64(failures) / samples
	assert.InDelta(t, DefaultProbability, rate, 0.02, "observed failure rate %.4f", rate)
}

func TestRandom_ConcurrentUse(t *testing.T) {
	r := NewRandom(0.5)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				r.ShouldFail()
			}
		}()
	}
	wg.Wait()
}

func TestStubs(t *testing.T) {
	assert.False(t, Never.ShouldFail())
	assert.True(t, Always.ShouldFail())
}

func TestSequence(t *testing.T) {
	s := NewSequence(true, false, true)

	assert.True(t, s.ShouldFail())
	assert.False(t, s.ShouldFail())
	assert.True(t, s.ShouldFail())
	assert.False(t, s.ShouldFail(), "exhausted sequence returns false")
	assert.Equal(t, 4, s.Calls())
}
