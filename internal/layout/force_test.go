package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSimulation(t *testing.T) *Simulation {
	t.Helper()
	return NewSimulation(sampleTree(t).Flatten(), DefaultForceConfig(testCanvas))
}

func TestNewSimulation(t *testing.T) {
	t.Run("one link per parent child pair", func(t *testing.T) {
		sim := sampleSimulation(t)

		assert.Len(t, sim.Links(), 14)
		assert.Len(t, sim.Positions(), 15)
		assert.Equal(t, 1.0, sim.Alpha())
	})

	t.Run("link strength follows endpoint degree", func(t *testing.T) {
		sim := sampleSimulation(t)
		first := sim.Links()[0]

		// root has three children, traffic has a parent and three children
		assert.InDelta(t, 1.0/3, first.Strength, 1e-9)
		assert.InDelta(t, 3.0/7, first.Bias, 1e-9)
	})

	t.Run("empty node set", func(t *testing.T) {
		sim := NewSimulation(nil, DefaultForceConfig(testCanvas))

		assert.NotPanics(t, sim.Step)
		assert.Empty(t, sim.Positions())
	})

	t.Run("same seed gives the same layout", func(t *testing.T) {
		a, b := sampleSimulation(t), sampleSimulation(t)
		a.Run(50)
		b.Run(50)

		assert.Equal(t, a.Positions(), b.Positions())
	})
}

func TestSimulationConverges(t *testing.T) {
	sim := sampleSimulation(t)
	sim.Run(1000)

	require.True(t, sim.Converged())
	assert.LessOrEqual(t, sim.Ticks(), 302)

	pos := sim.Positions()
	for id, p := range pos {
		assert.False(t, math.IsNaN(p.X) || math.IsNaN(p.Y), id)
	}
	for a, pa := range pos {
		for b, pb := range pos {
			if a == b {
				continue
			}
			assert.Greater(t, math.Hypot(pa.X-pb.X, pa.Y-pb.Y), 10.0, a+"/"+b)
		}
	}

	before := sim.Ticks()
	sim.Run(10)
	assert.Equal(t, before, sim.Ticks())
}

func TestSimulationPin(t *testing.T) {
	t.Run("pinned particle holds its position", func(t *testing.T) {
		sim := sampleSimulation(t)
		require.NoError(t, sim.Pin("usa", 100, 120))

		for i := 0; i < 20; i++ {
			sim.Step()
		}

		p, ok := sim.Particle("usa")
		require.True(t, ok)
		assert.Equal(t, 100.0, p.X)
		assert.Equal(t, 120.0, p.Y)
		assert.True(t, p.Fixed)
	})

	t.Run("pin reheats a converged simulation", func(t *testing.T) {
		sim := sampleSimulation(t)
		sim.Run(1000)
		require.True(t, sim.Converged())

		require.NoError(t, sim.Pin("root", 0, 0))

		assert.False(t, sim.Converged())
		assert.InDelta(t, 0.3, sim.Alpha(), 1e-9)
	})

	t.Run("unpin lets it cool again", func(t *testing.T) {
		sim := sampleSimulation(t)
		require.NoError(t, sim.Pin("root", 0, 0))
		require.NoError(t, sim.Unpin("root"))

		sim.Run(1000)

		p, _ := sim.Particle("root")
		assert.False(t, p.Fixed)
		assert.True(t, sim.Converged())
	})

	t.Run("alpha stays warm while another particle is pinned", func(t *testing.T) {
		sim := sampleSimulation(t)
		require.NoError(t, sim.Pin("root", 0, 0))
		require.NoError(t, sim.Pin("usa", 10, 10))
		require.NoError(t, sim.Unpin("root"))

		sim.Run(1000)

		assert.False(t, sim.Converged())
	})

	t.Run("unknown particle", func(t *testing.T) {
		sim := sampleSimulation(t)

		assert.ErrorIs(t, sim.Pin("missing", 0, 0), ErrUnknownParticle)
		assert.ErrorIs(t, sim.Unpin("missing"), ErrUnknownParticle)
	})
}
