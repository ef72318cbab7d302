package tree

import (
	"testing"

	"github.com/detective/core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(nodes []*models.TreeNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func loadSample(t *testing.T) *Tree {
	t.Helper()
	tr, err := Load(SampleHierarchy())
	require.NoError(t, err)
	return tr
}

func TestFlatten(t *testing.T) {
	t.Run("pre-order with parents first", func(t *testing.T) {
		nodes := loadSample(t).Flatten()

		assert.Equal(t, []string{
			"root", "traffic", "organic", "direct", "social",
			"geography", "north_america", "usa", "canada", "europe", "asia",
			"devices", "mobile", "desktop", "tablet",
		}, ids(nodes))

		pos := make(map[string]int)
		for i, n := range nodes {
			pos[n.ID] = i
		}
		for _, n := range nodes {
			if n.Parent != "" {
				assert.Less(t, pos[n.Parent], pos[n.ID])
			}
		}
	})

	t.Run("restartable", func(t *testing.T) {
		root := loadSample(t).Root()

		assert.Equal(t, ids(Flatten(root)), ids(Flatten(root)))
	})

	t.Run("nil root", func(t *testing.T) {
		assert.Empty(t, Flatten(nil))
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		tr := loadSample(t)
		nodes := tr.Flatten()
		nodes[0] = nil

		assert.NotNil(t, tr.Flatten()[0])
	})
}

func TestFilter(t *testing.T) {
	nodes := loadSample(t).Flatten()

	tests := []struct {
		name   string
		mutate func(p *Predicate)
		want   []string
	}{
		{
			name:   "category",
			mutate: func(p *Predicate) { p.Category = "device" },
			want:   []string{"devices", "mobile", "desktop", "tablet"},
		},
		{
			name:   "hide healthy and warning",
			mutate: func(p *Predicate) { p.ShowHealthy = false; p.ShowWarning = false },
			want:   []string{"asia", "desktop"},
		},
		{
			name:   "inclusive value range",
			mutate: func(p *Predicate) { p.MinValue = 7000000; p.MaxValue = 15000000 },
			want:   []string{"social", "canada", "europe", "asia"},
		},
		{
			name:   "case-insensitive search",
			mutate: func(p *Predicate) { p.Query = "AMERICA" },
			want:   []string{"north_america"},
		},
		{
			name: "criteria are combined",
			mutate: func(p *Predicate) {
				p.Category = "geography"
				p.ShowHealthy = false
				p.Query = "p"
			},
			want: []string{"europe", "asia"},
		},
		{
			name:   "nothing matches",
			mutate: func(p *Predicate) { p.Query = "zzz" },
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPredicate()
			tt.mutate(&p)

			assert.Equal(t, tt.want, ids(Filter(nodes, p)))
		})
	}

	t.Run("default predicate keeps everything", func(t *testing.T) {
		assert.Len(t, Filter(nodes, DefaultPredicate()), len(nodes))
	})

	t.Run("idempotent", func(t *testing.T) {
		p := DefaultPredicate()
		p.ShowCritical = false
		p.MinValue = 5000000

		once := Filter(nodes, p)
		twice := Filter(once, p)

		assert.Equal(t, ids(once), ids(twice))
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, Filter(nil, DefaultPredicate()))
	})
}

func TestStatusCounts(t *testing.T) {
	counts := StatusCounts(loadSample(t).Flatten())

	assert.Equal(t, 9, counts[models.StatusHealthy])
	assert.Equal(t, 4, counts[models.StatusWarning])
	assert.Equal(t, 2, counts[models.StatusCritical])

	empty := StatusCounts(nil)
	assert.Equal(t, map[models.Status]int{
		models.StatusHealthy: 0, models.StatusWarning: 0, models.StatusCritical: 0,
	}, empty)
}

func TestBuildNavigationTree(t *testing.T) {
	t.Run("rebuilds nesting from the flat set", func(t *testing.T) {
		nav := BuildNavigationTree(loadSample(t).Flatten())

		require.Len(t, nav, 1)
		assert.Equal(t, "root", nav[0].Key)
		assert.Equal(t, "142.6M", nav[0].Value)
		require.Len(t, nav[0].Children, 3)
		assert.Equal(t, "geography", nav[0].Children[1].Key)
		assert.Equal(t, "north_america", nav[0].Children[1].Children[0].Key)
		assert.Len(t, nav[0].Children[1].Children[0].Children, 2)
	})

	t.Run("only level zero seeds the top", func(t *testing.T) {
		tr := loadSample(t)
		p := DefaultPredicate()
		p.Category = "device"

		assert.Empty(t, BuildNavigationTree(Filter(tr.Flatten(), p)))
	})

	t.Run("children of every status are kept", func(t *testing.T) {
		nav := BuildNavigationTree(loadSample(t).Flatten())

		devices := nav[0].Children[2]
		assert.Equal(t, "devices", devices.Key)
		require.Len(t, devices.Children, 3)
		assert.Equal(t, models.StatusCritical, devices.Children[1].Status)
	})

	t.Run("leaf has no children", func(t *testing.T) {
		nav := BuildNavigationTree(loadSample(t).Flatten())

		assert.Nil(t, nav[0].Children[0].Children[0].Children)
	})

	t.Run("empty set", func(t *testing.T) {
		assert.Empty(t, BuildNavigationTree(nil))
	})
}
