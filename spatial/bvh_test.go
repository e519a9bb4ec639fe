package spatial

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomBoxes(n int, seed int64) map[uint32]AABB {
	rng := rand.New(rand.NewSource(seed))
	boxes := make(map[uint32]AABB, n)
	for i := 0; i < n; i++ {
		min := Vec3{
			X: rng.Float32()*200 - 100,
			Y: rng.Float32()*200 - 100,
			Z: rng.Float32()*200 - 100,
		}
		size := Vec3{
			X: rng.Float32()*4 + 0.1,
			Y: rng.Float32()*4 + 0.1,
			Z: rng.Float32()*4 + 0.1,
		}
		boxes[(uint32)(i+1)] = AABB{Min: min, Max: min.Add(size)}
	}
	return boxes
}

func TestBVHQueryBeforeBuild(t *testing.T) {
	b := NewBVH()
	b.Insert(1, box(0, 0, 0, 1, 1, 1))

	require.False(t, b.IsBuilt())
	require.Empty(t, b.Query(box(-10, -10, -10, 10, 10, 10)))
	require.Empty(t, b.QueryRay(Vec3{0, 0, 5}, Vec3{0, 0, -1}, 100))
}

func TestBVHInsertQueryRoundTrip(t *testing.T) {
	b := NewBVH()
	boxes := randomBoxes(200, 1)
	for id, bounds := range boxes {
		b.Insert(id, bounds)
	}
	b.Build()
	require.True(t, b.IsBuilt())

	for id, bounds := range boxes {
		require.Contains(t, b.Query(bounds), id)
	}
}

func TestBVHEmptyRegionQuery(t *testing.T) {
	b := NewBVH()
	for id, bounds := range randomBoxes(100, 2) {
		b.Insert(id, bounds)
	}
	b.Build()

	// all generated boxes live in [-100, 105]
	require.Empty(t, b.Query(box(500, 500, 500, 600, 600, 600)))
}

func TestBVHQueryRay(t *testing.T) {
	b := NewBVH()
	b.Insert(1, box(0, 0, 0, 1, 1, 1))
	b.Insert(2, box(50, 50, 50, 51, 51, 51))
	b.Build()

	t.Run("ray through box center", func(t *testing.T) {
		hits := b.QueryRay(Vec3{0.5, 0.5, 5}, Vec3{0, 0, -1}, 10)
		require.Contains(t, hits, (uint32)(1))
		require.NotContains(t, hits, (uint32)(2))
	})

	t.Run("ray capped before the box", func(t *testing.T) {
		require.Empty(t, b.QueryRay(Vec3{0.5, 0.5, 5}, Vec3{0, 0, -1}, 2))
	})

	t.Run("ray parallel to a slab plane beside the box", func(t *testing.T) {
		require.Empty(t, b.QueryRay(Vec3{0, 5, 0}, Vec3{0, 0, 1}, 100))
	})

	t.Run("ray pointing away", func(t *testing.T) {
		require.Empty(t, b.QueryRay(Vec3{0.5, 0.5, 5}, Vec3{0, 0, 1}, 1000))
	})

	t.Run("origin inside the box", func(t *testing.T) {
		hits := b.QueryRay(Vec3{0.5, 0.5, 0.5}, Vec3{1, 0, 0}, 10)
		require.Contains(t, hits, (uint32)(1))
	})

	t.Run("diagonal ray", func(t *testing.T) {
		direction := Vec3{-49.5, -49.5, -49.5}.Normalized()
		hits := b.QueryRay(Vec3{50.5, 50.5, 50.5}, direction, 200)
		require.Contains(t, hits, (uint32)(1))
		require.Contains(t, hits, (uint32)(2))
	})
}

func TestBVHValidate(t *testing.T) {
	b := NewBVH()
	boxes := randomBoxes(150, 3)
	for id, bounds := range boxes {
		b.Insert(id, bounds)
	}

	t.Run("after build", func(t *testing.T) {
		b.Build()
		require.NoError(t, b.Validate())
	})

	t.Run("after update and refit", func(t *testing.T) {
		rng := rand.New(rand.NewSource(4))
		for id := range boxes {
			if rng.Intn(3) != 0 {
				continue
			}
			shift := Vec3{
				X: rng.Float32()*100 - 50,
				Y: rng.Float32()*100 - 50,
				Z: rng.Float32()*100 - 50,
			}
			bounds := boxes[id]
			b.UpdateObject(id, AABB{
				Min: bounds.Min.Add(shift),
				Max: bounds.Max.Add(shift),
			})
		}

		require.True(t, b.IsBuilt(), "update must not tear the tree down")
		b.Refit()
		require.NoError(t, b.Validate())
		require.Equal(t, 1, b.RefitCount())
	})

	t.Run("build resets the refit counter", func(t *testing.T) {
		b.Build()
		require.Equal(t, 0, b.RefitCount())
		require.NoError(t, b.Validate())
	})
}

func TestBVHRefitKeepsQueriesConservative(t *testing.T) {
	b := NewBVH()
	b.Insert(1, box(0, 0, 0, 1, 1, 1))
	b.Insert(2, box(10, 0, 0, 11, 1, 1))
	b.Insert(3, box(20, 0, 0, 21, 1, 1))
	b.Insert(4, box(30, 0, 0, 31, 1, 1))
	b.Insert(5, box(40, 0, 0, 41, 1, 1))
	b.Build()

	// move an object far outside the region it was built in
	b.UpdateObject(1, box(1000, 0, 0, 1001, 1, 1))
	b.Refit()

	require.Contains(t, b.Query(box(999, -1, -1, 1002, 2, 2)), (uint32)(1))
	require.NotContains(t, b.Query(box(-1, -1, -1, 2, 2, 2)), (uint32)(1))
	require.NoError(t, b.Validate())
}

func TestBVHRemove(t *testing.T) {
	b := NewBVH()
	bounds := box(0, 0, 0, 1, 1, 1)
	b.Insert(1, bounds)
	b.Insert(2, box(5, 5, 5, 6, 6, 6))
	b.Build()

	b.Remove(1)
	require.False(t, b.IsBuilt())
	b.Build()

	require.NotContains(t, b.Query(bounds), (uint32)(1))
	require.Equal(t, 1, b.Len())

	// unknown ids are a no-op
	b.Remove(99)
	b.Build()
	require.Equal(t, 1, b.Len())
}

func TestBVHUpdateUnknownID(t *testing.T) {
	b := NewBVH()
	b.UpdateObject(7, box(0, 0, 0, 1, 1, 1))
	require.Equal(t, 0, b.Len())
}

func TestBVHGridScenario(t *testing.T) {
	b := NewBVHWithLimits(4, 20)

	// 1000 unit cubes on a 10x10x10 grid with spacing 1
	id := (uint32)(0)
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			for z := 0; z < 10; z++ {
				id++
				min := Vec3{(float32)(x), (float32)(y), (float32)(z)}
				b.Insert(id, AABB{Min: min, Max: min.Add(Vec3{1, 1, 1})})
			}
		}
	}
	b.Build()

	// inset query box covering only cells [0..2) on each axis; neighbors
	// share faces, a box at the exact cell border would touch them too
	hits := b.Query(box(0.25, 0.25, 0.25, 1.75, 1.75, 1.75))
	require.Len(t, hits, 8)

	stats := b.Statistics()
	require.Equal(t, 1000, stats.TotalObjects)
	require.Equal(t, 1000, stats.TotalLeafObjects)
	require.InDelta(t, 250, stats.LeafNodes, 10)
	require.LessOrEqual(t, stats.MaxObjectsPerLeaf, 4)
	require.GreaterOrEqual(t, stats.MinObjectsPerLeaf, 3)
	require.Equal(t, 8, stats.MaxDepth)
	require.NoError(t, b.Validate())
}

func TestBVHStatisticsEmpty(t *testing.T) {
	b := NewBVH()
	b.Build()

	stats := b.Statistics()
	require.Zero(t, stats.TotalNodes)
	require.Zero(t, stats.TotalObjects)
	require.NoError(t, b.Validate())
}

func TestBVHClear(t *testing.T) {
	b := NewBVH()
	for id, bounds := range randomBoxes(50, 5) {
		b.Insert(id, bounds)
	}
	b.Build()

	b.Clear()
	require.Equal(t, 0, b.Len())
	require.False(t, b.IsBuilt())
	require.Empty(t, b.Query(box(-200, -200, -200, 200, 200, 200)))
}

func TestBVHSingleObject(t *testing.T) {
	b := NewBVH()
	b.Insert(42, box(-1, -1, -1, 1, 1, 1))
	b.Build()

	stats := b.Statistics()
	require.Equal(t, 1, stats.TotalNodes)
	require.Equal(t, 1, stats.LeafNodes)
	require.Equal(t, 0, stats.InternalNodes)
	require.Equal(t, []uint32{42}, b.Query(box(0, 0, 0, 2, 2, 2)))
}
