package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pointBounds(p Vec3, half float32) AABB {
	return AABB{
		Min: p.Sub(Vec3{half, half, half}),
		Max: p.Add(Vec3{half, half, half}),
	}
}

func TestSpatialHashInsertQuery(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	h.Insert(2, Vec3{55, 5, 5}, pointBounds(Vec3{55, 5, 5}, 1))

	require.Equal(t, 2, h.Len())

	hits := h.Query(box(0, 0, 0, 9, 9, 9))
	require.Equal(t, []uint32{1}, hits)

	hits = h.Query(box(0, 0, 0, 60, 9, 9))
	require.ElementsMatch(t, []uint32{1, 2}, hits)
}

func TestSpatialHashSpanningObject(t *testing.T) {
	h := NewSpatialHash(10)

	// overlaps four cells in the xy plane, must come back exactly once
	h.Insert(1, Vec3{10, 10, 5}, box(8, 8, 4, 12, 12, 6))

	hits := h.Query(box(0, 0, 0, 20, 20, 10))
	require.Equal(t, []uint32{1}, hits)

	require.Contains(t, h.Query(box(0, 0, 0, 5, 5, 5)), (uint32)(1))
	require.Contains(t, h.Query(box(15, 15, 0, 18, 18, 5)), (uint32)(1))
}

func TestSpatialHashRemove(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	h.Remove(1)

	require.Equal(t, 0, h.Len())
	require.Empty(t, h.Query(box(0, 0, 0, 9, 9, 9)))

	// unknown ids are a no-op
	h.Remove(42)
}

func TestSpatialHashUpdateMovesCells(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	h.Update(1, Vec3{95, 5, 5}, pointBounds(Vec3{95, 5, 5}, 1))

	require.Empty(t, h.Query(box(0, 0, 0, 9, 9, 9)))
	require.Equal(t, []uint32{1}, h.Query(box(90, 0, 0, 99, 9, 9)))

	// update of an unknown id behaves like an insert
	h.Update(2, Vec3{15, 15, 15}, pointBounds(Vec3{15, 15, 15}, 1))
	require.Equal(t, []uint32{2}, h.Query(box(10, 10, 10, 19, 19, 19)))
}

func TestSpatialHashUpdateSameCell(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	cells := h.ActiveCellCount()

	h.Update(1, Vec3{6, 6, 6}, pointBounds(Vec3{6, 6, 6}, 1))

	require.Equal(t, cells, h.ActiveCellCount())
	require.Equal(t, []uint32{1}, h.Query(box(0, 0, 0, 9, 9, 9)))
}

func TestSpatialHashQuerySphere(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{0, 0, 0}, pointBounds(Vec3{0, 0, 0}, 1))
	h.Insert(2, Vec3{3, 0, 0}, pointBounds(Vec3{3, 0, 0}, 1))
	h.Insert(3, Vec3{0, 20, 0}, pointBounds(Vec3{0, 20, 0}, 1))

	hits := h.QuerySphere(Vec3{0, 0, 0}, 5)
	require.ElementsMatch(t, []uint32{1, 2}, hits)

	// exactly on the radius counts
	hits = h.QuerySphere(Vec3{0, 0, 0}, 20)
	require.ElementsMatch(t, []uint32{1, 2, 3}, hits)

	require.Empty(t, h.QuerySphere(Vec3{100, 100, 100}, 5))
}

func TestSpatialHashNearbyObjects(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{1, 0, 0}, pointBounds(Vec3{1, 0, 0}, 0.5))
	h.Insert(2, Vec3{4, 0, 0}, pointBounds(Vec3{4, 0, 0}, 0.5))
	h.Insert(3, Vec3{2, 0, 0}, pointBounds(Vec3{2, 0, 0}, 0.5))

	neighbors := h.NearbyObjects(Vec3{0, 0, 0}, 10, -1)
	require.Len(t, neighbors, 3)
	require.Equal(t, (uint32)(1), neighbors[0].ID)
	require.Equal(t, (uint32)(3), neighbors[1].ID)
	require.Equal(t, (uint32)(2), neighbors[2].ID)
	require.InDelta(t, 1, neighbors[0].Distance, 1e-5)

	capped := h.NearbyObjects(Vec3{0, 0, 0}, 10, 2)
	require.Len(t, capped, 2)
	require.Equal(t, (uint32)(1), capped[0].ID)
}

func TestSpatialHashCellAging(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	h.Remove(1)
	require.Equal(t, 1, h.ActiveCellCount())

	// not stale yet
	for i := 0; i < cleanupFrameThreshold-1; i++ {
		h.AdvanceFrame()
	}
	h.CleanupEmptyCells()
	require.Equal(t, 1, h.ActiveCellCount())

	h.AdvanceFrame()
	h.CleanupEmptyCells()
	require.Equal(t, 0, h.ActiveCellCount())
}

func TestSpatialHashCleanupKeepsOccupiedCells(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	for i := 0; i < cleanupFrameThreshold*2; i++ {
		h.AdvanceFrame()
	}
	h.CleanupEmptyCells()

	require.Equal(t, 1, h.ActiveCellCount())
	require.Equal(t, []uint32{1}, h.Query(box(0, 0, 0, 9, 9, 9)))
}

func TestSpatialHashStatistics(t *testing.T) {
	h := NewSpatialHash(10)

	h.Insert(1, Vec3{5, 5, 5}, pointBounds(Vec3{5, 5, 5}, 1))
	h.Insert(2, Vec3{6, 6, 6}, pointBounds(Vec3{6, 6, 6}, 1))
	h.Insert(3, Vec3{55, 5, 5}, pointBounds(Vec3{55, 5, 5}, 1))

	stats := h.Statistics()
	require.Equal(t, 2, stats.OccupiedCells)
	require.Equal(t, 3, stats.TotalObjects)
	require.Equal(t, 2, stats.MaxObjectsPerCell)
	require.Equal(t, 1, stats.MinObjectsPerCell)
	require.InDelta(t, 1.5, stats.AverageObjectsPerCell, 1e-5)
	require.Equal(t, (float32)(10), stats.CellSize)
}
