package spatial

import (
	"math"
	"sort"
)

// cleanupFrameThreshold is how many frames an empty cell survives after its
// last access before CleanupEmptyCells reclaims it.
const cleanupFrameThreshold = 300

type gridCell struct {
	X int32
	Y int32
	Z int32
}

func cellAt(p Vec3, cellSize float32) gridCell {
	return gridCell{
		X: (int32)(math.Floor((float64)(p.X / cellSize))),
		Y: (int32)(math.Floor((float64)(p.Y / cellSize))),
		Z: (int32)(math.Floor((float64)(p.Z / cellSize))),
	}
}

type gridBucket struct {
	objects      map[uint32]struct{}
	lastAccessed uint64
}

// SpatialHash is an unbounded hash grid over fixed-size cubic cells, suited
// to fast-moving objects: insert and remove only touch the cells the object
// overlaps, there is no tree to rebuild.
//
// Like the tree indexes it is not safe for concurrent use.
type SpatialHash struct {
	cellSize    float32
	buckets     map[gridCell]*gridBucket
	positions   map[uint32]Vec3
	objectCells map[uint32][]gridCell
	frame       uint64
}

func NewSpatialHash(cellSize float32) *SpatialHash {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialHash{
		cellSize:    cellSize,
		buckets:     make(map[gridCell]*gridBucket),
		positions:   make(map[uint32]Vec3),
		objectCells: make(map[uint32][]gridCell),
	}
}

// Insert registers the object in every cell its bounds overlap, replacing
// any previous placement for the same id.
func (h *SpatialHash) Insert(id uint32, position Vec3, bounds AABB) {
	h.Remove(id)

	cells := h.overlappingCells(bounds)
	for _, cell := range cells {
		bucket := h.bucket(cell)
		bucket.objects[id] = struct{}{}
		bucket.lastAccessed = h.frame
	}

	h.positions[id] = position
	h.objectCells[id] = cells
}

func (h *SpatialHash) bucket(cell gridCell) *gridBucket {
	bucket, ok := h.buckets[cell]
	if !ok {
		bucket = &gridBucket{objects: make(map[uint32]struct{})}
		h.buckets[cell] = bucket
	}
	return bucket
}

// Remove drops the object from all cells it occupies. Unknown ids are a
// no-op.
func (h *SpatialHash) Remove(id uint32) {
	cells, ok := h.objectCells[id]
	if !ok {
		return
	}
	for _, cell := range cells {
		if bucket, ok := h.buckets[cell]; ok {
			delete(bucket.objects, id)
		}
	}
	delete(h.objectCells, id)
	delete(h.positions, id)
}

// Update moves the object to the cells its new bounds overlap, touching only
// the cells that changed.
func (h *SpatialHash) Update(id uint32, position Vec3, bounds AABB) {
	oldCells, ok := h.objectCells[id]
	if !ok {
		h.Insert(id, position, bounds)
		return
	}

	newCells := h.overlappingCells(bounds)
	h.positions[id] = position

	if equalCells(oldCells, newCells) {
		return
	}

	oldSet := make(map[gridCell]struct{}, len(oldCells))
	for _, cell := range oldCells {
		oldSet[cell] = struct{}{}
	}
	newSet := make(map[gridCell]struct{}, len(newCells))
	for _, cell := range newCells {
		newSet[cell] = struct{}{}
	}

	for _, cell := range oldCells {
		if _, keep := newSet[cell]; keep {
			continue
		}
		if bucket, ok := h.buckets[cell]; ok {
			delete(bucket.objects, id)
		}
	}
	for _, cell := range newCells {
		if _, had := oldSet[cell]; had {
			continue
		}
		bucket := h.bucket(cell)
		bucket.objects[id] = struct{}{}
		bucket.lastAccessed = h.frame
	}

	h.objectCells[id] = newCells
}

// Query returns the ids of all objects registered in cells overlapping the
// given box. Results are cell-level candidates, an object near a cell border
// can be reported without its exact bounds overlapping the box.
func (h *SpatialHash) Query(bounds AABB) []uint32 {
	seen := make(map[uint32]struct{})
	for _, cell := range h.overlappingCells(bounds) {
		bucket, ok := h.buckets[cell]
		if !ok {
			continue
		}
		for id := range bucket.objects {
			seen[id] = struct{}{}
		}
	}

	results := make([]uint32, 0, len(seen))
	for id := range seen {
		results = append(results, id)
	}
	return results
}

// QuerySphere returns the ids of all objects whose registered position lies
// within radius of center.
func (h *SpatialHash) QuerySphere(center Vec3, radius float32) []uint32 {
	sphereBounds := AABB{
		Min: center.Sub(Vec3{radius, radius, radius}),
		Max: center.Add(Vec3{radius, radius, radius}),
	}

	radiusSq := radius * radius
	var results []uint32
	for _, id := range h.Query(sphereBounds) {
		position, ok := h.positions[id]
		if !ok {
			continue
		}
		if position.Sub(center).LengthSq() <= radiusSq {
			results = append(results, id)
		}
	}
	return results
}

// Neighbor pairs an object id with its distance from a query position.
type Neighbor struct {
	ID       uint32
	Distance float32
}

// NearbyObjects returns up to maxResults objects within radius of position,
// closest first.
func (h *SpatialHash) NearbyObjects(position Vec3, radius float32, maxResults int) []Neighbor {
	var neighbors []Neighbor
	for _, id := range h.QuerySphere(position, radius) {
		objPosition, ok := h.positions[id]
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{
			ID:       id,
			Distance: objPosition.Sub(position).Length(),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Distance < neighbors[j].Distance
	})
	if maxResults >= 0 && len(neighbors) > maxResults {
		neighbors = neighbors[:maxResults]
	}
	return neighbors
}

func (h *SpatialHash) overlappingCells(bounds AABB) []gridCell {
	minCell := cellAt(bounds.Min, h.cellSize)
	maxCell := cellAt(bounds.Max, h.cellSize)

	cells := make([]gridCell, 0, 8)
	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				cells = append(cells, gridCell{X: x, Y: y, Z: z})
			}
		}
	}
	return cells
}

func equalCells(a, b []gridCell) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AdvanceFrame ticks the frame counter used for cell aging.
func (h *SpatialHash) AdvanceFrame() {
	h.frame++
}

// CleanupEmptyCells reclaims cells that have been empty and untouched for
// longer than the aging threshold.
func (h *SpatialHash) CleanupEmptyCells() {
	for cell, bucket := range h.buckets {
		if len(bucket.objects) == 0 && h.frame-bucket.lastAccessed >= cleanupFrameThreshold {
			delete(h.buckets, cell)
		}
	}
}

// ActiveCellCount returns the number of allocated cells.
func (h *SpatialHash) ActiveCellCount() int {
	return len(h.buckets)
}

// Len returns the number of registered objects.
func (h *SpatialHash) Len() int {
	return len(h.positions)
}

// HashStats describes occupancy of the hash grid.
type HashStats struct {
	TotalCells            int
	OccupiedCells         int
	EmptyCells            int
	TotalObjects          int
	AverageObjectsPerCell float32
	MaxObjectsPerCell     int
	MinObjectsPerCell     int
	CellSize              float32
}

func (h *SpatialHash) Statistics() HashStats {
	stats := HashStats{
		TotalCells: len(h.buckets),
		CellSize:   h.cellSize,
	}

	for _, bucket := range h.buckets {
		count := len(bucket.objects)
		stats.TotalObjects += count
		if count == 0 {
			continue
		}
		if stats.OccupiedCells == 0 {
			stats.MinObjectsPerCell = count
		} else {
			stats.MinObjectsPerCell = min(stats.MinObjectsPerCell, count)
		}
		stats.OccupiedCells++
		stats.MaxObjectsPerCell = max(stats.MaxObjectsPerCell, count)
	}

	stats.EmptyCells = stats.TotalCells - stats.OccupiedCells
	if stats.OccupiedCells > 0 {
		stats.AverageObjectsPerCell = (float32)(stats.TotalObjects) / (float32)(stats.OccupiedCells)
	}
	return stats
}
