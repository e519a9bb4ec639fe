package spatial

import (
	"math"
	"sort"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

// Config holds the tuning knobs of a Manager.
type Config struct {
	// WorldSize is the edge length of the cubic octree root volume,
	// centered on the origin.
	WorldSize float32

	// MaxObjectsPerNode caps octree node residency before subdivision.
	MaxObjectsPerNode int

	// MaxDepth caps octree subdivision depth.
	MaxDepth int

	// GridCellSize is the spatial hash cell edge used for dynamic objects.
	GridCellSize float32

	// MaxObjectsPerLeaf caps BVH leaf size.
	MaxObjectsPerLeaf int

	// BVHMaxDepth caps BVH depth.
	BVHMaxDepth int

	// RebuildInterval is the minimum number of frames between full rebuilds
	// of the static BVH. Between rebuilds moved statics are covered by a
	// refit.
	RebuildInterval uint64
}

func DefaultConfig() Config {
	return Config{
		WorldSize:         10000,
		MaxObjectsPerNode: 10,
		MaxDepth:          8,
		GridCellSize:      100,
		MaxObjectsPerLeaf: DefaultMaxObjectsPerLeaf,
		BVHMaxDepth:       DefaultBVHMaxDepth,
		RebuildInterval:   60,
	}
}

// Object is an entry tracked by a Manager. The index owns the stored copy;
// queries answer against the bounds last given, never against live caller
// state.
type Object struct {
	ID       uint32
	Position Vec3
	Bounds   AABB
	Layer    uint32
	Static   bool
}

// RaycastHit describes the closest AABB-level ray intersection.
type RaycastHit struct {
	ObjectID uint32
	Distance float32
	Point    Vec3
	Normal   Vec3
}

// Manager composes the three index structures behind one surface: static
// objects go to the octree and the BVH, dynamic objects to the spatial
// hash. Layer masks filter query results.
//
// Like the structures it owns, a Manager is not safe for concurrent use.
type Manager struct {
	id     string
	config Config

	octree *Octree
	hash   *SpatialHash
	bvh    *BVH

	objects     map[uint32]Object
	dirtyStatic map[uint32]struct{}
	ids         IDGenerator

	frame            uint64
	lastRebuildFrame uint64
}

func NewManager(config Config) *Manager {
	if config.WorldSize <= 0 {
		config.WorldSize = DefaultConfig().WorldSize
	}
	if config.GridCellSize <= 0 {
		config.GridCellSize = DefaultConfig().GridCellSize
	}
	if config.RebuildInterval == 0 {
		config.RebuildInterval = DefaultConfig().RebuildInterval
	}

	half := config.WorldSize / 2
	world := AABB{
		Min: Vec3{-half, -half, -half},
		Max: Vec3{half, half, half},
	}

	return &Manager{
		id:          uuid.New().String(),
		config:      config,
		octree:      NewOctree(world, config.MaxObjectsPerNode, config.MaxDepth),
		hash:        NewSpatialHash(config.GridCellSize),
		bvh:         NewBVHWithLimits(config.MaxObjectsPerLeaf, config.BVHMaxDepth),
		objects:     make(map[uint32]Object),
		dirtyStatic: make(map[uint32]struct{}),
	}
}

// UUID returns the instance id used to tag logs and metrics.
func (m *Manager) UUID() string {
	return m.id
}

// WorldBounds returns the octree root volume.
func (m *Manager) WorldBounds() AABB {
	return m.octree.Bounds()
}

// InsertObject registers the object with the structures matching its
// kind. It reports whether a static object landed inside the world bounds;
// dynamic objects always index.
//
// Re-inserting a known id replaces its placement, including when the
// Static flag flipped since the last insert.
func (m *Manager) InsertObject(o Object) bool {
	if prev, ok := m.objects[o.ID]; ok && prev.Static != o.Static {
		if prev.Static {
			m.octree.Remove(o.ID)
			m.bvh.Remove(o.ID)
			delete(m.dirtyStatic, o.ID)
		} else {
			m.hash.Remove(o.ID)
		}
	}
	m.objects[o.ID] = o

	if !o.Static {
		m.hash.Insert(o.ID, o.Position, o.Bounds)
		return true
	}

	m.bvh.Insert(o.ID, o.Bounds)
	inWorld := m.octree.Insert(o.ID, o.Bounds)
	if !inWorld {
		logs.WithTag("manager_id", m.id).
			WithTag("object_id", o.ID).
			Debug("static object outside world bounds")
	}
	return inWorld
}

// InsertNewObject allocates an id, inserts the object under it and returns
// the id. Callers using it should not also insert under ids they picked
// themselves, the two schemes can collide.
func (m *Manager) InsertNewObject(o Object) uint32 {
	o.ID = m.ids.Allocate()
	m.InsertObject(o)
	return o.ID
}

// RemoveObject drops the object everywhere and releases its id for reuse.
// Unknown ids are a no-op.
func (m *Manager) RemoveObject(id uint32) {
	o, ok := m.objects[id]
	if !ok {
		return
	}
	delete(m.objects, id)
	delete(m.dirtyStatic, id)
	m.ids.Release(id)

	if o.Static {
		m.octree.Remove(id)
		m.bvh.Remove(id)
		return
	}
	m.hash.Remove(id)
}

// UpdateObject records a new position and bounds. Statics are re-slotted in
// the octree right away; the BVH catches up at the next frame Update via
// refit or rebuild.
func (m *Manager) UpdateObject(id uint32, position Vec3, bounds AABB) {
	o, ok := m.objects[id]
	if !ok {
		return
	}
	o.Position = position
	o.Bounds = bounds
	m.objects[id] = o

	if o.Static {
		m.octree.Insert(id, bounds)
		m.bvh.UpdateObject(id, bounds)
		m.dirtyStatic[id] = struct{}{}
		return
	}
	m.hash.Update(id, position, bounds)
}

// Object returns the stored copy for the given id.
func (m *Manager) Object(id uint32) (Object, bool) {
	o, ok := m.objects[id]
	return o, ok
}

// QueryRegion returns the ids of all objects overlapping the box whose layer
// intersects layerMask, sorted and deduplicated.
func (m *Manager) QueryRegion(bounds AABB, layerMask uint32) []uint32 {
	candidates := m.octree.Query(bounds)
	candidates = append(candidates, m.hash.Query(bounds)...)

	var results []uint32
	for _, id := range candidates {
		o, ok := m.objects[id]
		if !ok || o.Layer&layerMask == 0 {
			continue
		}
		if o.Bounds.Intersects(bounds) {
			results = append(results, id)
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	return dedupeIDs(results)
}

// QuerySphere returns the ids of all matching objects whose position lies
// within radius of center.
func (m *Manager) QuerySphere(center Vec3, radius float32, layerMask uint32) []uint32 {
	sphereBounds := AABB{
		Min: center.Sub(Vec3{radius, radius, radius}),
		Max: center.Add(Vec3{radius, radius, radius}),
	}

	radiusSq := radius * radius
	var results []uint32
	for _, id := range m.QueryRegion(sphereBounds, layerMask) {
		o := m.objects[id]
		if o.Position.Sub(center).LengthSq() <= radiusSq {
			results = append(results, id)
		}
	}
	return results
}

// NearbyObjects returns the ids of all objects within radius of position,
// closest first, skipping any ids in exclude.
func (m *Manager) NearbyObjects(position Vec3, radius float32, exclude ...uint32) []uint32 {
	results := m.QuerySphere(position, radius, ^uint32(0))

	for _, excludeID := range exclude {
		for i, id := range results {
			if id == excludeID {
				results = append(results[:i], results[i+1:]...)
				break
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return m.distanceSqTo(results[i], position) < m.distanceSqTo(results[j], position)
	})
	return results
}

func (m *Manager) distanceSqTo(id uint32, position Vec3) float32 {
	o, ok := m.objects[id]
	if !ok {
		return (float32)(math.Inf(1))
	}
	return o.Position.Sub(position).LengthSq()
}

// Raycast returns the closest matching object hit by the ray within
// maxDistance, at AABB precision. Static candidates come from the BVH,
// which is built on demand when mutations left it dirty; dynamic candidates
// from the hash grid.
func (m *Manager) Raycast(origin, direction Vec3, maxDistance float32, layerMask uint32) (RaycastHit, bool) {
	if !m.bvh.IsBuilt() {
		m.bvh.Build()
		instrumentBuild()
		m.clearDirtyStatic()
	}

	direction = direction.Normalized()
	rayEnd := origin.Add(direction.Scale(maxDistance))
	rayBounds := AABBFromPoints([]Vec3{origin, rayEnd})

	candidates := m.bvh.QueryRay(origin, direction, maxDistance)
	candidates = append(candidates, m.hash.Query(rayBounds)...)

	var closest RaycastHit
	found := false
	for _, id := range candidates {
		o, ok := m.objects[id]
		if !ok || o.Layer&layerMask == 0 {
			continue
		}

		t, hit := intersectRayAABB(origin, direction, o.Bounds, maxDistance)
		if !hit {
			continue
		}
		if !found || t < closest.Distance {
			point := origin.Add(direction.Scale(t))
			closest = RaycastHit{
				ObjectID: id,
				Distance: t,
				Point:    point,
				Normal:   aabbFaceNormal(o.Bounds, point),
			}
			found = true
		}
	}
	return closest, found
}

// aabbFaceNormal picks the outward normal of the box face closest to the hit
// point.
func aabbFaceNormal(bounds AABB, point Vec3) Vec3 {
	center := bounds.Center()
	size := bounds.Size()
	local := point.Sub(center)

	nx := faceCloseness(local.X, size.X)
	ny := faceCloseness(local.Y, size.Y)
	nz := faceCloseness(local.Z, size.Z)

	if nx >= ny && nx >= nz {
		return Vec3{X: sign(local.X)}
	}
	if ny >= nz {
		return Vec3{Y: sign(local.Y)}
	}
	return Vec3{Z: sign(local.Z)}
}

// faceCloseness is 1 when the point sits on one of the axis' two faces and 0
// at the box center.
func faceCloseness(local, size float32) float32 {
	if size == 0 {
		return 1
	}
	return (float32)(math.Abs((float64)(local / size * 2)))
}

func sign(v float32) float32 {
	if v < 0 {
		return -1
	}
	return 1
}

// Update advances the frame. Moved statics trigger a refit every frame and
// a full rebuild once RebuildInterval frames have passed since the last
// one; the hash grid ages out empty cells.
func (m *Manager) Update() {
	m.frame++

	if len(m.dirtyStatic) > 0 {
		if m.frame-m.lastRebuildFrame > m.config.RebuildInterval || !m.bvh.IsBuilt() {
			m.bvh.Build()
			instrumentBuild()
			m.clearDirtyStatic()
		} else {
			m.bvh.Refit()
			instrumentRefit()
		}
	}

	m.hash.AdvanceFrame()
	m.hash.CleanupEmptyCells()
}

// ValidateStatic checks the static BVH's containment invariant, see
// BVH.Validate. A tree that was never built passes.
func (m *Manager) ValidateStatic() error {
	if !m.bvh.IsBuilt() {
		return nil
	}
	return m.bvh.Validate()
}

func (m *Manager) clearDirtyStatic() {
	m.dirtyStatic = make(map[uint32]struct{})
	m.lastRebuildFrame = m.frame
}

// ManagerStats aggregates the statistics of all owned structures.
type ManagerStats struct {
	TotalObjects     int
	StaticObjects    int
	DynamicObjects   int
	DirtyStatics     int
	Frame            uint64
	RefitsSinceBuild int

	BVH    Stats
	Octree Stats
	Hash   HashStats
}

func (m *Manager) Statistics() ManagerStats {
	stats := ManagerStats{
		TotalObjects:     len(m.objects),
		DirtyStatics:     len(m.dirtyStatic),
		Frame:            m.frame,
		RefitsSinceBuild: m.bvh.RefitCount(),
		BVH:              m.bvh.Statistics(),
		Octree:           m.octree.Statistics(),
		Hash:             m.hash.Statistics(),
	}
	for _, o := range m.objects {
		if o.Static {
			stats.StaticObjects++
		} else {
			stats.DynamicObjects++
		}
	}
	return stats
}

func dedupeIDs(sorted []uint32) []uint32 {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, id := range sorted[1:] {
		if id != out[len(out)-1] {
			out = append(out, id)
		}
	}
	return out
}
