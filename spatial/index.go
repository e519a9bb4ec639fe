package spatial

// Index is the uniform insert/remove/query contract exposed to culling,
// broad-phase collision and ray-picking callers, regardless of the backing
// structure.
//
// Implementations follow the same access discipline as the backing
// structures: one mutation/commit phase at a time, queries only against a
// committed index.
type Index interface {
	// Insert registers bounds for the given id, overwriting any previous
	// bounds. It reports whether the object was indexed; an octree-backed
	// index returns false for bounds outside the root volume.
	Insert(id uint32, bounds AABB) bool

	// Remove drops the given id. Unknown ids are a no-op.
	Remove(id uint32)

	// Update replaces the stored bounds for a known id.
	Update(id uint32, bounds AABB)

	// Query returns the ids of all objects whose stored bounds overlap the
	// given box.
	Query(bounds AABB) []uint32

	// QueryRay returns the ids of all objects whose stored bounds are hit
	// by the ray within maxDistance. Hits are AABB-level only.
	QueryRay(origin, direction Vec3, maxDistance float32) []uint32

	// Commit applies pending structural work. Callers that batch mutations
	// invoke it once per frame; queries also trigger it implicitly.
	Commit()

	// Clear drops all indexed objects.
	Clear()

	// Statistics reports the backing structure's shape.
	Statistics() Stats
}

// BVHIndex adapts a BVH to the Index contract, hiding its dirty/built state
// machine: the tree is rebuilt automatically before the first query after
// any mutation.
type BVHIndex struct {
	tree *BVH
}

func NewBVHIndex() *BVHIndex {
	return &BVHIndex{tree: NewBVH()}
}

func NewBVHIndexWithLimits(maxObjectsPerLeaf, maxDepth int) *BVHIndex {
	return &BVHIndex{tree: NewBVHWithLimits(maxObjectsPerLeaf, maxDepth)}
}

func (i *BVHIndex) Insert(id uint32, bounds AABB) bool {
	i.tree.Insert(id, bounds)
	instrumentObjectCount(structureBVH, i.tree.Len())
	return true
}

func (i *BVHIndex) Remove(id uint32) {
	i.tree.Remove(id)
	instrumentObjectCount(structureBVH, i.tree.Len())
}

// Update stores new bounds for the id. The rebuild is deferred to the next
// Commit or query like any other mutation, so partition quality does not
// degrade the way a bare refit lets it.
func (i *BVHIndex) Update(id uint32, bounds AABB) {
	i.tree.UpdateObject(id, bounds)
	i.tree.built = false
}

func (i *BVHIndex) Query(bounds AABB) []uint32 {
	i.Commit()
	instrumentQuery(structureBVH)
	return i.tree.Query(bounds)
}

func (i *BVHIndex) QueryRay(origin, direction Vec3, maxDistance float32) []uint32 {
	i.Commit()
	instrumentQuery(structureBVH)
	return i.tree.QueryRay(origin, direction, maxDistance)
}

func (i *BVHIndex) Commit() {
	if i.tree.IsBuilt() {
		return
	}
	i.tree.Build()
	instrumentBuild()
}

func (i *BVHIndex) Clear() {
	i.tree.Clear()
	instrumentObjectCount(structureBVH, 0)
}

func (i *BVHIndex) Statistics() Stats {
	return i.tree.Statistics()
}

// Tree exposes the backing BVH for callers that need Refit, Validate or the
// staleness counter.
func (i *BVHIndex) Tree() *BVH {
	return i.tree
}

// OctreeIndex adapts an Octree to the Index contract. The octree needs no
// build step, so Commit is a no-op.
type OctreeIndex struct {
	tree *Octree
}

func NewOctreeIndex(bounds AABB, maxObjectsPerNode, maxDepth int) *OctreeIndex {
	return &OctreeIndex{tree: NewOctree(bounds, maxObjectsPerNode, maxDepth)}
}

func (i *OctreeIndex) Insert(id uint32, bounds AABB) bool {
	ok := i.tree.Insert(id, bounds)
	instrumentObjectCount(structureOctree, i.tree.Len())
	return ok
}

func (i *OctreeIndex) Remove(id uint32) {
	i.tree.Remove(id)
	instrumentObjectCount(structureOctree, i.tree.Len())
}

func (i *OctreeIndex) Update(id uint32, bounds AABB) {
	if _, ok := i.tree.objectBounds[id]; !ok {
		return
	}
	i.tree.Insert(id, bounds)
}

func (i *OctreeIndex) Query(bounds AABB) []uint32 {
	instrumentQuery(structureOctree)
	return i.tree.Query(bounds)
}

// QueryRay gathers candidates overlapping the ray's enclosing box, then
// filters them with the slab test against their stored bounds. maxDistance
// caps the raw ray parameter, so the candidate box spans the unnormalized
// direction scaled by it.
func (i *OctreeIndex) QueryRay(origin, direction Vec3, maxDistance float32) []uint32 {
	instrumentQuery(structureOctree)

	rayEnd := origin.Add(direction.Scale(maxDistance))
	rayBounds := AABBFromPoints([]Vec3{origin, rayEnd})

	var results []uint32
	for _, id := range i.tree.Query(rayBounds) {
		bounds, ok := i.tree.objectBounds[id]
		if !ok {
			continue
		}
		if _, hit := intersectRayAABB(origin, direction, bounds, maxDistance); hit {
			results = append(results, id)
		}
	}
	return results
}

func (i *OctreeIndex) Commit() {}

func (i *OctreeIndex) Clear() {
	i.tree.Clear()
	instrumentObjectCount(structureOctree, 0)
}

func (i *OctreeIndex) Statistics() Stats {
	return i.tree.Statistics()
}

// QueryPoint exposes the octree's point query, which has no BVH equivalent.
func (i *OctreeIndex) QueryPoint(p Vec3) []uint32 {
	instrumentQuery(structureOctree)
	return i.tree.QueryPoint(p)
}

// Tree exposes the backing Octree.
func (i *OctreeIndex) Tree() *Octree {
	return i.tree
}
