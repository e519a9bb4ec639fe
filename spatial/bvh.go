package spatial

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	// DefaultMaxObjectsPerLeaf is the leaf capacity used by NewBVH.
	DefaultMaxObjectsPerLeaf = 4

	// DefaultBVHMaxDepth is the depth limit used by NewBVH.
	DefaultBVHMaxDepth = 20
)

type bvhNode struct {
	bounds    AABB
	objectIDs []uint32
	left      *bvhNode
	right     *bvhNode
}

func (n *bvhNode) isLeaf() bool {
	return n.left == nil && n.right == nil
}

// BVH is a binary bounding volume hierarchy over object AABBs, built by a
// recursive longest-axis median split.
//
// Insert, Remove and UpdateObject only touch the id to bounds map. Insert
// and Remove mark the tree dirty so that the next query sees a rebuilt tree
// once Build is called; until then queries return empty results.
// UpdateObject leaves a built tree standing, its node bounds become stale
// until the next Refit or Build.
//
// A BVH is not safe for concurrent use. Callers serialize mutation and
// build phases against query phases; queries alone are read-only and may
// run concurrently with each other.
type BVH struct {
	root              *bvhNode
	objects           map[uint32]AABB
	maxObjectsPerLeaf int
	maxDepth          int
	built             bool
	refitCount        int
}

func NewBVH() *BVH {
	return NewBVHWithLimits(DefaultMaxObjectsPerLeaf, DefaultBVHMaxDepth)
}

func NewBVHWithLimits(maxObjectsPerLeaf, maxDepth int) *BVH {
	if maxObjectsPerLeaf < 1 {
		maxObjectsPerLeaf = 1
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &BVH{
		objects:           make(map[uint32]AABB),
		maxObjectsPerLeaf: maxObjectsPerLeaf,
		maxDepth:          maxDepth,
	}
}

// Insert registers bounds for the given id, overwriting any previous bounds.
// The node tree is not touched, the tree becomes dirty.
func (b *BVH) Insert(id uint32, bounds AABB) {
	b.objects[id] = bounds
	b.built = false
}

// Remove drops the given id. Unknown ids are a no-op, but the tree is marked
// dirty either way.
func (b *BVH) Remove(id uint32) {
	delete(b.objects, id)
	b.built = false
}

// UpdateObject replaces the stored bounds for a known id. Unlike Insert it
// keeps a built tree standing: queries keep answering against the old node
// bounds until Refit or Build runs. Unknown ids are ignored.
func (b *BVH) UpdateObject(id uint32, bounds AABB) {
	if _, ok := b.objects[id]; !ok {
		return
	}
	b.objects[id] = bounds
}

// Build discards the node tree and reconstructs it from the current object
// set. It is the only operation that transitions the tree to the built
// state. O(n log n).
func (b *BVH) Build() {
	b.refitCount = 0

	if len(b.objects) == 0 {
		b.root = nil
		b.built = true
		return
	}

	ids := make([]uint32, 0, len(b.objects))
	var world AABB
	first := true
	for id, bounds := range b.objects {
		ids = append(ids, id)
		if first {
			world = bounds
			first = false
		} else {
			world.ExpandAABB(bounds)
		}
	}

	b.root = b.buildNode(ids, world, 0)
	b.built = true
}

func (b *BVH) buildNode(ids []uint32, bounds AABB, depth int) *bvhNode {
	if len(ids) <= b.maxObjectsPerLeaf || depth >= b.maxDepth {
		return &bvhNode{bounds: bounds, objectIDs: ids}
	}

	axis := longestAxis(bounds)
	sort.Slice(ids, func(i, j int) bool {
		return axisValue(b.objects[ids[i]].Center(), axis) <
			axisValue(b.objects[ids[j]].Center(), axis)
	})

	split := len(ids) / 2
	left := ids[:split:split]
	right := ids[split:]

	node := &bvhNode{bounds: bounds}
	node.left = b.buildNode(left, b.objectUnion(left), depth+1)
	node.right = b.buildNode(right, b.objectUnion(right), depth+1)
	return node
}

// longestAxis returns 0, 1 or 2 for the axis with the largest extent, ties
// resolve toward x then y.
func longestAxis(bounds AABB) int {
	size := bounds.Size()
	if size.X >= size.Y && size.X >= size.Z {
		return 0
	}
	if size.Y >= size.Z {
		return 1
	}
	return 2
}

func axisValue(p Vec3, axis int) float32 {
	switch axis {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func (b *BVH) objectUnion(ids []uint32) AABB {
	if len(ids) == 0 {
		return AABB{}
	}
	bounds := b.objects[ids[0]]
	for _, id := range ids[1:] {
		bounds.ExpandAABB(b.objects[id])
	}
	return bounds
}

// Query returns the ids of all objects whose stored bounds overlap the given
// box. A dirty or never-built tree yields an empty result.
func (b *BVH) Query(bounds AABB) []uint32 {
	if !b.built || b.root == nil {
		return nil
	}

	var results []uint32
	b.queryNode(b.root, bounds, &results)
	return results
}

func (b *BVH) queryNode(node *bvhNode, bounds AABB, results *[]uint32) {
	if !node.bounds.Intersects(bounds) {
		return
	}

	if node.isLeaf() {
		for _, id := range node.objectIDs {
			if objBounds, ok := b.objects[id]; ok && objBounds.Intersects(bounds) {
				*results = append(*results, id)
			}
		}
		return
	}

	b.queryNode(node.left, bounds, results)
	b.queryNode(node.right, bounds, results)
}

// QueryRay returns the ids of all objects whose stored bounds are hit by the
// ray within maxDistance. Hits are AABB-level only. A dirty or never-built
// tree yields an empty result.
func (b *BVH) QueryRay(origin, direction Vec3, maxDistance float32) []uint32 {
	if !b.built || b.root == nil {
		return nil
	}

	var results []uint32
	b.queryRayNode(b.root, origin, direction, maxDistance, &results)
	return results
}

func (b *BVH) queryRayNode(node *bvhNode, origin, direction Vec3, maxDistance float32, results *[]uint32) {
	if _, ok := intersectRayAABB(origin, direction, node.bounds, maxDistance); !ok {
		return
	}

	if node.isLeaf() {
		for _, id := range node.objectIDs {
			objBounds, ok := b.objects[id]
			if !ok {
				continue
			}
			if _, hit := intersectRayAABB(origin, direction, objBounds, maxDistance); hit {
				*results = append(*results, id)
			}
		}
		return
	}

	b.queryRayNode(node.left, origin, direction, maxDistance, results)
	b.queryRayNode(node.right, origin, direction, maxDistance, results)
}

// Refit recomputes every node's bounds bottom-up from the live object map
// without re-partitioning. O(n). Queries stay conservative afterwards, but
// partition quality degrades as objects drift from the region they were
// built in; RefitCount exposes how far the tree is from its last Build.
// Refit on a dirty or empty tree is a no-op.
func (b *BVH) Refit() {
	if !b.built || b.root == nil {
		return
	}

	b.refitNode(b.root)
	b.refitCount++
}

func (b *BVH) refitNode(node *bvhNode) {
	if node.isLeaf() {
		node.bounds = b.objectUnion(node.objectIDs)
		return
	}

	b.refitNode(node.left)
	b.refitNode(node.right)
	node.bounds = Union(node.left.bounds, node.right.bounds)
}

// RefitCount reports the number of refits since the last full Build. A large
// count signals that a rebuild is advisable.
func (b *BVH) RefitCount() int {
	return b.refitCount
}

// Validate walks the tree and checks that every node's bounds contains the
// bounds of all its descendant objects, and that all leaf ids are known.
// Meant as a test and debug assertion.
func (b *BVH) Validate() error {
	if b.root == nil {
		if len(b.objects) != 0 {
			return errors.New("tree has objects but no nodes").
				WithTag("objects", len(b.objects))
		}
		return nil
	}
	return b.validateNode(b.root)
}

func (b *BVH) validateNode(node *bvhNode) error {
	if node.isLeaf() {
		for _, id := range node.objectIDs {
			objBounds, ok := b.objects[id]
			if !ok {
				return errors.New("leaf references unknown object").
					WithTag("object_id", id)
			}
			if !node.bounds.ContainsAABB(objBounds) {
				return errors.New("leaf bounds do not contain object bounds").
					WithTag("object_id", id)
			}
		}
		return nil
	}

	if !node.bounds.ContainsAABB(node.left.bounds) ||
		!node.bounds.ContainsAABB(node.right.bounds) {
		return errors.New("node bounds do not contain child bounds")
	}
	if err := b.validateNode(node.left); err != nil {
		return err
	}
	return b.validateNode(node.right)
}

// Statistics reports node and leaf counts, objects per leaf and tree depth.
func (b *BVH) Statistics() Stats {
	var stats Stats
	stats.TotalObjects = len(b.objects)
	if b.root != nil {
		b.collectStats(b.root, 0, &stats)
	}
	stats.finalize()
	return stats
}

func (b *BVH) collectStats(node *bvhNode, depth int, stats *Stats) {
	stats.TotalNodes++
	stats.MaxDepth = max(stats.MaxDepth, depth)

	if node.isLeaf() {
		stats.observeLeaf(len(node.objectIDs))
		return
	}

	stats.InternalNodes++
	b.collectStats(node.left, depth+1, stats)
	b.collectStats(node.right, depth+1, stats)
}

// IsBuilt reports whether the node tree matches the object map.
func (b *BVH) IsBuilt() bool {
	return b.built
}

// Len returns the number of registered objects.
func (b *BVH) Len() int {
	return len(b.objects)
}

// Clear drops all nodes and the object map.
func (b *BVH) Clear() {
	b.root = nil
	b.objects = make(map[uint32]AABB)
	b.built = false
	b.refitCount = 0
}
