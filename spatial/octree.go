package spatial

import (
	"github.com/aukilabs/go-tooling/pkg/logs"
)

type octreeNode struct {
	bounds   AABB
	objects  []uint32
	children *[8]octreeNode
	depth    int
}

func (n *octreeNode) isLeaf() bool {
	return n.children == nil
}

// subdivide creates the eight child octants. Child i covers the high half of
// an axis when the corresponding bit is set: bit 0 for x, bit 1 for y,
// bit 2 for z.
func (n *octreeNode) subdivide() {
	center := n.bounds.Center()

	var children [8]octreeNode
	for i := range children {
		childMin := n.bounds.Min
		childMax := center
		if i&1 != 0 {
			childMin.X, childMax.X = center.X, n.bounds.Max.X
		}
		if i&2 != 0 {
			childMin.Y, childMax.Y = center.Y, n.bounds.Max.Y
		}
		if i&4 != 0 {
			childMin.Z, childMax.Z = center.Z, n.bounds.Max.Z
		}
		children[i] = octreeNode{
			bounds: AABB{Min: childMin, Max: childMax},
			depth:  n.depth + 1,
		}
	}
	n.children = &children
}

// Octree is an eight-way spatial subdivision tree with a fixed root volume.
// Nodes are created lazily on subdivision and persist across inserts and
// removes; the structure is always queryable, there is no build step.
//
// Objects that do not fit exclusively inside one octant stay resident at the
// deepest node fully containing them; a resident id is never duplicated
// across siblings.
//
// An Octree is not safe for concurrent use. Callers serialize mutations
// against queries; queries alone are read-only and may run concurrently.
type Octree struct {
	root              octreeNode
	maxObjectsPerNode int
	maxDepth          int
	objectBounds      map[uint32]AABB
}

// NewOctree creates a tree covering the given world bounds. The root volume
// is fixed for the lifetime of the tree.
func NewOctree(bounds AABB, maxObjectsPerNode, maxDepth int) *Octree {
	if maxObjectsPerNode < 1 {
		maxObjectsPerNode = 1
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Octree{
		root:              octreeNode{bounds: bounds},
		maxObjectsPerNode: maxObjectsPerNode,
		maxDepth:          maxDepth,
		objectBounds:      make(map[uint32]AABB),
	}
}

// Bounds returns the fixed root volume.
func (o *Octree) Bounds() AABB {
	return o.root.bounds
}

// Insert places the object in the tree, overwriting any previous placement
// for the same id. It reports whether the bounds intersect the root volume;
// on false the object is kept in the id map but indexed nowhere, so queries
// never return it. The drop is logged and counted so callers can observe
// objects that fall outside the world.
func (o *Octree) Insert(id uint32, bounds AABB) bool {
	if prev, ok := o.objectBounds[id]; ok {
		o.removeFromNode(&o.root, id, prev)
	}
	o.objectBounds[id] = bounds

	if !o.root.bounds.Intersects(bounds) {
		instrumentOutOfBoundsDrop()
		logs.WithTag("object_id", id).
			WithTag("root_bounds", o.root.bounds).
			Debug("insert bounds outside octree root, object not indexed")
		return false
	}

	o.insertIntoNode(&o.root, id, bounds)
	return true
}

func (o *Octree) insertIntoNode(node *octreeNode, id uint32, bounds AABB) {
	if !node.bounds.Intersects(bounds) {
		return
	}

	if node.isLeaf() {
		node.objects = append(node.objects, id)
		if len(node.objects) <= o.maxObjectsPerNode || node.depth >= o.maxDepth {
			return
		}

		node.subdivide()
		resident := node.objects
		node.objects = nil
		for _, residentID := range resident {
			residentBounds, ok := o.objectBounds[residentID]
			if !ok {
				continue
			}
			o.placeInChildOrNode(node, residentID, residentBounds)
		}
		return
	}

	o.placeInChildOrNode(node, id, bounds)
}

// placeInChildOrNode pushes the object into the single child octant fully
// containing it, or keeps it resident at node when it straddles an octant
// boundary.
func (o *Octree) placeInChildOrNode(node *octreeNode, id uint32, bounds AABB) {
	for i := range node.children {
		if node.children[i].bounds.ContainsAABB(bounds) {
			o.insertIntoNode(&node.children[i], id, bounds)
			return
		}
	}
	node.objects = append(node.objects, id)
}

// Remove drops the object from the tree and the id map. Unknown ids are a
// no-op.
func (o *Octree) Remove(id uint32) {
	bounds, ok := o.objectBounds[id]
	if !ok {
		return
	}
	delete(o.objectBounds, id)
	o.removeFromNode(&o.root, id, bounds)
}

func (o *Octree) removeFromNode(node *octreeNode, id uint32, bounds AABB) {
	if !node.bounds.Intersects(bounds) {
		return
	}

	for i, residentID := range node.objects {
		if residentID == id {
			node.objects = append(node.objects[:i], node.objects[i+1:]...)
			break
		}
	}

	if node.children != nil {
		for i := range node.children {
			o.removeFromNode(&node.children[i], id, bounds)
		}
	}
}

// Query returns the ids of all objects whose stored bounds overlap the given
// box.
func (o *Octree) Query(bounds AABB) []uint32 {
	var results []uint32
	o.queryNode(&o.root, bounds, &results)
	return results
}

func (o *Octree) queryNode(node *octreeNode, bounds AABB, results *[]uint32) {
	if !node.bounds.Intersects(bounds) {
		return
	}

	for _, id := range node.objects {
		// residents can sit far from the query box inside a large node,
		// filter against the stored bounds
		if objBounds, ok := o.objectBounds[id]; ok && objBounds.Intersects(bounds) {
			*results = append(*results, id)
		}
	}

	if node.children != nil {
		for i := range node.children {
			o.queryNode(&node.children[i], bounds, results)
		}
	}
}

// QueryPoint returns the ids of all objects whose stored bounds contain p.
func (o *Octree) QueryPoint(p Vec3) []uint32 {
	var results []uint32
	o.queryPointNode(&o.root, p, &results)
	return results
}

func (o *Octree) queryPointNode(node *octreeNode, p Vec3, results *[]uint32) {
	if !node.bounds.ContainsPoint(p) {
		return
	}

	for _, id := range node.objects {
		if bounds, ok := o.objectBounds[id]; ok && bounds.ContainsPoint(p) {
			*results = append(*results, id)
		}
	}

	if node.children != nil {
		for i := range node.children {
			o.queryPointNode(&node.children[i], p, results)
		}
	}
}

// Len returns the number of registered objects, indexed or not.
func (o *Octree) Len() int {
	return len(o.objectBounds)
}

// Clear drops all nodes and the id map. The root volume is kept.
func (o *Octree) Clear() {
	o.root = octreeNode{bounds: o.root.bounds}
	o.objectBounds = make(map[uint32]AABB)
}

// Statistics reports node and leaf counts, residents per leaf and tree
// depth.
func (o *Octree) Statistics() Stats {
	var stats Stats
	o.collectStats(&o.root, &stats)
	stats.TotalObjects = len(o.objectBounds)
	stats.finalize()
	return stats
}

func (o *Octree) collectStats(node *octreeNode, stats *Stats) {
	stats.TotalNodes++
	stats.MaxDepth = max(stats.MaxDepth, node.depth)

	if node.isLeaf() {
		stats.observeLeaf(len(node.objects))
		return
	}

	stats.InternalNodes++
	for i := range node.children {
		o.collectStats(&node.children[i], stats)
	}
}
