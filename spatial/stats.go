package spatial

// Stats describes the shape of a tree index. Both the BVH and the Octree
// report their structure through it.
type Stats struct {
	TotalNodes            int
	LeafNodes             int
	InternalNodes         int
	TotalObjects          int
	TotalLeafObjects      int
	MaxObjectsPerLeaf     int
	MinObjectsPerLeaf     int
	AverageObjectsPerLeaf float32
	MaxDepth              int
}

func (s *Stats) observeLeaf(objectCount int) {
	s.LeafNodes++
	s.TotalLeafObjects += objectCount
	s.MaxObjectsPerLeaf = max(s.MaxObjectsPerLeaf, objectCount)
	if s.LeafNodes == 1 {
		s.MinObjectsPerLeaf = objectCount
	} else {
		s.MinObjectsPerLeaf = min(s.MinObjectsPerLeaf, objectCount)
	}
}

func (s *Stats) finalize() {
	if s.LeafNodes > 0 {
		s.AverageObjectsPerLeaf = (float32)(s.TotalLeafObjects) / (float32)(s.LeafNodes)
	}
}
