package spatial

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	structureLabel = "structure"

	structureBVH    = "bvh"
	structureOctree = "octree"
)

var (
	eihwazQueryCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eihwaz_query_count_total",
		Help: "The total number of spatial queries, by backing structure.",
	}, []string{structureLabel})

	eihwazBuildCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_bvh_build_count_total",
		Help: "The total number of BVH builds.",
	})

	eihwazRefitCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_bvh_refit_count_total",
		Help: "The total number of BVH refits.",
	})

	eihwazOutOfBoundsDropTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eihwaz_octree_out_of_bounds_drop_total",
		Help: "The total number of octree inserts dropped for not intersecting the root volume.",
	})

	eihwazObjectCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eihwaz_object_count",
		Help: "The number of indexed objects, by backing structure.",
	}, []string{structureLabel})
)

func instrumentQuery(structure string) {
	eihwazQueryCountTotal.
		With(prometheus.Labels{structureLabel: structure}).
		Inc()
}

func instrumentBuild() {
	eihwazBuildCountTotal.Inc()
}

func instrumentRefit() {
	eihwazRefitCountTotal.Inc()
}

func instrumentOutOfBoundsDrop() {
	eihwazOutOfBoundsDropTotal.Inc()
}

func instrumentObjectCount(structure string, count int) {
	eihwazObjectCount.
		With(prometheus.Labels{structureLabel: structure}).
		Set((float64)(count))
}
