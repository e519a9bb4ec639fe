// Package smoketest drives a full index lifecycle against a scene and
// reports per-phase timings, used at startup to validate a deployment's
// tuning before it serves queries.
package smoketest

import (
	"context"
	"time"

	"github.com/aukilabs/eihwaz/featureflag"
	"github.com/aukilabs/eihwaz/scene"
	"github.com/aukilabs/eihwaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
)

type Options struct {
	Scene        scene.Scene
	Config       spatial.Config
	FeatureFlags featureflag.FeatureFlag

	// QueryCount is how many queries the query and raycast phases each
	// run. Zero means 100.
	QueryCount int
}

// PhaseResult is the outcome of one lifecycle phase.
type PhaseResult struct {
	Name     string
	Duration time.Duration
	Count    int
}

type Results struct {
	SceneName string
	Phases    []PhaseResult
	Stats     spatial.ManagerStats
}

func (r Results) Duration() time.Duration {
	var total time.Duration
	for _, p := range r.Phases {
		total += p.Duration
	}
	return total
}

// Run inserts the scene into a fresh manager and walks it through query,
// raycast, update/refit and removal phases. It fails on a cancelled context
// and on an index that answers inconsistently.
func Run(ctx context.Context, opts Options) (Results, error) {
	if opts.QueryCount <= 0 {
		opts.QueryCount = 100
	}

	manager := spatial.NewManager(opts.Config)
	results := Results{SceneName: opts.Scene.Name}
	objects := opts.Scene.SpatialObjects()

	runPhase := func(name string, phase func() (int, error)) error {
		if err := ctx.Err(); err != nil {
			return errors.New("smoke test cancelled").
				WithTag("phase", name).
				Wrap(err)
		}

		start := time.Now()
		count, err := phase()
		if err != nil {
			return errors.New("smoke test phase failed").
				WithTag("phase", name).
				Wrap(err)
		}

		results.Phases = append(results.Phases, PhaseResult{
			Name:     name,
			Duration: time.Since(start),
			Count:    count,
		})
		return nil
	}

	if err := runPhase("insert", func() (int, error) {
		for _, o := range objects {
			manager.InsertObject(o)
		}
		return len(objects), nil
	}); err != nil {
		return results, err
	}

	if err := runPhase("query", func() (int, error) {
		hits := 0
		for i := 0; i < opts.QueryCount && len(objects) > 0; i++ {
			o := objects[i%len(objects)]
			found := manager.QueryRegion(o.Bounds, ^uint32(0))
			if !contains(found, o.ID) {
				return hits, errors.New("object missing from its own region").
					WithTag("object_id", o.ID)
			}
			hits += len(found)
		}
		return hits, nil
	}); err != nil {
		return results, err
	}

	var phaseErr error
	opts.FeatureFlags.IfNotSet(featureflag.FlagDisableRaycastPhase, func() {
		phaseErr = runPhase("raycast", func() (int, error) {
			hits := 0
			for i := 0; i < opts.QueryCount && len(objects) > 0; i++ {
				o := objects[i%len(objects)]
				origin := o.Position.Add(spatial.Vec3{Y: o.Bounds.Size().Y + 10})
				if _, ok := manager.Raycast(origin, spatial.Vec3{Y: -1}, 1000, ^uint32(0)); ok {
					hits++
				}
			}
			if hits == 0 && len(objects) > 0 {
				return 0, errors.New("no raycast reached its target")
			}
			return hits, nil
		})
	})
	if phaseErr != nil {
		return results, phaseErr
	}

	opts.FeatureFlags.IfNotSet(featureflag.FlagDisableRefitPhase, func() {
		phaseErr = runPhase("refit", func() (int, error) {
			moved := 0
			for _, o := range objects {
				if !o.Static {
					continue
				}
				p := o.Position.Add(spatial.Vec3{X: 0.25})
				bounds := spatial.AABB{
					Min: o.Bounds.Min.Add(spatial.Vec3{X: 0.25}),
					Max: o.Bounds.Max.Add(spatial.Vec3{X: 0.25}),
				}
				manager.UpdateObject(o.ID, p, bounds)
				moved++
			}
			manager.Update()

			if err := manager.ValidateStatic(); err != nil {
				return moved, err
			}
			return moved, nil
		})
	})
	if phaseErr != nil {
		return results, phaseErr
	}

	if err := runPhase("remove", func() (int, error) {
		for _, o := range objects {
			manager.RemoveObject(o.ID)
		}
		if n := manager.Statistics().TotalObjects; n != 0 {
			return len(objects), errors.New("objects left after removal").
				WithTag("remaining", n)
		}
		return len(objects), nil
	}); err != nil {
		return results, err
	}

	results.Stats = manager.Statistics()
	return results, nil
}

func contains(ids []uint32, id uint32) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
