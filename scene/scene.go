// Package scene loads and generates object layouts for seeding spatial
// indexes, used by the smoke test and benchmarks.
package scene

import (
	"os"
	"strings"

	"github.com/aukilabs/eihwaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/segmentio/encoding/json"
)

const schemaName = "scene.schema.json"

// sceneSchema rejects malformed scene files before they are decoded into
// typed objects, so a bad file fails with a path to the offending field
// instead of a zero-valued object.
const sceneSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "objects"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "objects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "min", "max"],
        "properties": {
          "id": {"type": "integer", "minimum": 0, "maximum": 4294967295},
          "min": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
          "max": {"type": "array", "items": {"type": "number"}, "minItems": 3, "maxItems": 3},
          "layer": {"type": "integer", "minimum": 0, "maximum": 4294967295},
          "static": {"type": "boolean"}
        }
      }
    }
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaName, strings.NewReader(sceneSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(schemaName)
}

// Object is one scene entry. Min and Max are the corners of its bounding
// box in x, y, z order.
type Object struct {
	ID     uint32     `json:"id"`
	Min    [3]float32 `json:"min"`
	Max    [3]float32 `json:"max"`
	Layer  uint32     `json:"layer"`
	Static bool       `json:"static"`
}

// Scene is a named set of objects.
type Scene struct {
	Name    string   `json:"name"`
	Objects []Object `json:"objects"`
}

// Load reads and validates a JSON scene file.
func Load(path string) (Scene, error) {
	var s Scene

	raw, err := os.ReadFile(path)
	if err != nil {
		return s, errors.New("reading scene file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return Parse(raw)
}

// Parse validates raw JSON against the scene schema and decodes it.
func Parse(raw []byte) (Scene, error) {
	var s Scene

	var untyped any
	if err := json.Unmarshal(raw, &untyped); err != nil {
		return s, errors.New("scene is not valid JSON").Wrap(err)
	}
	if err := compiledSchema.Validate(untyped); err != nil {
		return s, errors.New("scene does not match schema").Wrap(err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, errors.New("decoding scene failed").Wrap(err)
	}

	for _, o := range s.Objects {
		for axis := 0; axis < 3; axis++ {
			if o.Min[axis] > o.Max[axis] {
				return s, errors.New("scene object has inverted bounds").
					WithTag("object_id", o.ID).
					WithTag("axis", axis)
			}
		}
	}
	return s, nil
}

// Generate builds a deterministic scene of n unit cubes laid out on a cubic
// grid with the given spacing between cube origins, centered on the origin.
// All objects are static and on layer 1.
func Generate(n int, spacing float32) Scene {
	if n < 0 {
		n = 0
	}

	side := 1
	for side*side*side < n {
		side++
	}
	offset := (float32)(side) * spacing / 2

	s := Scene{Name: "generated"}
	for i := 0; i < n; i++ {
		x := (float32)(i%side)*spacing - offset
		y := (float32)((i/side)%side)*spacing - offset
		z := (float32)(i/(side*side))*spacing - offset

		s.Objects = append(s.Objects, Object{
			ID:     (uint32)(i),
			Min:    [3]float32{x, y, z},
			Max:    [3]float32{x + 1, y + 1, z + 1},
			Layer:  1,
			Static: true,
		})
	}
	return s
}

// SpatialObjects converts the scene to manager entries.
func (s Scene) SpatialObjects() []spatial.Object {
	objects := make([]spatial.Object, 0, len(s.Objects))
	for _, o := range s.Objects {
		bounds := spatial.AABB{
			Min: spatial.Vec3{X: o.Min[0], Y: o.Min[1], Z: o.Min[2]},
			Max: spatial.Vec3{X: o.Max[0], Y: o.Max[1], Z: o.Max[2]},
		}
		objects = append(objects, spatial.Object{
			ID:       o.ID,
			Position: bounds.Center(),
			Bounds:   bounds,
			Layer:    o.Layer,
			Static:   o.Static,
		})
	}
	return objects
}
