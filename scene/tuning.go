package scene

import (
	"os"

	"github.com/aukilabs/eihwaz/spatial"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Tuning is the YAML shape of an index tuning file. Zero fields fall back to
// the built-in defaults.
type Tuning struct {
	WorldSize         float32 `yaml:"world_size"`
	MaxObjectsPerNode int     `yaml:"max_objects_per_node"`
	MaxDepth          int     `yaml:"max_depth"`
	GridCellSize      float32 `yaml:"grid_cell_size"`
	MaxObjectsPerLeaf int     `yaml:"max_objects_per_leaf"`
	BVHMaxDepth       int     `yaml:"bvh_max_depth"`
	RebuildInterval   uint64  `yaml:"rebuild_interval"`
}

// LoadTuning reads a YAML tuning file and merges it over the default
// configuration.
func LoadTuning(path string) (spatial.Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return spatial.DefaultConfig(), errors.New("reading tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return ParseTuning(raw)
}

// ParseTuning decodes YAML tuning and merges it over the default
// configuration.
func ParseTuning(raw []byte) (spatial.Config, error) {
	config := spatial.DefaultConfig()

	var t Tuning
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return config, errors.New("decoding tuning failed").Wrap(err)
	}

	if t.WorldSize > 0 {
		config.WorldSize = t.WorldSize
	}
	if t.MaxObjectsPerNode > 0 {
		config.MaxObjectsPerNode = t.MaxObjectsPerNode
	}
	if t.MaxDepth > 0 {
		config.MaxDepth = t.MaxDepth
	}
	if t.GridCellSize > 0 {
		config.GridCellSize = t.GridCellSize
	}
	if t.MaxObjectsPerLeaf > 0 {
		config.MaxObjectsPerLeaf = t.MaxObjectsPerLeaf
	}
	if t.BVHMaxDepth > 0 {
		config.BVHMaxDepth = t.BVHMaxDepth
	}
	if t.RebuildInterval > 0 {
		config.RebuildInterval = t.RebuildInterval
	}
	return config, nil
}
