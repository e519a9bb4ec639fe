package spatial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIDGeneratorAllocate(t *testing.T) {
	t.Run("returns sequential ids", func(t *testing.T) {
		var gen IDGenerator

		for i := 1; i <= 5; i++ {
			require.Equal(t, (uint32)(i), gen.Allocate())
		}
	})

	t.Run("returns a released id first", func(t *testing.T) {
		var gen IDGenerator

		for i := 1; i <= 5; i++ {
			gen.Allocate()
		}

		gen.Release(2)
		require.Equal(t, (uint32)(2), gen.Allocate())
		require.Equal(t, (uint32)(6), gen.Allocate())
	})
}
