package render

import (
	"bytes"
	"encoding/binary"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/common"
	vkngmath "github.com/vkngwrapper/math"

	"github.com/argus-engine/argus/asset"
)

func TestEncodeVerticesRoundTrips(t *testing.T) {
	vertices := []asset.Vertex{
		{
			Position: vkngmath.Vec3[float32]{X: 1, Y: 2, Z: 3},
			UV:       vkngmath.Vec3[float32]{X: 0.5, Y: 0.25},
			Color:    vkngmath.Vec3[float32]{X: 1, Y: 1, Z: 1},
		},
		{
			Position: vkngmath.Vec3[float32]{X: -1, Y: -2, Z: -3},
			UV:       vkngmath.Vec3[float32]{X: 0.75, Y: 1},
			Color:    vkngmath.Vec3[float32]{X: 0, Y: 0.5, Z: 0},
		},
	}

	encoded, err := encodeVertices(vertices)
	require.NoError(t, err)
	require.Len(t, encoded, len(vertices)*binary.Size(asset.Vertex{}))

	decoded := make([]asset.Vertex, len(vertices))
	err = binary.Read(bytes.NewReader(encoded), common.ByteOrder, decoded)
	require.NoError(t, err)
	require.Equal(t, vertices, decoded)
}

func TestEncodedVertexStrideMatchesBinding(t *testing.T) {
	require.Equal(t, int(unsafe.Sizeof(asset.Vertex{})), binary.Size(asset.Vertex{}))
}

func TestEncodeIndicesRoundTrips(t *testing.T) {
	indices := []uint16{1, 2, 0, 2, 3, 0}

	encoded, err := encodeIndices(indices)
	require.NoError(t, err)
	require.Len(t, encoded, len(indices)*2)

	decoded := make([]uint16, len(indices))
	err = binary.Read(bytes.NewReader(encoded), common.ByteOrder, decoded)
	require.NoError(t, err)
	require.Equal(t, indices, decoded)
}
