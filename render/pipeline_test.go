package render

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

func TestVertexBindingMatchesVertexLayout(t *testing.T) {
	bindings := vertexBindingDescriptions()
	require.Len(t, bindings, 1)
	require.Equal(t, 0, bindings[0].Binding)
	require.Equal(t, int(unsafe.Sizeof(asset.Vertex{})), bindings[0].Stride)
	require.Equal(t, core1_0.VertexInputRateVertex, bindings[0].InputRate)
}

func TestVertexAttributesCoverAllFields(t *testing.T) {
	attributes := vertexAttributeDescriptions()
	require.Len(t, attributes, 3)

	v := asset.Vertex{}
	wantOffsets := []int{
		int(unsafe.Offsetof(v.Position)),
		int(unsafe.Offsetof(v.UV)),
		int(unsafe.Offsetof(v.Color)),
	}

	for i, attr := range attributes {
		require.Equal(t, 0, attr.Binding)
		require.Equal(t, uint32(i), attr.Location)
		require.Equal(t, core1_0.FormatR32G32B32SignedFloat, attr.Format)
		require.Equal(t, wantOffsets[i], attr.Offset)
	}
}

func TestPushConstantFitsCommonLimit(t *testing.T) {
	// 128 bytes is the smallest MaxPushConstantsSize any conformant
	// implementation reports.
	require.Equal(t, 64, pushConstantSize)
	require.LessOrEqual(t, pushConstantSize, 128)
}

func TestSpirvWords(t *testing.T) {
	words := spirvWords([]byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00})
	require.Equal(t, []uint32{0x07230203, 0x00010000}, words)
}

func TestSpirvWordsEmpty(t *testing.T) {
	require.Empty(t, spirvWords(nil))
}
