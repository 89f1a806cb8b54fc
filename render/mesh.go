package render

import (
	"bytes"
	"encoding/binary"

	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/argus-engine/argus/asset"
)

// meshBuffers holds the device-local vertex and index buffers for one mesh.
// Submesh draws index into these buffers by range, so a mesh uploads once no
// matter how many submeshes it carries.
type meshBuffers struct {
	vertices Buffer
	indices  Buffer
}

func uploadMesh(alloc *Allocator, mesh *asset.Mesh) (meshBuffers, error) {
	vertexData, err := encodeVertices(mesh.Vertices)
	if err != nil {
		return meshBuffers{}, err
	}

	indexData, err := encodeIndices(mesh.Indices)
	if err != nil {
		return meshBuffers{}, err
	}

	vertices, err := alloc.UploadBuffer(vertexData, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return meshBuffers{}, err
	}

	indices, err := alloc.UploadBuffer(indexData, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		alloc.DestroyBuffer(vertices)
		return meshBuffers{}, err
	}

	return meshBuffers{vertices: vertices, indices: indices}, nil
}

// encodeVertices serializes vertices into the exact layout the pipeline's
// vertex attributes describe.
func encodeVertices(vertices []asset.Vertex) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, vertices)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeIndices(indices []uint16) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, indices)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m meshBuffers) destroy(alloc *Allocator) {
	alloc.DestroyBuffer(m.vertices)
	alloc.DestroyBuffer(m.indices)
}
