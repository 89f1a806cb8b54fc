// Package asset holds the CPU-side asset model shared between external
// loaders and the rendering core. The core never parses model or image file
// formats; it consumes the raw vertex, index, pixel, and SPIR-V buffers
// described here, keyed by stable identifiers.
package asset

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	vkngmath "github.com/vkngwrapper/math"
)

// ID uniquely identifies an asset for the lifetime of the process. The
// renderer maps each ID to at most one set of GPU handles.
type ID = uuid.UUID

// NewID returns a fresh asset identifier.
func NewID() ID {
	return uuid.New()
}

// Vertex is the wire format for vertex buffers uploaded to the GPU.
type Vertex struct {
	Position vkngmath.Vec3[float32]
	UV       vkngmath.Vec3[float32]
	Color    vkngmath.Vec3[float32]
}

// Submesh is a contiguous index range [Start, End) into the owning mesh's
// index buffer, drawn with the named texture bound.
type Submesh struct {
	ID      ID
	Texture ID
	Start   int
	End     int
}

// Mesh pairs vertex/index data with the submesh ranges that partition it.
type Mesh struct {
	ID        ID
	Vertices  []Vertex
	Indices   []uint16
	Submeshes []Submesh
}

// NewMesh validates submesh ranges against the index buffer and returns the
// assembled mesh.
func NewMesh(vertices []Vertex, indices []uint16, submeshes []Submesh) (*Mesh, error) {
	mesh := &Mesh{
		ID:        NewID(),
		Vertices:  vertices,
		Indices:   indices,
		Submeshes: submeshes,
	}

	for _, sm := range submeshes {
		if sm.Start < 0 || sm.End < sm.Start || sm.End > len(indices) {
			return nil, errors.Errorf("submesh %s: range [%d, %d) outside index buffer of length %d",
				sm.ID, sm.Start, sm.End, len(indices))
		}
	}

	return mesh, nil
}

// NewQuad builds a unit quad in the XY plane textured with the given texture,
// as a single submesh spanning the whole index buffer.
func NewQuad(texture ID) *Mesh {
	vertices := []Vertex{
		{Position: vkngmath.Vec3[float32]{X: -0.5, Y: -0.5}, UV: vkngmath.Vec3[float32]{X: 0, Y: 0}},
		{Position: vkngmath.Vec3[float32]{X: -0.5, Y: 0.5}, UV: vkngmath.Vec3[float32]{X: 0, Y: 1}},
		{Position: vkngmath.Vec3[float32]{X: 0.5, Y: 0.5}, UV: vkngmath.Vec3[float32]{X: 1, Y: 1}},
		{Position: vkngmath.Vec3[float32]{X: 0.5, Y: -0.5}, UV: vkngmath.Vec3[float32]{X: 1, Y: 0}},
	}
	indices := []uint16{1, 2, 0, 2, 3, 0}

	return &Mesh{
		ID:       NewID(),
		Vertices: vertices,
		Indices:  indices,
		Submeshes: []Submesh{
			{ID: NewID(), Texture: texture, Start: 0, End: len(indices)},
		},
	}
}

// Texture is a decoded RGBA8 pixel buffer.
type Texture struct {
	ID     ID
	Width  int
	Height int
	Pixels []byte
}

// NewTexture validates the pixel buffer length against the dimensions.
func NewTexture(width, height int, pixels []byte) (*Texture, error) {
	if len(pixels) != width*height*4 {
		return nil, errors.Errorf("texture: %d pixel bytes for %dx%d RGBA image, want %d",
			len(pixels), width, height, width*height*4)
	}

	return &Texture{
		ID:     NewID(),
		Width:  width,
		Height: height,
		Pixels: pixels,
	}, nil
}

// ShaderStage names the pipeline stage a shader module is built for.
type ShaderStage int

const (
	StageVertex ShaderStage = iota
	StageFragment
)

// Shader is precompiled SPIR-V bytecode for a single stage.
type Shader struct {
	Stage ShaderStage
	Code  []byte
}

// NewShader validates that the bytecode is a whole number of SPIR-V words.
func NewShader(stage ShaderStage, code []byte) (*Shader, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.Errorf("shader: %d bytes is not valid SPIR-V (must be a non-zero multiple of 4)", len(code))
	}

	return &Shader{Stage: stage, Code: code}, nil
}
