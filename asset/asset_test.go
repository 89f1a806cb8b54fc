package asset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMeshValidatesSubmeshRanges(t *testing.T) {
	vertices := []Vertex{{}, {}, {}}
	indices := []uint16{0, 1, 2, 0, 2, 1}

	mesh, err := NewMesh(vertices, indices, []Submesh{
		{ID: NewID(), Texture: NewID(), Start: 0, End: 3},
		{ID: NewID(), Texture: NewID(), Start: 3, End: 6},
	})
	require.NoError(t, err)
	require.Len(t, mesh.Submeshes, 2)

	_, err = NewMesh(vertices, indices, []Submesh{
		{ID: NewID(), Texture: NewID(), Start: 0, End: 7},
	})
	require.Error(t, err)

	_, err = NewMesh(vertices, indices, []Submesh{
		{ID: NewID(), Texture: NewID(), Start: 4, End: 3},
	})
	require.Error(t, err)

	_, err = NewMesh(vertices, indices, []Submesh{
		{ID: NewID(), Texture: NewID(), Start: -1, End: 2},
	})
	require.Error(t, err)
}

func TestNewMeshAllowsEmptySubmesh(t *testing.T) {
	mesh, err := NewMesh([]Vertex{{}}, []uint16{0}, []Submesh{
		{ID: NewID(), Texture: NewID(), Start: 1, End: 1},
	})
	require.NoError(t, err)
	require.Equal(t, 1, mesh.Submeshes[0].Start)
}

func TestNewQuad(t *testing.T) {
	texture := NewID()
	quad := NewQuad(texture)

	require.Len(t, quad.Vertices, 4)
	require.Equal(t, []uint16{1, 2, 0, 2, 3, 0}, quad.Indices)

	require.Len(t, quad.Submeshes, 1)
	require.Equal(t, texture, quad.Submeshes[0].Texture)
	require.Equal(t, 0, quad.Submeshes[0].Start)
	require.Equal(t, 6, quad.Submeshes[0].End)
}

func TestNewTextureValidatesPixelLength(t *testing.T) {
	texture, err := NewTexture(2, 2, make([]byte, 16))
	require.NoError(t, err)
	require.Equal(t, 2, texture.Width)

	_, err = NewTexture(2, 2, make([]byte, 15))
	require.Error(t, err)

	_, err = NewTexture(2, 2, nil)
	require.Error(t, err)
}

func TestNewShaderValidatesWordAlignment(t *testing.T) {
	shader, err := NewShader(StageVertex, make([]byte, 8))
	require.NoError(t, err)
	require.Equal(t, StageVertex, shader.Stage)

	_, err = NewShader(StageFragment, make([]byte, 7))
	require.Error(t, err)

	_, err = NewShader(StageFragment, nil)
	require.Error(t, err)
}

func TestLibraryRegistrationIsIdempotent(t *testing.T) {
	library := NewLibrary()

	quad := NewQuad(NewID())
	id := library.AddMesh("quad", quad)
	require.Equal(t, quad.ID, id)

	again := library.AddMesh("quad", quad)
	require.Equal(t, id, again)
	require.Len(t, library.Meshes(), 1)

	texture, err := NewTexture(1, 1, make([]byte, 4))
	require.NoError(t, err)

	texID := library.AddTexture("white", texture)
	require.Equal(t, texID, library.AddTexture("white", texture))
	require.Len(t, library.Textures(), 1)
}

func TestLibraryLookup(t *testing.T) {
	library := NewLibrary()
	quad := NewQuad(NewID())
	library.AddMesh("quad", quad)

	id, ok := library.Lookup("quad")
	require.True(t, ok)
	require.Equal(t, quad.ID, id)

	_, ok = library.Lookup("missing")
	require.False(t, ok)
}

func TestLibraryMissingAssetsError(t *testing.T) {
	library := NewLibrary()

	_, err := library.Mesh(NewID())
	require.Error(t, err)

	_, err = library.Texture(NewID())
	require.Error(t, err)
}
