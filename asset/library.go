package asset

import "github.com/cockroachdb/errors"

// Library is a registry of loaded assets, keyed by ID with optional name
// lookup. Registering an ID twice is a no-op; the first entry wins.
type Library struct {
	meshes   map[ID]*Mesh
	textures map[ID]*Texture
	names    map[string]ID
}

// NewLibrary returns an empty asset registry.
func NewLibrary() *Library {
	return &Library{
		meshes:   make(map[ID]*Mesh),
		textures: make(map[ID]*Texture),
		names:    make(map[string]ID),
	}
}

// AddMesh registers a mesh under the given name and returns its ID.
func (l *Library) AddMesh(name string, mesh *Mesh) ID {
	if _, ok := l.meshes[mesh.ID]; ok {
		return mesh.ID
	}

	l.meshes[mesh.ID] = mesh
	l.names[name] = mesh.ID
	return mesh.ID
}

// AddTexture registers a texture under the given name and returns its ID.
func (l *Library) AddTexture(name string, texture *Texture) ID {
	if _, ok := l.textures[texture.ID]; ok {
		return texture.ID
	}

	l.textures[texture.ID] = texture
	l.names[name] = texture.ID
	return texture.ID
}

// Mesh returns the mesh with the given ID, or an error if it was never
// registered. Referencing an unregistered mesh from a drawable is a caller
// contract violation.
func (l *Library) Mesh(id ID) (*Mesh, error) {
	mesh, ok := l.meshes[id]
	if !ok {
		return nil, errors.Errorf("asset library: no mesh registered with id %s", id)
	}
	return mesh, nil
}

// Texture returns the texture with the given ID, or an error if it was never
// registered.
func (l *Library) Texture(id ID) (*Texture, error) {
	texture, ok := l.textures[id]
	if !ok {
		return nil, errors.Errorf("asset library: no texture registered with id %s", id)
	}
	return texture, nil
}

// Lookup resolves a registered name to its ID.
func (l *Library) Lookup(name string) (ID, bool) {
	id, ok := l.names[name]
	return id, ok
}

// Meshes returns all registered meshes.
func (l *Library) Meshes() []*Mesh {
	meshes := make([]*Mesh, 0, len(l.meshes))
	for _, m := range l.meshes {
		meshes = append(meshes, m)
	}
	return meshes
}

// Textures returns all registered textures.
func (l *Library) Textures() []*Texture {
	textures := make([]*Texture, 0, len(l.textures))
	for _, t := range l.textures {
		textures = append(textures, t)
	}
	return textures
}
