package main

import (
	"image/png"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	vkngmath "github.com/vkngwrapper/math"
	"golang.org/x/sync/errgroup"

	"github.com/argus-engine/argus/asset"
	"github.com/argus-engine/argus/render"
)

// scene is everything the playground loads up front: the asset library, the
// ids to make resident, and the compiled shaders.
type scene struct {
	library *asset.Library

	meshes   []asset.ID
	textures []asset.ID

	vertexShader   *asset.Shader
	fragmentShader *asset.Shader
}

// drawables returns the frame's draw list: the loaded model spinning slowly
// about the vertical axis.
func (s *scene) drawables(elapsed float64) []render.Drawable {
	var transform vkngmath.Mat4x4[float32]
	transform.SetRotationZ(elapsed / 4.0)

	drawables := make([]render.Drawable, 0, len(s.meshes))
	for _, mesh := range s.meshes {
		drawables = append(drawables, render.Drawable{Mesh: mesh, Transform: transform})
	}
	return drawables
}

// loadScene reads shaders, texture and model concurrently and registers
// everything in a fresh library. Empty model or texture paths select the
// built-in quad and checkerboard.
func loadScene(modelPath, texturePath, vertPath, fragPath string) (*scene, error) {
	var (
		vertexShader   *asset.Shader
		fragmentShader *asset.Shader
		texture        *asset.Texture
		decoder        *obj.Decoder
	)

	var group errgroup.Group

	group.Go(func() error {
		var err error
		vertexShader, err = loadShader(asset.StageVertex, vertPath)
		return err
	})
	group.Go(func() error {
		var err error
		fragmentShader, err = loadShader(asset.StageFragment, fragPath)
		return err
	})
	group.Go(func() error {
		var err error
		texture, err = loadTexture(texturePath)
		return err
	})
	if modelPath != "" {
		group.Go(func() error {
			var err error
			decoder, err = obj.Decode(modelPath, "")
			return err
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	library := asset.NewLibrary()
	textureID := library.AddTexture("base", texture)

	var mesh *asset.Mesh
	if decoder != nil {
		mesh, err = meshFromOBJ(decoder, textureID)
		if err != nil {
			return nil, err
		}
	} else {
		mesh = asset.NewQuad(textureID)
	}
	meshID := library.AddMesh("model", mesh)

	return &scene{
		library:        library,
		meshes:         []asset.ID{meshID},
		textures:       []asset.ID{textureID},
		vertexShader:   vertexShader,
		fragmentShader: fragmentShader,
	}, nil
}

func loadShader(stage asset.ShaderStage, path string) (*asset.Shader, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return asset.NewShader(stage, code)
}

func loadTexture(path string) (*asset.Texture, error) {
	if path == "" {
		return checkerboard()
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoded, err := png.Decode(file)
	if err != nil {
		return nil, err
	}

	bounds := decoded.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	pixels := make([]byte, 0, width*height*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := decoded.At(x, y).RGBA()
			pixels = append(pixels, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}

	return asset.NewTexture(width, height, pixels)
}

// checkerboard builds an 8x8 magenta-and-black test pattern.
func checkerboard() (*asset.Texture, error) {
	const size = 8

	pixels := make([]byte, 0, size*size*4)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x+y)%2 == 0 {
				pixels = append(pixels, 255, 0, 255, 255)
			} else {
				pixels = append(pixels, 0, 0, 0, 255)
			}
		}
	}

	return asset.NewTexture(size, size, pixels)
}

// meshFromOBJ triangulates the decoded model into a single mesh, one
// submesh per OBJ object, all textured with the given texture.
func meshFromOBJ(decoder *obj.Decoder, texture asset.ID) (*asset.Mesh, error) {
	var vertices []asset.Vertex
	var indices []uint16
	var submeshes []asset.Submesh

	uniqueVertices := make(map[int]uint16)

	addVertex := func(face obj.Face, faceIndex int) error {
		vertInd := face.Vertices[faceIndex]
		index, exists := uniqueVertices[vertInd]

		if !exists {
			if len(vertices) > int(^uint16(0)) {
				return errors.Errorf("model has too many vertices for 16-bit indices")
			}

			vert := asset.Vertex{
				Position: vkngmath.Vec3[float32]{
					X: decoder.Vertices[vertInd*3],
					Y: decoder.Vertices[vertInd*3+1],
					Z: decoder.Vertices[vertInd*3+2],
				},
				Color: vkngmath.Vec3[float32]{X: 1, Y: 1, Z: 1},
			}

			if faceIndex < len(face.Uvs) {
				uvInd := face.Uvs[faceIndex]
				vert.UV = vkngmath.Vec3[float32]{
					X: decoder.Uvs[uvInd*2],
					Y: 1.0 - decoder.Uvs[uvInd*2+1],
				}
			}

			index = uint16(len(vertices))
			vertices = append(vertices, vert)
			uniqueVertices[vertInd] = index
		}

		indices = append(indices, index)
		return nil
	}

	for _, decodedObj := range decoder.Objects {
		start := len(indices)

		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				err := addVertex(face, 0)
				if err != nil {
					return nil, err
				}
				err = addVertex(face, i-1)
				if err != nil {
					return nil, err
				}
				err = addVertex(face, i)
				if err != nil {
					return nil, err
				}
			}
		}

		submeshes = append(submeshes, asset.Submesh{
			ID:      asset.NewID(),
			Texture: texture,
			Start:   start,
			End:     len(indices),
		})
	}

	return asset.NewMesh(vertices, indices, submeshes)
}
