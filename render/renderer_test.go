package render

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"

	"github.com/argus-engine/argus/asset"
)

func identity() vkngmath.Mat4x4[float32] {
	var m vkngmath.Mat4x4[float32]
	m.SetIdentity()
	return m
}

func testLibrary(t *testing.T) (*asset.Library, *asset.Mesh, asset.ID, asset.ID) {
	t.Helper()

	library := asset.NewLibrary()

	texA := asset.NewID()
	texB := asset.NewID()

	mesh, err := asset.NewMesh(
		[]asset.Vertex{{}, {}, {}, {}},
		[]uint16{0, 1, 2, 0, 2, 3},
		[]asset.Submesh{
			{ID: asset.NewID(), Texture: texA, Start: 0, End: 3},
			{ID: asset.NewID(), Texture: texB, Start: 3, End: 6},
		},
	)
	require.NoError(t, err)
	library.AddMesh("mesh", mesh)

	return library, mesh, texA, texB
}

func TestBuildDrawPlanEmitsOneCommandPerSubmesh(t *testing.T) {
	library, mesh, texA, texB := testLibrary(t)

	meshes := map[asset.ID]meshBuffers{mesh.ID: {}}
	sets := map[asset.ID]core1_0.DescriptorSet{texA: {}, texB: {}}

	camera := identity()
	plan, err := buildDrawPlan(&camera, []Drawable{
		{Mesh: mesh.ID, Transform: identity()},
	}, library, meshes, sets)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	require.Equal(t, 3, plan[0].indexCount)
	require.Equal(t, 0, plan[0].firstIndex)
	require.Equal(t, 3, plan[1].indexCount)
	require.Equal(t, 3, plan[1].firstIndex)
}

func TestBuildDrawPlanRepeatsMeshPerDrawable(t *testing.T) {
	library, mesh, texA, texB := testLibrary(t)

	meshes := map[asset.ID]meshBuffers{mesh.ID: {}}
	sets := map[asset.ID]core1_0.DescriptorSet{texA: {}, texB: {}}

	camera := identity()
	plan, err := buildDrawPlan(&camera, []Drawable{
		{Mesh: mesh.ID, Transform: identity()},
		{Mesh: mesh.ID, Transform: identity()},
		{Mesh: mesh.ID, Transform: identity()},
	}, library, meshes, sets)
	require.NoError(t, err)
	require.Len(t, plan, 6)
}

func TestBuildDrawPlanEmptyDrawables(t *testing.T) {
	library, _, _, _ := testLibrary(t)

	camera := identity()
	plan, err := buildDrawPlan(&camera, nil, library, nil, nil)
	require.NoError(t, err)
	require.Empty(t, plan)
}

func TestBuildDrawPlanRejectsUnregisteredMesh(t *testing.T) {
	library, _, _, _ := testLibrary(t)

	camera := identity()
	_, err := buildDrawPlan(&camera, []Drawable{
		{Mesh: asset.NewID(), Transform: identity()},
	}, library, nil, nil)
	require.Error(t, err)
}

func TestBuildDrawPlanRejectsNonResidentMesh(t *testing.T) {
	library, mesh, texA, texB := testLibrary(t)

	sets := map[asset.ID]core1_0.DescriptorSet{texA: {}, texB: {}}

	camera := identity()
	_, err := buildDrawPlan(&camera, []Drawable{
		{Mesh: mesh.ID, Transform: identity()},
	}, library, map[asset.ID]meshBuffers{}, sets)
	require.Error(t, err)
	require.ErrorContains(t, err, "not GPU-resident")
}

func TestBuildDrawPlanRejectsUnboundTexture(t *testing.T) {
	library, mesh, texA, _ := testLibrary(t)

	meshes := map[asset.ID]meshBuffers{mesh.ID: {}}
	sets := map[asset.ID]core1_0.DescriptorSet{texA: {}}

	camera := identity()
	_, err := buildDrawPlan(&camera, []Drawable{
		{Mesh: mesh.ID, Transform: identity()},
	}, library, meshes, sets)
	require.Error(t, err)
	require.ErrorContains(t, err, "not GPU-resident")
}

func TestHandleResizeCoalesces(t *testing.T) {
	r := &Renderer{}

	r.HandleResize(core1_0.Extent2D{Width: 100, Height: 100})
	r.HandleResize(core1_0.Extent2D{Width: 200, Height: 150})
	r.HandleResize(core1_0.Extent2D{Width: 640, Height: 480})

	require.True(t, r.resizePending)
	require.Equal(t, core1_0.Extent2D{Width: 640, Height: 480}, r.pendingExtent)
}

func TestComposeTransformAppliesCameraOnTheLeft(t *testing.T) {
	var camera vkngmath.Mat4x4[float32]
	camera.SetTranslation(1, 2, 3)

	var model vkngmath.Mat4x4[float32]
	model.SetScale(2, 3, 4)

	// Scaling first leaves the translation column untouched; the reversed
	// order would scale it to (2, 6, 12).
	expected := vkngmath.Mat4x4[float32]{
		{2, 0, 0, 0},
		{0, 3, 0, 0},
		{0, 0, 4, 0},
		{1, 2, 3, 1},
	}

	require.Equal(t, expected, composeTransform(&camera, &model))
	require.NotEqual(t, expected, composeTransform(&model, &camera))
}

func TestComposeTransformWithIdentityCamera(t *testing.T) {
	camera := identity()

	var model vkngmath.Mat4x4[float32]
	model.SetRotationZ(0.5)

	require.Equal(t, model, composeTransform(&camera, &model))
}

func TestResizeTickSkipsDrawing(t *testing.T) {
	r := &Renderer{}
	require.False(t, skipFrameForRebuild(r.resizePending))

	r.HandleResize(core1_0.Extent2D{Width: 320, Height: 240})
	require.True(t, skipFrameForRebuild(r.resizePending))
}

func TestFlagRebuildKeepsLatestWindowSize(t *testing.T) {
	r := &Renderer{}
	r.HandleResize(core1_0.Extent2D{Width: 800, Height: 600})
	r.resizePending = false

	r.flagRebuild()

	require.True(t, r.resizePending)
	require.Equal(t, core1_0.Extent2D{Width: 800, Height: 600}, r.pendingExtent)
}

func TestNextFrameIndexCycles(t *testing.T) {
	require.Equal(t, 1, nextFrameIndex(0, 2))
	require.Equal(t, 0, nextFrameIndex(1, 2))

	frame := 0
	seen := []int{}
	for i := 0; i < 6; i++ {
		frame = nextFrameIndex(frame, 3)
		seen = append(seen, frame)
	}
	require.Equal(t, []int{1, 2, 0, 1, 2, 0}, seen)
}
