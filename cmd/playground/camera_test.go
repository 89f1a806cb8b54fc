package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veandco/go-sdl2/sdl"
	vkngmath "github.com/vkngwrapper/math"
)

func TestComposeViewAppliesProjectionOnTheLeft(t *testing.T) {
	eye := vkngmath.Vec3[float32]{X: 2, Y: 2, Z: 2}
	target := vkngmath.Vec3[float32]{}

	var view vkngmath.Mat4x4[float32]
	view.SetLookAt(&eye, &target, &vkngmath.Vec3[float32]{Z: 1})

	var proj vkngmath.Mat4x4[float32]
	proj.SetPerspective(math.Pi/4.0, 1, 0.1, 100.0)

	var expected vkngmath.Mat4x4[float32]
	expected.SetMultMat4x4(&proj, &view)

	var swapped vkngmath.Mat4x4[float32]
	swapped.SetMultMat4x4(&view, &proj)

	composed := composeView(&eye, &target, 1)
	require.Equal(t, expected, composed)
	require.NotEqual(t, swapped, composed)
}

func TestLookCameraClampsPitch(t *testing.T) {
	c := &lookCamera{}

	c.handleEvent(&sdl.MouseMotionEvent{YRel: 10000})
	require.LessOrEqual(t, math.Abs(c.pitch), math.Pi/2)

	c.handleEvent(&sdl.MouseMotionEvent{YRel: -20000})
	require.LessOrEqual(t, math.Abs(c.pitch), math.Pi/2)
}
