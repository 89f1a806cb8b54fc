package main

import (
	"math"

	"github.com/veandco/go-sdl2/sdl"
	vkngmath "github.com/vkngwrapper/math"
)

// camera produces the combined projection-view matrix for a frame.
type camera interface {
	matrix(aspect float32, elapsed float64) vkngmath.Mat4x4[float32]
	handleEvent(event sdl.Event)
}

// orbitCamera circles the origin at a fixed height, one revolution every
// eight seconds.
type orbitCamera struct {
	radius float32
	height float32
}

func newOrbitCamera() *orbitCamera {
	return &orbitCamera{radius: 3, height: 2}
}

func (c *orbitCamera) matrix(aspect float32, elapsed float64) vkngmath.Mat4x4[float32] {
	angle := elapsed * math.Pi / 4.0

	eye := vkngmath.Vec3[float32]{
		X: c.radius * float32(math.Cos(angle)),
		Y: c.radius * float32(math.Sin(angle)),
		Z: c.height,
	}

	return composeView(&eye, &vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 0}, aspect)
}

func (c *orbitCamera) handleEvent(event sdl.Event) {}

// lookCamera sits at a fixed position and follows the mouse.
type lookCamera struct {
	yaw   float64
	pitch float64
}

func newLookCamera(window *sdl.Window) *lookCamera {
	sdl.SetRelativeMouseMode(true)
	return &lookCamera{}
}

func (c *lookCamera) matrix(aspect float32, elapsed float64) vkngmath.Mat4x4[float32] {
	eye := vkngmath.Vec3[float32]{X: 2, Y: 2, Z: 2}

	target := vkngmath.Vec3[float32]{
		X: eye.X + float32(math.Cos(c.yaw)*math.Cos(c.pitch)),
		Y: eye.Y + float32(math.Sin(c.yaw)*math.Cos(c.pitch)),
		Z: eye.Z + float32(math.Sin(c.pitch)),
	}

	return composeView(&eye, &target, aspect)
}

func (c *lookCamera) handleEvent(event sdl.Event) {
	motion, ok := event.(*sdl.MouseMotionEvent)
	if !ok {
		return
	}

	const sensitivity = 0.002
	c.yaw -= float64(motion.XRel) * sensitivity
	c.pitch -= float64(motion.YRel) * sensitivity

	// Keep the camera from flipping over the poles.
	limit := math.Pi/2 - 0.01
	if c.pitch > limit {
		c.pitch = limit
	}
	if c.pitch < -limit {
		c.pitch = -limit
	}
}

func composeView(eye, target *vkngmath.Vec3[float32], aspect float32) vkngmath.Mat4x4[float32] {
	var view vkngmath.Mat4x4[float32]
	view.SetLookAt(eye, target, &vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 1})

	var proj vkngmath.Mat4x4[float32]
	proj.SetPerspective(math.Pi/4.0, aspect, 0.1, 100.0)

	var matrix vkngmath.Mat4x4[float32]
	matrix.SetMultMat4x4(&proj, &view)
	return matrix
}
