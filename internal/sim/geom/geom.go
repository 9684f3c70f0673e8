package geom

import "math"

// Vec3 is a continuous world position.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) DistSq(o Vec3) float64 {
	dx := v.X - o.X
	dy := v.Y - o.Y
	dz := v.Z - o.Z
	return dx*dx + dy*dy + dz*dz
}

func (v Vec3) ToArray() [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

func Vec3FromArray(a [3]float64) Vec3 { return Vec3{X: a[0], Y: a[1], Z: a[2]} }

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X int
	Y int
	Z int
}

func (p BlockPos) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func BlockPosFromArray(a [3]int) BlockPos { return BlockPos{X: a[0], Y: a[1], Z: a[2]} }

// Center returns the position at the middle of the block.
func (p BlockPos) Center() Vec3 {
	return Vec3{X: float64(p.X) + 0.5, Y: float64(p.Y) + 0.5, Z: float64(p.Z) + 0.5}
}

// Floor returns the block containing v.
func Floor(v Vec3) BlockPos {
	return BlockPos{X: int(math.Floor(v.X)), Y: int(math.Floor(v.Y)), Z: int(math.Floor(v.Z))}
}
