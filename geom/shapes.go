package geom

import "github.com/gorustyt/navbake/common"

// Quad returns two upward facing triangles covering [x0,x1]x[z0,z1] at y.
func Quad(x0, z0, x1, z1, y float32) []Triangle {
	a := common.Vec3{x0, y, z0}
	b := common.Vec3{x0, y, z1}
	c := common.Vec3{x1, y, z0}
	d := common.Vec3{x1, y, z1}
	return []Triangle{{a, b, c}, {c, b, d}}
}

// Heightmap triangulates a height function sampled every step world units,
// starting at origin and spanning cells x cells.
func Heightmap(origin common.Vec3, cells int, step float32, height func(x, z float32) float32) []Triangle {
	tris := make([]Triangle, 0, cells*cells*2)
	at := func(i, j int) common.Vec3 {
		x := origin[0] + float32(i)*step
		z := origin[2] + float32(j)*step
		return common.Vec3{x, origin[1] + height(x, z), z}
	}
	for j := 0; j < cells; j++ {
		for i := 0; i < cells; i++ {
			a, b, c, d := at(i, j), at(i, j+1), at(i+1, j), at(i+1, j+1)
			tris = append(tris, Triangle{a, b, c}, Triangle{c, b, d})
		}
	}
	return tris
}

// BoxMesh returns the twelve triangles of a solid box. Only the top faces
// point up.
func BoxMesh(box common.Box) []Triangle {
	lo, hi := box.Min, box.Max
	tris := Quad(lo[0], lo[2], hi[0], hi[2], hi[1])
	// bottom, facing down
	bot := Quad(lo[0], lo[2], hi[0], hi[2], lo[1])
	for _, t := range bot {
		tris = append(tris, Triangle{t[0], t[2], t[1]})
	}
	v := func(x, y, z float32) common.Vec3 { return common.Vec3{x, y, z} }
	sides := [][4]common.Vec3{
		{v(lo[0], lo[1], lo[2]), v(hi[0], lo[1], lo[2]), v(hi[0], hi[1], lo[2]), v(lo[0], hi[1], lo[2])},
		{v(hi[0], lo[1], hi[2]), v(lo[0], lo[1], hi[2]), v(lo[0], hi[1], hi[2]), v(hi[0], hi[1], hi[2])},
		{v(lo[0], lo[1], hi[2]), v(lo[0], lo[1], lo[2]), v(lo[0], hi[1], lo[2]), v(lo[0], hi[1], hi[2])},
		{v(hi[0], lo[1], lo[2]), v(hi[0], lo[1], hi[2]), v(hi[0], hi[1], hi[2]), v(hi[0], hi[1], lo[2])},
	}
	for _, s := range sides {
		tris = append(tris, Triangle{s[0], s[1], s[2]}, Triangle{s[0], s[2], s[3]})
	}
	return tris
}
