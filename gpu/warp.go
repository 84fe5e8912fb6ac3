package gpu

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/prism"
)

// maxGridCells keeps (cells+1)^2 vertices within uint16 indices.
const maxGridCells = 254

// warpGrid is a subdivided quad grid mapping slice space onto an input
// region. Vertex and index buffers are reused between frames.
type warpGrid struct {
	cells int
	verts []ebiten.Vertex
	inds  []uint16
}

func newWarpGrid(cells int) *warpGrid {
	cells = min(max(cells, 1), maxGridCells)
	vn := cells + 1
	g := &warpGrid{
		cells: cells,
		verts: make([]ebiten.Vertex, vn*vn),
		inds:  make([]uint16, cells*cells*6),
	}
	ii := 0
	for r := 0; r < cells; r++ {
		for c := 0; c < cells; c++ {
			tl := uint16(r*vn + c)
			tr := tl + 1
			bl := uint16((r+1)*vn + c)
			br := bl + 1
			g.inds[ii+0] = tl
			g.inds[ii+1] = bl
			g.inds[ii+2] = tr
			g.inds[ii+3] = tr
			g.inds[ii+4] = bl
			g.inds[ii+5] = br
			ii += 6
		}
	}
	return g
}

// update positions the grid for a w x h slice image sampling input rect ir
// through warp. A nil warp needs a single cell.
func (g *warpGrid) update(w, h int, ir prism.Rect, warp prism.WarpFunc) ([]ebiten.Vertex, []uint16) {
	cells := g.cells
	if warp == nil {
		cells = 1
	}
	vn := cells + 1
	verts := g.verts[:vn*vn]
	for r := 0; r <= cells; r++ {
		v := float64(r) / float64(cells)
		for c := 0; c <= cells; c++ {
			u := float64(c) / float64(cells)
			su, sv := u, v
			if warp != nil {
				p := warp(u, v)
				su, sv = p.X, p.Y
			}
			verts[r*vn+c] = ebiten.Vertex{
				DstX: float32(u * float64(w)), DstY: float32(v * float64(h)),
				SrcX: float32(ir.X + su*ir.Width), SrcY: float32(ir.Y + sv*ir.Height),
				ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
			}
		}
	}
	if cells == g.cells {
		return verts, g.inds
	}
	// Single quad.
	return verts, []uint16{0, 2, 1, 1, 2, 3}
}
