package serialize

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/kfusion/tsdf/voxelrt/rt/errs"
	"github.com/kfusion/tsdf/voxelrt/rt/marchingcubes"
)

// WritePLYFile writes tris to path as an ASCII PLY mesh (spec §6): a
// vertex list of x y z nx ny nz, and a triangular face list indexing it,
// each vertex deduplicated only within its own triangle (no cross-triangle
// vertex welding — marching cubes already caches per-cube edge vertices,
// but two adjacent cubes compute their shared edge independently).
func WritePLYFile(path string, tris []marchingcubes.Triangle) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.WrapIOError(err, "serialize: create %q", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := WritePLY(w, tris); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errs.WrapIOError(err, "serialize: flush %q", path)
	}
	return nil
}

// WritePLY encodes tris onto w as an ASCII PLY mesh.
func WritePLY(w io.Writer, tris []marchingcubes.Triangle) error {
	nVerts := len(tris) * 3
	nFaces := len(tris)

	header := fmt.Sprintf(
		"ply\nformat ascii 1.0\nelement vertex %d\nproperty float x\nproperty float y\nproperty float z\n"+
			"property float nx\nproperty float ny\nproperty float nz\n"+
			"element face %d\nproperty list uchar int vertex_indices\nend_header\n",
		nVerts, nFaces,
	)
	if _, err := io.WriteString(w, header); err != nil {
		return errs.WrapIOError(err, "serialize: write PLY header")
	}

	for _, tr := range tris {
		for _, vn := range [][2][3]float32{
			{{tr.V0.X(), tr.V0.Y(), tr.V0.Z()}, {tr.N0.X(), tr.N0.Y(), tr.N0.Z()}},
			{{tr.V1.X(), tr.V1.Y(), tr.V1.Z()}, {tr.N1.X(), tr.N1.Y(), tr.N1.Z()}},
			{{tr.V2.X(), tr.V2.Y(), tr.V2.Z()}, {tr.N2.X(), tr.N2.Y(), tr.N2.Z()}},
		} {
			p, n := vn[0], vn[1]
			if _, err := fmt.Fprintf(w, "%g %g %g %g %g %g\n", p[0], p[1], p[2], n[0], n[1], n[2]); err != nil {
				return errs.WrapIOError(err, "serialize: write PLY vertex")
			}
		}
	}

	for i := 0; i < nFaces; i++ {
		base := i * 3
		if _, err := fmt.Fprintf(w, "3 %d %d %d\n", base, base+1, base+2); err != nil {
			return errs.WrapIOError(err, "serialize: write PLY face")
		}
	}
	return nil
}
