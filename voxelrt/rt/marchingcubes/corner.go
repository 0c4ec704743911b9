package marchingcubes

// cornerOffset gives the (di,dj,dk) offset of this project's corner order
// (spec §4.5: corner 0=(i,j,k), 1=(i,j,k+1), 2=(i,j+1,k+1), 3=(i,j+1,k),
// 4=(i+1,j,k), 5=(i+1,j,k+1), 6=(i+1,j+1,k), 7=(i+1,j+1,k+1)) from the
// cube's (i,j,k) anchor.
var cornerOffset = [8][3]int{
	{0, 0, 0},
	{0, 0, 1},
	{0, 1, 1},
	{0, 1, 0},
	{1, 0, 0},
	{1, 0, 1},
	{1, 1, 0},
	{1, 1, 1},
}

// cornerToStd[c] is the textbook corner index (edgeTable/triTable's
// numbering) that this project's corner c occupies. Derived once, by hand,
// from matching each corner's (di,dj,dk) offset against the textbook
// v0..v7 positions documented in tables.go.
var cornerToStd = [8]uint{0, 4, 7, 3, 1, 5, 2, 6}

// stdToCorner is the inverse of cornerToStd: stdToCorner[v] is this
// project's corner index occupying textbook position v.
var stdToCorner = [8]int{0, 4, 6, 3, 1, 5, 7, 2}

// cubeIndex packs the 8 per-corner "inside" bits (this project's corner
// order, bit c set iff corner c is negative) into the textbook cube index
// edgeTable/triTable expect.
func cubeIndex(insideBits uint8) int {
	var idx int
	for c := 0; c < 8; c++ {
		if insideBits&(1<<uint(c)) != 0 {
			idx |= 1 << cornerToStd[c]
		}
	}
	return idx
}
