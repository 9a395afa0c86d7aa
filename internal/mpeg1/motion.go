package mpeg1

// copyMacroblock predicts the current macroblock from ref displaced by a
// half-pel motion vector. Chroma uses the vector halved. Predictions that
// would read outside the reference planes are skipped.
func (d *Decoder) copyMacroblock(motionH, motionV int, ref *planes) {
	cur := d.current()

	copyBlock(cur.y, ref.y, d.codedWidth, 16,
		d.mbRow<<4, d.mbCol<<4, motionH, motionV)

	chromaH, chromaV := motionH/2, motionV/2
	copyBlock(cur.cb, ref.cb, d.halfWidth, 8,
		d.mbRow<<3, d.mbCol<<3, chromaH, chromaV)
	copyBlock(cur.cr, ref.cr, d.halfWidth, 8,
		d.mbRow<<3, d.mbCol<<3, chromaH, chromaV)
}

// copyBlock writes the size×size block at (row, col) of dst from src
// displaced by (motionH, motionV) half pixels, averaging neighbours with
// rounding for odd components.
func copyBlock(dst, src []byte, width, size, row, col, motionH, motionV int) {
	h, v := motionH>>1, motionV>>1
	oddH, oddV := motionH&1 == 1, motionV&1 == 1

	srcIndex := (row+v)*width + col + h
	last := srcIndex + (size-1)*width + size - 1
	if oddH {
		last++
	}
	if oddV {
		last += width
	}
	if srcIndex < 0 || last >= len(src) {
		return
	}

	destIndex := row*width + col
	for y := 0; y < size; y++ {
		s := srcIndex + y*width
		o := destIndex + y*width
		switch {
		case oddH && oddV:
			for x := 0; x < size; x++ {
				a, b := int(src[s+x]), int(src[s+x+1])
				c, e := int(src[s+x+width]), int(src[s+x+width+1])
				dst[o+x] = byte((a + b + c + e + 2) >> 2)
			}
		case oddH:
			for x := 0; x < size; x++ {
				dst[o+x] = byte((int(src[s+x]) + int(src[s+x+1]) + 1) >> 1)
			}
		case oddV:
			for x := 0; x < size; x++ {
				dst[o+x] = byte((int(src[s+x]) + int(src[s+x+width]) + 1) >> 1)
			}
		default:
			copy(dst[o:o+size], src[s:s+size])
		}
	}
}
