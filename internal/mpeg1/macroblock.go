package mpeg1

// readHuffman walks t one bit at a time from the root. A branch with no
// code yields 0.
func (d *Decoder) readHuffman(t huffmanTable) int32 {
	node := int32(0)
	for t[node] != 0 {
		node = t[node+int32(d.Bits.Read(1))]
		if node < 0 {
			return 0
		}
	}
	return t[node+2]
}

func (d *Decoder) decodeSlice(slice int) {
	d.sliceBegin = true
	d.macroblockAddress = (slice-1)*d.mbWidth - 1

	d.resetMotionVectors()
	d.resetDCPredictors()

	d.quantizerScale = int32(d.Bits.Read(5))

	// extra_information_slice
	for d.Bits.Read(1) != 0 {
		d.Bits.Skip(8)
	}

	for d.decodeMacroblock() && !d.Bits.NextBytesAreStartCode() {
	}
}

func (d *Decoder) resetMotionVectors() {
	d.motionFwH, d.motionFwHPrev = 0, 0
	d.motionFwV, d.motionFwVPrev = 0, 0
}

func (d *Decoder) resetDCPredictors() {
	d.dcPredictorY = 128
	d.dcPredictorCb = 128
	d.dcPredictorCr = 128
}

func (d *Decoder) setMacroblockPosition() bool {
	if d.macroblockAddress < 0 || d.macroblockAddress >= d.mbSize {
		return false
	}
	d.mbRow = d.macroblockAddress / d.mbWidth
	d.mbCol = d.macroblockAddress % d.mbWidth
	return true
}

// decodeMacroblock decodes one macroblock and the skipped macroblocks in
// front of it. It returns false when the address leaves the picture,
// ending the slice.
func (d *Decoder) decodeMacroblock() bool {
	increment := 0
	t := d.readHuffman(macroblockAddressIncrement)
	for t == mbaStuffing {
		t = d.readHuffman(macroblockAddressIncrement)
	}
	for t == mbaEscape {
		increment += 33
		t = d.readHuffman(macroblockAddressIncrement)
	}
	increment += int(t)

	if d.sliceBegin {
		// The first increment of a slice is relative to the slice's row.
		d.sliceBegin = false
		d.macroblockAddress += increment
	} else {
		if d.macroblockAddress+increment >= d.mbSize {
			return false
		}
		if increment > 1 {
			d.resetDCPredictors()
			if d.pictureType == picturePredictive {
				d.resetMotionVectors()
			}
		}
		// Skipped macroblocks are predicted with the current vector.
		for ; increment > 1; increment-- {
			d.macroblockAddress++
			if !d.setMacroblockPosition() {
				return false
			}
			d.copyMacroblock(d.motionFwH, d.motionFwV, d.forward())
		}
		d.macroblockAddress++
	}
	if !d.setMacroblockPosition() {
		return false
	}

	d.macroblockType = d.readHuffman(macroblockType[d.pictureType])
	d.macroblockIntra = d.macroblockType&mbIntra != 0
	d.macroblockMotionFw = d.macroblockType&mbMotionFw != 0

	if d.macroblockType&mbQuant != 0 {
		d.quantizerScale = int32(d.Bits.Read(5))
	}

	if d.macroblockIntra {
		d.resetMotionVectors()
	} else {
		d.resetDCPredictors()
		d.decodeMotionVectors()
		d.copyMacroblock(d.motionFwH, d.motionFwV, d.forward())
	}

	var cbp int32
	switch {
	case d.macroblockType&mbPattern != 0:
		cbp = d.readHuffman(codedBlockPattern)
	case d.macroblockIntra:
		cbp = 0x3f
	}

	mask := int32(0x20)
	for block := range 6 {
		if cbp&mask != 0 {
			d.decodeBlock(block)
		}
		mask >>= 1
	}
	return true
}

func (d *Decoder) decodeMotionVectors() {
	if !d.macroblockMotionFw {
		if d.pictureType == picturePredictive {
			d.resetMotionVectors()
		}
		return
	}

	d.motionFwHPrev = d.decodeMotionComponent(d.motionFwHPrev)
	d.motionFwH = d.motionFwHPrev
	if d.fullPelForward {
		d.motionFwH <<= 1
	}

	d.motionFwVPrev = d.decodeMotionComponent(d.motionFwVPrev)
	d.motionFwV = d.motionFwVPrev
	if d.fullPelForward {
		d.motionFwV <<= 1
	}
}

// decodeMotionComponent reads one motion code and residual and returns the
// new predictor, wrapped into [-16F, 16F-1].
func (d *Decoder) decodeMotionComponent(prev int) int {
	code := int(d.readHuffman(motion))
	delta := code
	if code != 0 && d.forwardF != 1 {
		r := int(d.Bits.Read(d.forwardRSize))
		delta = ((abs(code) - 1) << d.forwardRSize) + r + 1
		if code < 0 {
			delta = -delta
		}
	}

	prev += delta
	if prev > (d.forwardF<<4)-1 {
		prev -= d.forwardF << 5
	} else if prev < -d.forwardF<<4 {
		prev += d.forwardF << 5
	}
	return prev
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
