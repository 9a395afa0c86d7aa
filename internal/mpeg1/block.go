package mpeg1

func (d *Decoder) decodeBlock(block int) {
	n := d.readCoefficients(block)

	var dest []byte
	var destIndex, scan int
	cur := d.current()
	if block < 4 {
		dest = cur.y
		scan = d.codedWidth - 8
		destIndex = (d.mbRow*d.codedWidth + d.mbCol) << 4
		if block&1 != 0 {
			destIndex += 8
		}
		if block&2 != 0 {
			destIndex += d.codedWidth << 3
		}
	} else {
		dest = cur.cb
		if block == 5 {
			dest = cur.cr
		}
		scan = (d.codedWidth >> 1) - 8
		destIndex = ((d.mbRow * d.codedWidth) << 2) + (d.mbCol << 3)
	}

	if n == 1 {
		// DC only: every sample is the same.
		value := (d.blockData[0] + 128) >> 8
		if d.macroblockIntra {
			copyValueToDestination(value, dest, destIndex, scan)
		} else {
			addValueToDestination(value, dest, destIndex, scan)
		}
		d.blockData[0] = 0
		return
	}

	idct(&d.blockData)
	if d.macroblockIntra {
		copyBlockToDestination(&d.blockData, dest, destIndex, scan)
	} else {
		addBlockToDestination(&d.blockData, dest, destIndex, scan)
	}
	d.blockData = [64]int32{}
}

func clampByte(v int32) byte {
	return byte(min(max(v, 0), 255))
}

func copyBlockToDestination(block *[64]int32, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		for i := range 8 {
			dest[index+i] = clampByte(block[n+i])
		}
		index += 8 + scan
	}
}

func addBlockToDestination(block *[64]int32, dest []byte, index, scan int) {
	for n := 0; n < 64; n += 8 {
		for i := range 8 {
			dest[index+i] = clampByte(int32(dest[index+i]) + block[n+i])
		}
		index += 8 + scan
	}
}

func copyValueToDestination(value int32, dest []byte, index, scan int) {
	v := clampByte(value)
	for range 8 {
		for i := range 8 {
			dest[index+i] = v
		}
		index += 8 + scan
	}
}

func addValueToDestination(value int32, dest []byte, index, scan int) {
	for range 8 {
		for i := range 8 {
			dest[index+i] = clampByte(int32(dest[index+i]) + value)
		}
		index += 8 + scan
	}
}

// readCoefficients reads the coefficients of one block into blockData,
// dequantized and scaled for the IDCT, and returns the scan position
// after the last one.
func (d *Decoder) readCoefficients(block int) int {
	n := 0
	var quantMatrix *[64]uint8

	if d.macroblockIntra {
		var predictor *int32
		var dctSize int32
		switch {
		case block < 4:
			predictor = &d.dcPredictorY
			dctSize = d.readHuffman(dctDCSizeLuminance)
		case block == 4:
			predictor = &d.dcPredictorCb
			dctSize = d.readHuffman(dctDCSizeChrominance)
		default:
			predictor = &d.dcPredictorCr
			dctSize = d.readHuffman(dctDCSizeChrominance)
		}

		// DC is coded as a differential against the plane's predictor.
		if dctSize > 0 {
			differential := int32(d.Bits.Read(int(dctSize)))
			if differential&(1<<(dctSize-1)) != 0 {
				d.blockData[0] = *predictor + differential
			} else {
				d.blockData[0] = *predictor + ((-1 << dctSize) | (differential + 1))
			}
		} else {
			d.blockData[0] = *predictor
		}
		*predictor = d.blockData[0]

		d.blockData[0] <<= 3 + 5
		quantMatrix = &d.intraQuantMatrix
		n = 1
	} else {
		quantMatrix = &d.nonIntraQuantMatrix
	}

	for {
		var run, level int32
		coeff := d.readHuffman(dctCoefficient)

		if coeff == dctFirstOrEOB && n > 0 && d.Bits.Read(1) == 0 {
			break // end_of_block
		}
		if coeff == dctEscape {
			run = int32(d.Bits.Read(6))
			level = int32(d.Bits.Read(8))
			switch {
			case level == 0:
				level = int32(d.Bits.Read(8))
			case level == 128:
				level = int32(d.Bits.Read(8)) - 256
			case level > 128:
				level -= 256
			}
		} else {
			run = coeff >> 8
			level = coeff & 0xff
			if d.Bits.Read(1) != 0 {
				level = -level
			}
		}

		n += int(run)
		if n >= 64 {
			break
		}
		dezigZagged := zigZag[n]
		n++

		// Dequantize, oddify, clamp.
		level <<= 1
		if !d.macroblockIntra {
			if level < 0 {
				level--
			} else {
				level++
			}
		}
		level = (level * d.quantizerScale * int32(quantMatrix[dezigZagged])) >> 4
		if level&1 == 0 {
			if level > 0 {
				level--
			} else {
				level++
			}
		}
		level = min(max(level, -2048), 2047)

		d.blockData[dezigZagged] = level * premultiplierMatrix[dezigZagged]
	}
	return n
}
