package mpeg1

import "strings"

// vlcCode is one variable-length code word, written MSB first. Spaces are
// ignored and only group the bits for reading.
type vlcCode struct {
	bits  string
	value int32
}

// huffmanTable is a binary code tree flattened into triples of
// [offset of the 0 child, offset of the 1 child, leaf value]. A node whose
// 0 child offset is zero is a leaf; -1 marks a branch with no code.
type huffmanTable []int32

func buildHuffmanTable(codes []vlcCode) huffmanTable {
	t := huffmanTable{0, 0, 0}
	for _, c := range codes {
		bits := strings.ReplaceAll(c.bits, " ", "")
		node := 0
		for i := 0; i < len(bits); i++ {
			bit := int(bits[i] - '0')
			next := int(t[node+bit])
			if next == 0 {
				next = len(t)
				t = append(t, 0, 0, 0)
				t[node+bit] = int32(next)
			}
			node = next
		}
		t[node+2] = c.value
	}
	for node := 0; node < len(t); node += 3 {
		if t[node] == 0 && t[node+1] == 0 {
			continue
		}
		for b := 0; b < 2; b++ {
			if t[node+b] == 0 {
				t[node+b] = -1
			}
		}
	}
	return t
}

// Macroblock address increment values beyond 33.
const (
	mbaStuffing = 34
	mbaEscape   = 35
)

// Macroblock type flags.
const (
	mbQuant    = 0x10
	mbMotionFw = 0x08
	mbMotionBw = 0x04
	mbPattern  = 0x02
	mbIntra    = 0x01
)

// DCT coefficient codes are run<<8 | level. The code "1" decodes to
// dctFirstOrEOB and is resolved by the caller; dctEscape introduces a
// fixed-length run and level.
const (
	dctFirstOrEOB = 0x0001
	dctEscape     = 0xffff
)

var macroblockAddressIncrementCodes = []vlcCode{
	{"1", 1},
	{"011", 2},
	{"010", 3},
	{"0011", 4},
	{"0010", 5},
	{"0001 1", 6},
	{"0001 0", 7},
	{"0000 111", 8},
	{"0000 110", 9},
	{"0000 1011", 10},
	{"0000 1010", 11},
	{"0000 1001", 12},
	{"0000 1000", 13},
	{"0000 0111", 14},
	{"0000 0110", 15},
	{"0000 0101 11", 16},
	{"0000 0101 10", 17},
	{"0000 0101 01", 18},
	{"0000 0101 00", 19},
	{"0000 0100 11", 20},
	{"0000 0100 10", 21},
	{"0000 0100 011", 22},
	{"0000 0100 010", 23},
	{"0000 0100 001", 24},
	{"0000 0100 000", 25},
	{"0000 0011 111", 26},
	{"0000 0011 110", 27},
	{"0000 0011 101", 28},
	{"0000 0011 100", 29},
	{"0000 0011 011", 30},
	{"0000 0011 010", 31},
	{"0000 0011 001", 32},
	{"0000 0011 000", 33},
	{"0000 0001 111", mbaStuffing},
	{"0000 0001 000", mbaEscape},
}

var macroblockTypeIntraCodes = []vlcCode{
	{"1", mbIntra},
	{"01", mbQuant | mbIntra},
}

var macroblockTypePredictiveCodes = []vlcCode{
	{"1", mbMotionFw | mbPattern},
	{"01", mbPattern},
	{"001", mbMotionFw},
	{"0001 1", mbIntra},
	{"0001 0", mbQuant | mbMotionFw | mbPattern},
	{"0000 1", mbQuant | mbPattern},
	{"0000 01", mbQuant | mbIntra},
}

var macroblockTypeBCodes = []vlcCode{
	{"10", mbMotionFw | mbMotionBw},
	{"11", mbMotionFw | mbMotionBw | mbPattern},
	{"010", mbMotionBw},
	{"011", mbMotionBw | mbPattern},
	{"0010", mbMotionFw},
	{"0011", mbMotionFw | mbPattern},
	{"0001 1", mbIntra},
	{"0001 0", mbQuant | mbMotionFw | mbMotionBw | mbPattern},
	{"0000 11", mbQuant | mbMotionFw | mbPattern},
	{"0000 10", mbQuant | mbMotionBw | mbPattern},
	{"0000 01", mbQuant | mbIntra},
}

var codedBlockPatternCodes = []vlcCode{
	{"111", 60},
	{"1101", 4},
	{"1100", 8},
	{"1011", 16},
	{"1010", 32},
	{"1001 1", 12},
	{"1001 0", 48},
	{"1000 1", 20},
	{"1000 0", 40},
	{"0111 1", 28},
	{"0111 0", 44},
	{"0110 1", 52},
	{"0110 0", 56},
	{"0101 1", 1},
	{"0101 0", 61},
	{"0100 1", 2},
	{"0100 0", 62},
	{"0011 11", 24},
	{"0011 10", 36},
	{"0011 01", 3},
	{"0011 00", 63},
	{"0010 111", 5},
	{"0010 110", 9},
	{"0010 101", 17},
	{"0010 100", 33},
	{"0010 011", 6},
	{"0010 010", 10},
	{"0010 001", 18},
	{"0010 000", 34},
	{"0001 1111", 7},
	{"0001 1110", 11},
	{"0001 1101", 19},
	{"0001 1100", 35},
	{"0001 1011", 13},
	{"0001 1010", 49},
	{"0001 1001", 21},
	{"0001 1000", 41},
	{"0001 0111", 14},
	{"0001 0110", 50},
	{"0001 0101", 22},
	{"0001 0100", 42},
	{"0001 0011", 15},
	{"0001 0010", 51},
	{"0001 0001", 23},
	{"0001 0000", 43},
	{"0000 1111", 25},
	{"0000 1110", 37},
	{"0000 1101", 26},
	{"0000 1100", 38},
	{"0000 1011", 29},
	{"0000 1010", 45},
	{"0000 1001", 53},
	{"0000 1000", 57},
	{"0000 0111", 30},
	{"0000 0110", 46},
	{"0000 0101", 54},
	{"0000 0100", 58},
	{"0000 0011 1", 31},
	{"0000 0011 0", 47},
	{"0000 0010 1", 55},
	{"0000 0010 0", 59},
	{"0000 0001 1", 27},
	{"0000 0001 0", 39},
}

var motionCodes = []vlcCode{
	{"0000 0011 001", -16},
	{"0000 0011 011", -15},
	{"0000 0011 101", -14},
	{"0000 0011 111", -13},
	{"0000 0100 001", -12},
	{"0000 0100 011", -11},
	{"0000 0100 11", -10},
	{"0000 0101 01", -9},
	{"0000 0101 11", -8},
	{"0000 0111", -7},
	{"0000 1001", -6},
	{"0000 1011", -5},
	{"0000 111", -4},
	{"0001 1", -3},
	{"0011", -2},
	{"011", -1},
	{"1", 0},
	{"010", 1},
	{"0010", 2},
	{"0001 0", 3},
	{"0000 110", 4},
	{"0000 1010", 5},
	{"0000 1000", 6},
	{"0000 0110", 7},
	{"0000 0101 10", 8},
	{"0000 0101 00", 9},
	{"0000 0100 10", 10},
	{"0000 0100 010", 11},
	{"0000 0100 000", 12},
	{"0000 0011 110", 13},
	{"0000 0011 100", 14},
	{"0000 0011 010", 15},
	{"0000 0011 000", 16},
}

var dctDCSizeLuminanceCodes = []vlcCode{
	{"100", 0},
	{"00", 1},
	{"01", 2},
	{"101", 3},
	{"110", 4},
	{"1110", 5},
	{"1111 0", 6},
	{"1111 10", 7},
	{"1111 110", 8},
}

var dctDCSizeChrominanceCodes = []vlcCode{
	{"00", 0},
	{"01", 1},
	{"10", 2},
	{"110", 3},
	{"1110", 4},
	{"1111 0", 5},
	{"1111 10", 6},
	{"1111 110", 7},
	{"1111 1110", 8},
}

var dctCoefficientCodes = []vlcCode{
	{"1", dctFirstOrEOB},
	{"011", 0x0101},
	{"0100", 0x0002},
	{"0101", 0x0201},
	{"0010 1", 0x0003},
	{"0011 1", 0x0301},
	{"0011 0", 0x0401},
	{"0001 10", 0x0102},
	{"0001 11", 0x0501},
	{"0001 01", 0x0601},
	{"0001 00", 0x0701},
	{"0000 110", 0x0004},
	{"0000 100", 0x0202},
	{"0000 111", 0x0801},
	{"0000 101", 0x0901},
	{"0000 01", dctEscape},
	{"0010 0110", 0x0005},
	{"0010 0001", 0x0006},
	{"0010 0101", 0x0103},
	{"0010 0100", 0x0302},
	{"0010 0111", 0x0a01},
	{"0010 0011", 0x0b01},
	{"0010 0010", 0x0c01},
	{"0010 0000", 0x0d01},
	{"0000 0010 10", 0x0007},
	{"0000 0011 00", 0x0104},
	{"0000 0010 11", 0x0203},
	{"0000 0011 11", 0x0402},
	{"0000 0010 01", 0x0502},
	{"0000 0011 10", 0x0e01},
	{"0000 0011 01", 0x0f01},
	{"0000 0010 00", 0x1001},
	{"0000 0001 1101", 0x0008},
	{"0000 0001 1000", 0x0009},
	{"0000 0001 0011", 0x000a},
	{"0000 0001 0000", 0x000b},
	{"0000 0001 1011", 0x0105},
	{"0000 0001 0100", 0x0204},
	{"0000 0001 1100", 0x0303},
	{"0000 0001 0010", 0x0403},
	{"0000 0001 1110", 0x0602},
	{"0000 0001 0101", 0x0702},
	{"0000 0001 0001", 0x0802},
	{"0000 0001 1111", 0x1101},
	{"0000 0001 1010", 0x1201},
	{"0000 0001 1001", 0x1301},
	{"0000 0001 0111", 0x1401},
	{"0000 0001 0110", 0x1501},
	{"0000 0000 1101 0", 0x000c},
	{"0000 0000 1100 1", 0x000d},
	{"0000 0000 1100 0", 0x000e},
	{"0000 0000 1011 1", 0x000f},
	{"0000 0000 1011 0", 0x0106},
	{"0000 0000 1010 1", 0x0107},
	{"0000 0000 1010 0", 0x0205},
	{"0000 0000 1001 1", 0x0304},
	{"0000 0000 1001 0", 0x0503},
	{"0000 0000 1000 1", 0x0902},
	{"0000 0000 1000 0", 0x0a02},
	{"0000 0000 1111 1", 0x1601},
	{"0000 0000 1111 0", 0x1701},
	{"0000 0000 1110 1", 0x1801},
	{"0000 0000 1110 0", 0x1901},
	{"0000 0000 1101 1", 0x1a01},
	{"0000 0000 0111 11", 0x0010},
	{"0000 0000 0111 10", 0x0011},
	{"0000 0000 0111 01", 0x0012},
	{"0000 0000 0111 00", 0x0013},
	{"0000 0000 0110 11", 0x0014},
	{"0000 0000 0110 10", 0x0015},
	{"0000 0000 0110 01", 0x0016},
	{"0000 0000 0110 00", 0x0017},
	{"0000 0000 0101 11", 0x0018},
	{"0000 0000 0101 10", 0x0019},
	{"0000 0000 0101 01", 0x001a},
	{"0000 0000 0101 00", 0x001b},
	{"0000 0000 0100 11", 0x001c},
	{"0000 0000 0100 10", 0x001d},
	{"0000 0000 0100 01", 0x001e},
	{"0000 0000 0100 00", 0x001f},
	{"0000 0000 0011 000", 0x0020},
	{"0000 0000 0010 111", 0x0021},
	{"0000 0000 0010 110", 0x0022},
	{"0000 0000 0010 101", 0x0023},
	{"0000 0000 0010 100", 0x0024},
	{"0000 0000 0010 011", 0x0025},
	{"0000 0000 0010 010", 0x0026},
	{"0000 0000 0010 001", 0x0027},
	{"0000 0000 0010 000", 0x0028},
	{"0000 0000 0011 111", 0x0108},
	{"0000 0000 0011 110", 0x0109},
	{"0000 0000 0011 101", 0x010a},
	{"0000 0000 0011 100", 0x010b},
	{"0000 0000 0011 011", 0x010c},
	{"0000 0000 0011 010", 0x010d},
	{"0000 0000 0011 001", 0x010e},
	{"0000 0000 0001 0011", 0x010f},
	{"0000 0000 0001 0010", 0x0110},
	{"0000 0000 0001 0001", 0x0111},
	{"0000 0000 0001 0000", 0x0112},
	{"0000 0000 0001 0100", 0x0603},
	{"0000 0000 0001 1010", 0x0b02},
	{"0000 0000 0001 1001", 0x0c02},
	{"0000 0000 0001 1000", 0x0d02},
	{"0000 0000 0001 0111", 0x0e02},
	{"0000 0000 0001 0110", 0x0f02},
	{"0000 0000 0001 0101", 0x1002},
	{"0000 0000 0001 1111", 0x1b01},
	{"0000 0000 0001 1110", 0x1c01},
	{"0000 0000 0001 1101", 0x1d01},
	{"0000 0000 0001 1100", 0x1e01},
	{"0000 0000 0001 1011", 0x1f01},
}

var (
	macroblockAddressIncrement = buildHuffmanTable(macroblockAddressIncrementCodes)
	codedBlockPattern          = buildHuffmanTable(codedBlockPatternCodes)
	motion                     = buildHuffmanTable(motionCodes)
	dctDCSizeLuminance         = buildHuffmanTable(dctDCSizeLuminanceCodes)
	dctDCSizeChrominance       = buildHuffmanTable(dctDCSizeChrominanceCodes)
	dctCoefficient             = buildHuffmanTable(dctCoefficientCodes)

	// macroblockType is indexed by picture coding type; D pictures carry
	// no macroblock types and are never decoded.
	macroblockType = [4]huffmanTable{
		nil,
		buildHuffmanTable(macroblockTypeIntraCodes),
		buildHuffmanTable(macroblockTypePredictiveCodes),
		buildHuffmanTable(macroblockTypeBCodes),
	}
)
