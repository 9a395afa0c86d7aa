package mpeg1

import "bytes"

// ATSC A/53 carries closed captions in picture user_data behind this
// identifier.
var atscIdentifier = []byte("GA94")

// CCData extracts the cc_data constructs from an ATSC A/53 user_data
// payload. It returns the raw 3 byte constructs (marker/valid/type, data
// byte 1, data byte 2) for valid entries, or nil when data is not an
// ATSC caption payload.
func CCData(data []byte) [][3]byte {
	if len(data) < 7 || !bytes.Equal(data[:4], atscIdentifier) || data[4] != 0x03 {
		return nil
	}
	flags := data[5]
	if flags&0x40 == 0 { // process_cc_data_flag
		return nil
	}
	count := int(flags & 0x1F)
	body := data[7:] // skips em_data

	var out [][3]byte
	for i := 0; i < count && 3*i+2 < len(body); i++ {
		c := [3]byte{body[3*i], body[3*i+1], body[3*i+2]}
		if c[0]&0x04 == 0 { // cc_valid
			continue
		}
		out = append(out, c)
	}
	return out
}
