package mp2

// matrixTransform computes V[i] = Σ s[k] cos((16+i)(2k+1)π/64) for the
// 32 subband samples at index p and stores the 64 results in v. It is a
// fast DCT: 32 butterflies over mirrored subband pairs, then four rounds
// of recombination, written out in full.
func matrixTransform(s *[32][3]int, p int, v []float32) {
	var t01, t02, t03, t04, t05, t06, t07, t08, t09, t10, t11, t12,
		t13, t14, t15, t16, t17, t18, t19, t20, t21, t22, t23, t24,
		t25, t26, t27, t28, t29, t30, t31, t32, t33 float64

	t01 = float64(s[0][p] + s[31][p])
	t02 = float64(s[0][p]-s[31][p]) * 0.500602998235
	t03 = float64(s[1][p] + s[30][p])
	t04 = float64(s[1][p]-s[30][p]) * 0.505470959898
	t05 = float64(s[2][p] + s[29][p])
	t06 = float64(s[2][p]-s[29][p]) * 0.515447309923
	t07 = float64(s[3][p] + s[28][p])
	t08 = float64(s[3][p]-s[28][p]) * 0.53104259109
	t09 = float64(s[4][p] + s[27][p])
	t10 = float64(s[4][p]-s[27][p]) * 0.553103896034
	t11 = float64(s[5][p] + s[26][p])
	t12 = float64(s[5][p]-s[26][p]) * 0.582934968206
	t13 = float64(s[6][p] + s[25][p])
	t14 = float64(s[6][p]-s[25][p]) * 0.622504123036
	t15 = float64(s[7][p] + s[24][p])
	t16 = float64(s[7][p]-s[24][p]) * 0.674808341455
	t17 = float64(s[8][p] + s[23][p])
	t18 = float64(s[8][p]-s[23][p]) * 0.744536271002
	t19 = float64(s[9][p] + s[22][p])
	t20 = float64(s[9][p]-s[22][p]) * 0.839349645416
	t21 = float64(s[10][p] + s[21][p])
	t22 = float64(s[10][p]-s[21][p]) * 0.972568237862
	t23 = float64(s[11][p] + s[20][p])
	t24 = float64(s[11][p]-s[20][p]) * 1.16943993343
	t25 = float64(s[12][p] + s[19][p])
	t26 = float64(s[12][p]-s[19][p]) * 1.48416461631
	t27 = float64(s[13][p] + s[18][p])
	t28 = float64(s[13][p]-s[18][p]) * 2.05778100995
	t29 = float64(s[14][p] + s[17][p])
	t30 = float64(s[14][p]-s[17][p]) * 3.40760841847
	t31 = float64(s[15][p] + s[16][p])
	t32 = float64(s[15][p]-s[16][p]) * 10.1900081235

	t33 = t01 + t31
	t31 = (t01 - t31) * 0.502419286188
	t01 = t03 + t29
	t29 = (t03 - t29) * 0.52249861494
	t03 = t05 + t27
	t27 = (t05 - t27) * 0.566944034816
	t05 = t07 + t25
	t25 = (t07 - t25) * 0.64682178336
	t07 = t09 + t23
	t23 = (t09 - t23) * 0.788154623451
	t09 = t11 + t21
	t21 = (t11 - t21) * 1.06067768599
	t11 = t13 + t19
	t19 = (t13 - t19) * 1.72244709824
	t13 = t15 + t17
	t17 = (t15 - t17) * 5.10114861869
	t15 = t33 + t13
	t13 = (t33 - t13) * 0.509795579104
	t33 = t01 + t11
	t01 = (t01 - t11) * 0.601344886935
	t11 = t03 + t09
	t09 = (t03 - t09) * 0.899976223136
	t03 = t05 + t07
	t07 = (t05 - t07) * 2.56291544774
	t05 = t15 + t03
	t15 = (t15 - t03) * 0.541196100146
	t03 = t33 + t11
	t11 = (t33 - t11) * 1.30656296488
	t33 = t05 + t03
	t05 = (t05 - t03) * 0.707106781187
	t03 = t15 + t11
	t15 = (t15 - t11) * 0.707106781187
	t03 += t15
	t11 = t13 + t07
	t13 = (t13 - t07) * 0.541196100146
	t07 = t01 + t09
	t09 = (t01 - t09) * 1.30656296488
	t01 = t11 + t07
	t07 = (t11 - t07) * 0.707106781187
	t11 = t13 + t09
	t13 = (t13 - t09) * 0.707106781187
	t11 += t13
	t01 += t11
	t11 += t07
	t07 += t13
	t09 = t31 + t17
	t31 = (t31 - t17) * 0.509795579104
	t17 = t29 + t19
	t29 = (t29 - t19) * 0.601344886935
	t19 = t27 + t21
	t21 = (t27 - t21) * 0.899976223136
	t27 = t25 + t23
	t23 = (t25 - t23) * 2.56291544774
	t25 = t09 + t27
	t09 = (t09 - t27) * 0.541196100146
	t27 = t17 + t19
	t19 = (t17 - t19) * 1.30656296488
	t17 = t25 + t27
	t27 = (t25 - t27) * 0.707106781187
	t25 = t09 + t19
	t19 = (t09 - t19) * 0.707106781187
	t25 += t19
	t09 = t31 + t23
	t31 = (t31 - t23) * 0.541196100146
	t23 = t29 + t21
	t21 = (t29 - t21) * 1.30656296488
	t29 = t09 + t23
	t23 = (t09 - t23) * 0.707106781187
	t09 = t31 + t21
	t31 = (t31 - t21) * 0.707106781187
	t09 += t31
	t29 += t09
	t09 += t23
	t23 += t31
	t17 += t29
	t29 += t25
	t25 += t09
	t09 += t27
	t27 += t23
	t23 += t19
	t19 += t31
	t21 = t02 + t32
	t02 = (t02 - t32) * 0.502419286188
	t32 = t04 + t30
	t04 = (t04 - t30) * 0.52249861494
	t30 = t06 + t28
	t28 = (t06 - t28) * 0.566944034816
	t06 = t08 + t26
	t08 = (t08 - t26) * 0.64682178336
	t26 = t10 + t24
	t10 = (t10 - t24) * 0.788154623451
	t24 = t12 + t22
	t22 = (t12 - t22) * 1.06067768599
	t12 = t14 + t20
	t20 = (t14 - t20) * 1.72244709824
	t14 = t16 + t18
	t16 = (t16 - t18) * 5.10114861869
	t18 = t21 + t14
	t14 = (t21 - t14) * 0.509795579104
	t21 = t32 + t12
	t32 = (t32 - t12) * 0.601344886935
	t12 = t30 + t24
	t24 = (t30 - t24) * 0.899976223136
	t30 = t06 + t26
	t26 = (t06 - t26) * 2.56291544774
	t06 = t18 + t30
	t18 = (t18 - t30) * 0.541196100146
	t30 = t21 + t12
	t12 = (t21 - t12) * 1.30656296488
	t21 = t06 + t30
	t30 = (t06 - t30) * 0.707106781187
	t06 = t18 + t12
	t12 = (t18 - t12) * 0.707106781187
	t06 += t12
	t18 = t14 + t26
	t26 = (t14 - t26) * 0.541196100146
	t14 = t32 + t24
	t24 = (t32 - t24) * 1.30656296488
	t32 = t18 + t14
	t14 = (t18 - t14) * 0.707106781187
	t18 = t26 + t24
	t24 = (t26 - t24) * 0.707106781187
	t18 += t24
	t32 += t18
	t18 += t14
	t26 = t14 + t24
	t14 = t02 + t16
	t02 = (t02 - t16) * 0.509795579104
	t16 = t04 + t20
	t04 = (t04 - t20) * 0.601344886935
	t20 = t28 + t22
	t22 = (t28 - t22) * 0.899976223136
	t28 = t08 + t10
	t10 = (t08 - t10) * 2.56291544774
	t08 = t14 + t28
	t14 = (t14 - t28) * 0.541196100146
	t28 = t16 + t20
	t20 = (t16 - t20) * 1.30656296488
	t16 = t08 + t28
	t28 = (t08 - t28) * 0.707106781187
	t08 = t14 + t20
	t20 = (t14 - t20) * 0.707106781187
	t08 += t20
	t14 = t02 + t10
	t02 = (t02 - t10) * 0.541196100146
	t10 = t04 + t22
	t04 = (t04 - t22) * 1.30656296488
	t22 = t14 + t10
	t10 = (t14 - t10) * 0.707106781187
	t14 = t02 + t04
	t04 = (t02 - t04) * 0.707106781187
	t14 += t04
	t22 += t14
	t14 += t10
	t10 += t04
	t16 += t22
	t22 += t08
	t08 += t14
	t14 += t28
	t28 += t10
	t10 += t20
	t20 += t04
	t21 += t16
	t16 += t32
	t32 += t22
	t22 += t06
	t06 += t08
	t08 += t18
	t18 += t14
	t14 += t30
	t30 += t28
	t28 += t26
	t26 += t10
	t10 += t12
	t12 += t20
	t20 += t24
	t24 += t04

	v[48] = float32(-t33)
	v[49] = float32(-t21)
	v[47] = float32(-t21)
	v[50] = float32(-t17)
	v[46] = float32(-t17)
	v[51] = float32(-t16)
	v[45] = float32(-t16)
	v[52] = float32(-t01)
	v[44] = float32(-t01)
	v[53] = float32(-t32)
	v[43] = float32(-t32)
	v[54] = float32(-t29)
	v[42] = float32(-t29)
	v[55] = float32(-t22)
	v[41] = float32(-t22)
	v[56] = float32(-t03)
	v[40] = float32(-t03)
	v[57] = float32(-t06)
	v[39] = float32(-t06)
	v[58] = float32(-t25)
	v[38] = float32(-t25)
	v[59] = float32(-t08)
	v[37] = float32(-t08)
	v[60] = float32(-t11)
	v[36] = float32(-t11)
	v[61] = float32(-t18)
	v[35] = float32(-t18)
	v[62] = float32(-t09)
	v[34] = float32(-t09)
	v[63] = float32(-t14)
	v[33] = float32(-t14)
	v[32] = float32(-t05)
	v[0] = float32(t05)
	v[31] = float32(-t30)
	v[1] = float32(t30)
	v[30] = float32(-t27)
	v[2] = float32(t27)
	v[29] = float32(-t28)
	v[3] = float32(t28)
	v[28] = float32(-t07)
	v[4] = float32(t07)
	v[27] = float32(-t26)
	v[5] = float32(t26)
	v[26] = float32(-t23)
	v[6] = float32(t23)
	v[25] = float32(-t10)
	v[7] = float32(t10)
	v[24] = float32(-t15)
	v[8] = float32(t15)
	v[23] = float32(-t12)
	v[9] = float32(t12)
	v[22] = float32(-t19)
	v[10] = float32(t19)
	v[21] = float32(-t20)
	v[11] = float32(t20)
	v[20] = float32(-t13)
	v[12] = float32(t13)
	v[19] = float32(-t24)
	v[13] = float32(t24)
	v[18] = float32(-t31)
	v[14] = float32(t31)
	v[17] = float32(-t04)
	v[15] = float32(t04)
	v[16] = 0
}

// synthesize runs one step of the synthesis filterbank for channel ch and
// writes 32 output samples to out.
func (d *Decoder) synthesize(ch, p int, out []float32) {
	v := &d.v[ch]
	matrixTransform(&d.sample[ch], p, v[d.vPos:d.vPos+64])

	d.u = [32]int32{}
	dIndex := 512 - d.vPos>>1
	vIndex := (d.vPos % 128) >> 1
	dIndex, vIndex = d.accumulate(v, dIndex, vIndex)

	vIndex = (128 - 32 + 1024) - vIndex
	dIndex -= 512 - 32
	d.accumulate(v, dIndex, vIndex)

	for j, u := range d.u {
		out[j] = float32(float64(u) / 2147418112)
	}
}

// accumulate adds windowed V into U in runs of 32, stepping through V
// by 128 and the window by 64, until V is exhausted.
func (d *Decoder) accumulate(v *[1024]float32, dIndex, vIndex int) (int, int) {
	for vIndex < 1024 {
		for i := range 32 {
			d.u[i] = int32(float64(d.u[i]) + float64(d.window[dIndex])*float64(v[vIndex]))
			dIndex++
			vIndex++
		}
		vIndex += 128 - 32
		dIndex += 64 - 32
	}
	return dIndex, vIndex
}
