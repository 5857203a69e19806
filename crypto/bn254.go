package crypto

// BN254 (alt_bn128) precompile entry points. These speak the EIP-196 and
// EIP-197 wire formats: fixed 32-byte big-endian coordinates, G2 field
// elements with the imaginary part first, right-zero-padded short inputs
// for add/mul, and strict 192-byte multiples for the pairing.

import (
	"errors"
	"math/big"
)

var (
	errBN254InvalidPoint  = errors.New("bn254: invalid point")
	errBN254InvalidG2     = errors.New("bn254: invalid G2 point")
	errBN254InvalidLength = errors.New("bn254: invalid input length")
)

// BN254Add is the 0x06 precompile: add two G1 points.
// Input: x1 | y1 | x2 | y2 (128 bytes, padded). Output: x3 | y3.
func BN254Add(input []byte) ([]byte, error) {
	input = bn254PadRight(input, 128)

	x1 := new(big.Int).SetBytes(input[0:32])
	y1 := new(big.Int).SetBytes(input[32:64])
	x2 := new(big.Int).SetBytes(input[64:96])
	y2 := new(big.Int).SetBytes(input[96:128])

	if !g1IsOnCurve(x1, y1) || !g1IsOnCurve(x2, y2) {
		return nil, errBN254InvalidPoint
	}

	sum := g1Add(g1FromAffine(x1, y1), g1FromAffine(x2, y2))
	return bn254EncodeG1(sum.g1ToAffine()), nil
}

// BN254ScalarMul is the 0x07 precompile: multiply a G1 point by a scalar.
// Input: x | y | s (96 bytes, padded). Output: x' | y'.
func BN254ScalarMul(input []byte) ([]byte, error) {
	input = bn254PadRight(input, 96)

	x := new(big.Int).SetBytes(input[0:32])
	y := new(big.Int).SetBytes(input[32:64])
	s := new(big.Int).SetBytes(input[64:96])

	if !g1IsOnCurve(x, y) {
		return nil, errBN254InvalidPoint
	}

	r := G1ScalarMul(g1FromAffine(x, y), s)
	return bn254EncodeG1(r.g1ToAffine()), nil
}

// BN254PairingCheck is the 0x08 precompile: report whether the product of
// pairings over k (G1, G2) pairs is the identity. Each 192-byte chunk is
// G1_x | G1_y | G2_x_im | G2_x_re | G2_y_im | G2_y_re. The empty product
// is the identity, so zero pairs answer true.
func BN254PairingCheck(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, errBN254InvalidLength
	}

	k := len(input) / 192
	if k == 0 {
		return bn254PairingResult(true), nil
	}

	g1Points := make([]*G1Point, k)
	g2Points := make([]*G2Point, k)

	for i := 0; i < k; i++ {
		chunk := input[i*192 : (i+1)*192]

		g1x := new(big.Int).SetBytes(chunk[0:32])
		g1y := new(big.Int).SetBytes(chunk[32:64])
		if !g1IsOnCurve(g1x, g1y) {
			return nil, errBN254InvalidPoint
		}
		g1Points[i] = g1FromAffine(g1x, g1y)

		// G2 coordinates arrive imaginary-first.
		g2xImag := new(big.Int).SetBytes(chunk[64:96])
		g2xReal := new(big.Int).SetBytes(chunk[96:128])
		g2yImag := new(big.Int).SetBytes(chunk[128:160])
		g2yReal := new(big.Int).SetBytes(chunk[160:192])

		if g2xImag.Cmp(bn254P) >= 0 || g2xReal.Cmp(bn254P) >= 0 ||
			g2yImag.Cmp(bn254P) >= 0 || g2yReal.Cmp(bn254P) >= 0 {
			return nil, errBN254InvalidG2
		}

		g2x := &fp2{a0: g2xReal, a1: g2xImag}
		g2y := &fp2{a0: g2yReal, a1: g2yImag}

		if g2x.isZero() && g2y.isZero() {
			g2Points[i] = G2Infinity()
			continue
		}
		if !g2IsOnCurve(g2x, g2y) {
			return nil, errBN254InvalidG2
		}
		g2Points[i] = g2FromAffine(g2x, g2y)
	}

	return bn254PairingResult(bn254CheckPairing(g1Points, g2Points)), nil
}

// bn254CheckPairing runs the multi-Miller loop and final exponentiation.
func bn254CheckPairing(g1Points []*G1Point, g2Points []*G2Point) bool {
	return bn254MultiPairing(g1Points, g2Points)
}

// bn254EncodeG1 writes an affine G1 point as two 32-byte coordinates.
func bn254EncodeG1(x, y *big.Int) []byte {
	out := make([]byte, 64)
	x.FillBytes(out[:32])
	y.FillBytes(out[32:])
	return out
}

// bn254PairingResult is the 32-byte boolean of the pairing precompile.
func bn254PairingResult(ok bool) []byte {
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out
}

// bn254PadRight zero-pads (or truncates) input to exactly n bytes.
func bn254PadRight(data []byte, n int) []byte {
	if len(data) >= n {
		return data[:n]
	}
	padded := make([]byte, n)
	copy(padded, data)
	return padded
}
