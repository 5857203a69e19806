package vm

import (
	"errors"
	"math/big"

	"github.com/wyfeng/evmcore/crypto"
)

// EIP-2537 BLS12-381 precompiles (0x0b - 0x11). Each Run validates the
// wire format here (lengths, field ranges, infinity shortcuts) and hands
// the curve arithmetic to the crypto package's EIP-2537 entry points.

var (
	ErrBLS12InvalidInput  = errors.New("bls12-381: invalid input length")
	ErrBLS12InvalidPoint  = errors.New("bls12-381: invalid point encoding")
	ErrBLS12NotOnCurve    = errors.New("bls12-381: point not on curve")
	ErrBLS12NotInSubgroup = errors.New("bls12-381: point not in correct subgroup")
)

// BLS12-381 field constants.
var (
	// Base field modulus p.
	bls12Modulus, _ = new(big.Int).SetString(
		"1a0111ea397fe69a4b1ba7b6434bacd764774b84f38512bf6730d2a0f6b0f6241eabfffeb153ffffb9feffffffffaaab", 16)
	// Subgroup order r.
	bls12Order, _ = new(big.Int).SetString(
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)
)

// Gas schedule per EIP-2537.
const (
	bls12G1AddGas          = 500
	bls12G1MulGas          = 12000
	bls12G2AddGas          = 800
	bls12G2MulGas          = 45000
	bls12PairingBaseGas    = 65000
	bls12PairingPerPairGas = 43000
	bls12MapG1Gas          = 5500
	bls12MapG2Gas          = 75000
	bls12G1MSMBaseGas      = 12000
	bls12G2MSMBaseGas      = 45000
)

// Encoded sizes: field elements are left-padded to 64 bytes, so G1 is two
// and G2 four of them.
const (
	bls12G1PointSize = 128
	bls12G2PointSize = 256
	bls12ScalarSize  = 32
	bls12FpSize      = 64
	bls12Fp2Size     = 128
)

// checkFieldElements rejects any 64-byte coordinate in data[:n*64] that is
// not a canonical field element.
func checkFieldElements(data []byte, n int) error {
	for i := 0; i < n; i++ {
		coord := new(big.Int).SetBytes(data[i*bls12FpSize : (i+1)*bls12FpSize])
		if coord.Cmp(bls12Modulus) >= 0 {
			return ErrBLS12InvalidPoint
		}
	}
	return nil
}

// --- bls12G1Add (0x0b) ---

type bls12G1Add struct{}

func (c *bls12G1Add) RequiredGas(input []byte) uint64 {
	return bls12G1AddGas
}

func (c *bls12G1Add) Run(input []byte) ([]byte, error) {
	if len(input) != 2*bls12G1PointSize {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 4); err != nil {
		return nil, err
	}

	// Infinity shortcuts.
	p1Zero := isZeroBytes(input[:bls12G1PointSize])
	p2Zero := isZeroBytes(input[bls12G1PointSize:])
	switch {
	case p1Zero && p2Zero:
		return make([]byte, bls12G1PointSize), nil
	case p1Zero:
		return append([]byte(nil), input[bls12G1PointSize:]...), nil
	case p2Zero:
		return append([]byte(nil), input[:bls12G1PointSize]...), nil
	}

	return crypto.BLS12G1Add(input)
}

// --- bls12G1Mul (not registered on its own; kept for the MSM base case) ---

type bls12G1Mul struct{}

func (c *bls12G1Mul) RequiredGas(input []byte) uint64 {
	return bls12G1MulGas
}

func (c *bls12G1Mul) Run(input []byte) ([]byte, error) {
	if len(input) != bls12G1PointSize+bls12ScalarSize {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 2); err != nil {
		return nil, err
	}

	scalar := new(big.Int).SetBytes(input[bls12G1PointSize:])
	if scalar.Sign() == 0 || isZeroBytes(input[:bls12G1PointSize]) {
		return make([]byte, bls12G1PointSize), nil
	}

	return crypto.BLS12G1Mul(input)
}

// --- bls12G1MSM (0x0c) ---

type bls12G1MSM struct{}

func (c *bls12G1MSM) RequiredGas(input []byte) uint64 {
	pairSize := bls12G1PointSize + bls12ScalarSize
	k := uint64(len(input)) / uint64(pairSize)
	if k == 0 {
		return 0
	}
	return (bls12G1MSMBaseGas * k * msmDiscount(k)) / 1000
}

func (c *bls12G1MSM) Run(input []byte) ([]byte, error) {
	pairSize := bls12G1PointSize + bls12ScalarSize
	if len(input) == 0 || len(input)%pairSize != 0 {
		return nil, ErrBLS12InvalidInput
	}

	k := len(input) / pairSize
	for i := 0; i < k; i++ {
		if err := checkFieldElements(input[i*pairSize:], 2); err != nil {
			return nil, err
		}
	}

	return crypto.BLS12G1MSM(input)
}

// --- bls12G2Add (0x0d) ---

type bls12G2Add struct{}

func (c *bls12G2Add) RequiredGas(input []byte) uint64 {
	return bls12G2AddGas
}

func (c *bls12G2Add) Run(input []byte) ([]byte, error) {
	if len(input) != 2*bls12G2PointSize {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 8); err != nil {
		return nil, err
	}

	p1Zero := isZeroBytes(input[:bls12G2PointSize])
	p2Zero := isZeroBytes(input[bls12G2PointSize:])
	switch {
	case p1Zero && p2Zero:
		return make([]byte, bls12G2PointSize), nil
	case p1Zero:
		return append([]byte(nil), input[bls12G2PointSize:]...), nil
	case p2Zero:
		return append([]byte(nil), input[:bls12G2PointSize]...), nil
	}

	return crypto.BLS12G2Add(input)
}

// --- bls12G2Mul (kept for the MSM base case) ---

type bls12G2Mul struct{}

func (c *bls12G2Mul) RequiredGas(input []byte) uint64 {
	return bls12G2MulGas
}

func (c *bls12G2Mul) Run(input []byte) ([]byte, error) {
	if len(input) != bls12G2PointSize+bls12ScalarSize {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 4); err != nil {
		return nil, err
	}

	scalar := new(big.Int).SetBytes(input[bls12G2PointSize:])
	if scalar.Sign() == 0 || isZeroBytes(input[:bls12G2PointSize]) {
		return make([]byte, bls12G2PointSize), nil
	}

	return crypto.BLS12G2Mul(input)
}

// --- bls12G2MSM (0x0e) ---

type bls12G2MSM struct{}

func (c *bls12G2MSM) RequiredGas(input []byte) uint64 {
	pairSize := bls12G2PointSize + bls12ScalarSize
	k := uint64(len(input)) / uint64(pairSize)
	if k == 0 {
		return 0
	}
	return (bls12G2MSMBaseGas * k * msmDiscount(k)) / 1000
}

func (c *bls12G2MSM) Run(input []byte) ([]byte, error) {
	pairSize := bls12G2PointSize + bls12ScalarSize
	if len(input) == 0 || len(input)%pairSize != 0 {
		return nil, ErrBLS12InvalidInput
	}

	k := len(input) / pairSize
	for i := 0; i < k; i++ {
		if err := checkFieldElements(input[i*pairSize:], 4); err != nil {
			return nil, err
		}
	}

	return crypto.BLS12G2MSM(input)
}

// --- bls12Pairing (0x0f) ---

type bls12Pairing struct{}

func (c *bls12Pairing) RequiredGas(input []byte) uint64 {
	pairSize := bls12G1PointSize + bls12G2PointSize
	k := uint64(len(input)) / uint64(pairSize)
	return bls12PairingBaseGas + bls12PairingPerPairGas*k
}

func (c *bls12Pairing) Run(input []byte) ([]byte, error) {
	pairSize := bls12G1PointSize + bls12G2PointSize
	if len(input) == 0 || len(input)%pairSize != 0 {
		return nil, ErrBLS12InvalidInput
	}

	k := len(input) / pairSize
	allZero := true
	for i := 0; i < k; i++ {
		chunk := input[i*pairSize : (i+1)*pairSize]
		if err := checkFieldElements(chunk, 2); err != nil {
			return nil, err
		}
		if err := checkFieldElements(chunk[bls12G1PointSize:], 4); err != nil {
			return nil, err
		}
		if !isZeroBytes(chunk) {
			allZero = false
		}
	}

	// Every pair degenerate: the empty product is the identity.
	if allZero {
		out := make([]byte, 32)
		out[31] = 1
		return out, nil
	}

	return crypto.BLS12Pairing(input)
}

// --- bls12MapFpToG1 (0x10) ---

type bls12MapFpToG1 struct{}

func (c *bls12MapFpToG1) RequiredGas(input []byte) uint64 {
	return bls12MapG1Gas
}

func (c *bls12MapFpToG1) Run(input []byte) ([]byte, error) {
	if len(input) != bls12FpSize {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 1); err != nil {
		return nil, err
	}
	return crypto.BLS12MapFpToG1(input)
}

// --- bls12MapFp2ToG2 (0x11) ---

type bls12MapFp2ToG2 struct{}

func (c *bls12MapFp2ToG2) RequiredGas(input []byte) uint64 {
	return bls12MapG2Gas
}

func (c *bls12MapFp2ToG2) Run(input []byte) ([]byte, error) {
	if len(input) != bls12Fp2Size {
		return nil, ErrBLS12InvalidInput
	}
	if err := checkFieldElements(input, 2); err != nil {
		return nil, err
	}
	return crypto.BLS12MapFp2ToG2(input)
}

// --- helpers ---

// isZeroBytes reports whether every byte is zero.
func isZeroBytes(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// msmDiscount returns the per-mille Pippenger discount for k pairs from
// the EIP-2537 table, floored at 2 past the table's end.
func msmDiscount(k uint64) uint64 {
	if k == 0 {
		return 0
	}
	discountTable := []uint64{
		0, 1200, 888, 764, 641, 594, 547, 500, 453, 438,
		423, 408, 394, 379, 364, 349, 334, 330, 326, 322,
		318, 314, 310, 306, 302, 298, 294, 289, 285, 281,
		277, 273, 269, 265, 261, 257, 253, 249, 245, 241,
		237, 234, 230, 226, 222, 218, 214, 210, 206, 202,
		199, 195, 191, 187, 183, 179, 176, 172, 168, 164,
		160, 157, 153, 149, 145, 141, 138, 134, 130, 126,
		123, 119, 115, 111, 107, 104, 100, 96, 92, 89,
		85, 81, 77, 73, 70, 66, 62, 58, 55, 51,
		47, 43, 39, 36, 32, 28, 24, 21, 17, 13,
		9, 6, 2, 2, 2, 2, 2, 2, 2, 2,
		2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
		2, 2, 2, 2, 2, 2, 2, 2, 2, 2,
	}
	if k >= uint64(len(discountTable)) {
		return 2
	}
	return discountTable[k]
}
