package crypto

import (
	"crypto/elliptic"
	"errors"
	"math/big"
	"sync"
)

// Pure-Go secp256k1 (SEC 2, section 2.4.1): the short Weierstrass curve
// y^2 = x^3 + 7 over the prime field p = 2^256 - 2^32 - 977. Affine
// big.Int arithmetic is plenty for signature recovery; nothing here is
// constant-time, which is fine for verifying public data.

var (
	errInvalidSignature  = errors.New("invalid signature")
	errInvalidRecoveryID = errors.New("invalid recovery ID")
)

// secp256k1Curve implements elliptic.Curve.
type secp256k1Curve struct {
	p, n, b *big.Int
	gx, gy  *big.Int
	params  *elliptic.CurveParams
}

var (
	initonce          sync.Once
	secp256k1Instance *secp256k1Curve
)

func initSecp256k1() {
	p, _ := new(big.Int).SetString("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2f", 16)
	n, _ := new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
	gx, _ := new(big.Int).SetString("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798", 16)
	gy, _ := new(big.Int).SetString("483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8", 16)

	secp256k1Instance = &secp256k1Curve{
		p:  p,
		n:  n,
		b:  big.NewInt(7),
		gx: gx,
		gy: gy,
		params: &elliptic.CurveParams{
			P:       p,
			N:       n,
			B:       big.NewInt(7),
			Gx:      gx,
			Gy:      gy,
			BitSize: 256,
			Name:    "secp256k1",
		},
	}
}

// S256 returns the shared secp256k1 curve instance.
func S256() elliptic.Curve {
	initonce.Do(initSecp256k1)
	return secp256k1Instance
}

func (c *secp256k1Curve) Params() *elliptic.CurveParams {
	return c.params
}

// IsOnCurve reports whether (x, y) satisfies y^2 = x^3 + 7 (mod p).
// The zero point and coordinates outside [0, p) are rejected.
func (c *secp256k1Curve) IsOnCurve(x, y *big.Int) bool {
	if x == nil || y == nil {
		return false
	}
	if x.Sign() < 0 || y.Sign() < 0 || x.Cmp(c.p) >= 0 || y.Cmp(c.p) >= 0 {
		return false
	}
	lhs := new(big.Int).Mul(y, y)
	lhs.Mod(lhs, c.p)
	rhs := c.rhs(x)
	return lhs.Cmp(rhs) == 0
}

// rhs evaluates x^3 + 7 mod p.
func (c *secp256k1Curve) rhs(x *big.Int) *big.Int {
	r := new(big.Int).Mul(x, x)
	r.Mod(r, c.p)
	r.Mul(r, x)
	r.Mod(r, c.p)
	r.Add(r, c.b)
	return r.Mod(r, c.p)
}

// Add returns (x1,y1) + (x2,y2). The point at infinity is represented as
// (0, 0), matching the elliptic.Curve convention.
func (c *secp256k1Curve) Add(x1, y1, x2, y2 *big.Int) (*big.Int, *big.Int) {
	if x1.Sign() == 0 && y1.Sign() == 0 {
		return new(big.Int).Set(x2), new(big.Int).Set(y2)
	}
	if x2.Sign() == 0 && y2.Sign() == 0 {
		return new(big.Int).Set(x1), new(big.Int).Set(y1)
	}

	if x1.Cmp(x2) == 0 {
		if y1.Cmp(y2) == 0 {
			return c.Double(x1, y1)
		}
		// Mirror points: P + (-P) = infinity.
		return new(big.Int), new(big.Int)
	}

	// chord slope = (y2 - y1) / (x2 - x1) mod p
	dy := new(big.Int).Sub(y2, y1)
	dy.Mod(dy, c.p)
	dx := new(big.Int).Sub(x2, x1)
	dx.Mod(dx, c.p)
	dxInv := new(big.Int).ModInverse(dx, c.p)
	if dxInv == nil {
		return new(big.Int), new(big.Int)
	}
	slope := dy.Mul(dy, dxInv)
	slope.Mod(slope, c.p)

	return c.applySlope(slope, x1, y1, x2)
}

// Double returns 2*(x1,y1).
func (c *secp256k1Curve) Double(x1, y1 *big.Int) (*big.Int, *big.Int) {
	if y1.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}

	// tangent slope = 3*x1^2 / (2*y1) mod p  (the curve's a term is zero)
	num := new(big.Int).Mul(x1, x1)
	num.Mod(num, c.p)
	num.Mul(num, big.NewInt(3))
	num.Mod(num, c.p)

	den := new(big.Int).Lsh(y1, 1)
	den.Mod(den, c.p)
	denInv := new(big.Int).ModInverse(den, c.p)
	if denInv == nil {
		return new(big.Int), new(big.Int)
	}
	slope := num.Mul(num, denInv)
	slope.Mod(slope, c.p)

	return c.applySlope(slope, x1, y1, x1)
}

// applySlope completes a chord/tangent step: given the slope through
// (x1,y1) and the second intersection abscissa x2, it returns the third
// intersection reflected over the x axis.
func (c *secp256k1Curve) applySlope(slope, x1, y1, x2 *big.Int) (*big.Int, *big.Int) {
	x3 := new(big.Int).Mul(slope, slope)
	x3.Sub(x3, x1)
	x3.Sub(x3, x2)
	x3.Mod(x3, c.p)

	y3 := new(big.Int).Sub(x1, x3)
	y3.Mul(y3, slope)
	y3.Sub(y3, y1)
	y3.Mod(y3, c.p)

	return x3, y3
}

// ScalarMult returns k*(bx,by) by left-to-right double-and-add, with k
// reduced modulo the group order first.
func (c *secp256k1Curve) ScalarMult(bx, by *big.Int, k []byte) (*big.Int, *big.Int) {
	scalar := new(big.Int).SetBytes(k)
	scalar.Mod(scalar, c.n)
	if scalar.Sign() == 0 {
		return new(big.Int), new(big.Int)
	}

	rx, ry := new(big.Int), new(big.Int)
	px, py := new(big.Int).Set(bx), new(big.Int).Set(by)

	for i := scalar.BitLen() - 1; i >= 0; i-- {
		rx, ry = c.Double(rx, ry)
		if scalar.Bit(i) == 1 {
			rx, ry = c.Add(rx, ry, px, py)
		}
	}
	return rx, ry
}

// ScalarBaseMult returns k*G.
func (c *secp256k1Curve) ScalarBaseMult(k []byte) (*big.Int, *big.Int) {
	return c.ScalarMult(c.gx, c.gy, k)
}

// recoverPublicKey reconstructs the signing key from (hash, r, s) and the
// recovery id v (0 or 1): lift R from x = r using v as the y parity, then
// Q = r^-1 * (s*R - e*G).
func recoverPublicKey(hash []byte, r, s *big.Int, v byte) (*big.Int, *big.Int, error) {
	curve := S256().(*secp256k1Curve)

	// x = r. The r + N lift (v >= 2) is not supported; no mainnet
	// signature has ever needed it.
	x := new(big.Int).Set(r)
	if x.Cmp(curve.p) >= 0 {
		return nil, nil, errInvalidRecoveryID
	}

	y := computeY(x, curve.p)
	if y == nil {
		return nil, nil, errInvalidSignature
	}
	if y.Bit(0) != uint(v&1) {
		y.Sub(curve.p, y)
	}
	if !curve.IsOnCurve(x, y) {
		return nil, nil, errInvalidSignature
	}

	rInv := new(big.Int).ModInverse(r, curve.n)
	if rInv == nil {
		return nil, nil, errInvalidSignature
	}
	e := new(big.Int).SetBytes(hash)

	sRx, sRy := curve.ScalarMult(x, y, s.Bytes())
	eGx, eGy := curve.ScalarBaseMult(e.Bytes())
	negEGy := new(big.Int).Sub(curve.p, eGy)

	diffX, diffY := curve.Add(sRx, sRy, eGx, negEGy)
	qx, qy := curve.ScalarMult(diffX, diffY, rInv.Bytes())

	if qx.Sign() == 0 && qy.Sign() == 0 {
		return nil, nil, errInvalidSignature
	}
	return qx, qy, nil
}

// computeY lifts x to the curve: y = (x^3 + 7)^((p+1)/4) mod p, valid
// because p = 3 (mod 4). Returns nil when x^3 + 7 is a non-residue.
func computeY(x, p *big.Int) *big.Int {
	curve := S256().(*secp256k1Curve)
	rhs := curve.rhs(x)

	exp := new(big.Int).Add(p, big.NewInt(1))
	exp.Rsh(exp, 2)
	y := new(big.Int).Exp(rhs, exp, p)

	check := new(big.Int).Mul(y, y)
	check.Mod(check, p)
	if check.Cmp(rhs) != 0 {
		return nil
	}
	return y
}
