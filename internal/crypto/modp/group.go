package modp

import (
	"crypto/sha256"
	"errors"
	"math/big"
	"sync"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/group/nist"
	"go.dedis.ch/kyber/v4/util/random"
)

// RFC 3526, section 2.
const primeHex = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD1" +
	"29024E088A67CC74020BBEA63B139B22514A08798E3404DD" +
	"EF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245" +
	"E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3D" +
	"C2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F" +
	"83655D23DCA3AD961C62F356208552BB9ED529077096966D" +
	"670C354E4ABC9804F1746C08CA237327FFFFFFFFFFFFFFFF"

const (
	// ElementSize is the encoded width of a group element in bytes.
	ElementSize = 192
	// ExponentSize is the encoded width of an exponent in bytes.
	ExponentSize = 192
)

var (
	// ErrInvalidElement is returned when bytes do not encode a member of the
	// order-q subgroup.
	ErrInvalidElement = errors.New("modp: invalid group element")
	// ErrInvalidExponent is returned when bytes do not encode an exponent mod q.
	ErrInvalidExponent = errors.New("modp: invalid exponent")
)

// Element is a member of the order-q subgroup.
type Element = kyber.Point

// Exponent is an integer mod q.
type Exponent = kyber.Scalar

// Group is the fixed DH group. The zero value is not usable; call Default.
type Group struct {
	g *nist.ResidueGroup
	p *big.Int
	q *big.Int
}

var (
	defaultOnce  sync.Once
	defaultGroup *Group
)

// Default returns the shared 1536-bit group. Parameter validation runs once
// per process.
func Default() *Group {
	defaultOnce.Do(func() {
		p, _ := new(big.Int).SetString(primeHex, 16)
		q := new(big.Int).Rsh(p, 1)
		rg := new(nist.ResidueGroup)
		rg.SetParams(p, q, big.NewInt(2), big.NewInt(2))
		defaultGroup = &Group{g: rg, p: p, q: q}
	})
	return defaultGroup
}

// Modulus returns a copy of p.
func (gr *Group) Modulus() *big.Int { return new(big.Int).Set(gr.p) }

// Order returns a copy of q.
func (gr *Group) Order() *big.Int { return new(big.Int).Set(gr.q) }

// RandomExponent draws a uniform exponent in [0, q) from crypto/rand.
func (gr *Group) RandomExponent() Exponent {
	return gr.g.Scalar().Pick(random.New())
}

// Base returns g^x.
func (gr *Group) Base(x Exponent) Element {
	return gr.g.Point().Mul(x, nil)
}

// Exp returns a^x.
func (gr *Group) Exp(a Element, x Exponent) Element {
	return gr.g.Point().Mul(x, a)
}

// Mul returns a*b mod p.
func (gr *Group) Mul(a, b Element) Element {
	return gr.g.Point().Add(a, b)
}

// Div returns a*b^-1 mod p.
func (gr *Group) Div(a, b Element) Element {
	return gr.g.Point().Sub(a, b)
}

// Equal reports whether a and b are the same element.
func (gr *Group) Equal(a, b Element) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}

// EncodeElement returns the fixed-width encoding of a.
func (gr *Group) EncodeElement(a Element) []byte {
	b, err := a.MarshalBinary()
	if err != nil {
		// Residue points always marshal; a failure means a foreign point.
		panic(err)
	}
	return b
}

// DecodeElement parses b and checks subgroup membership. The identity and
// p-1 are rejected as well.
func (gr *Group) DecodeElement(b []byte) (Element, error) {
	if len(b) != ElementSize {
		return nil, ErrInvalidElement
	}
	v := new(big.Int).SetBytes(b)
	if v.Cmp(big.NewInt(1)) <= 0 || v.Cmp(new(big.Int).Sub(gr.p, big.NewInt(1))) >= 0 {
		return nil, ErrInvalidElement
	}
	e := gr.g.Point()
	if err := e.UnmarshalBinary(b); err != nil {
		return nil, ErrInvalidElement
	}
	return e, nil
}

// EncodeExponent returns the fixed-width encoding of x.
func (gr *Group) EncodeExponent(x Exponent) []byte {
	b, err := x.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

// DecodeExponent parses b as an exponent mod q.
func (gr *Group) DecodeExponent(b []byte) (Exponent, error) {
	if len(b) != ExponentSize {
		return nil, ErrInvalidExponent
	}
	if new(big.Int).SetBytes(b).Cmp(gr.q) >= 0 {
		return nil, ErrInvalidExponent
	}
	x := gr.g.Scalar()
	if err := x.UnmarshalBinary(b); err != nil {
		return nil, ErrInvalidExponent
	}
	return x, nil
}

// ExponentFromHash reduces a digest mod q.
func (gr *Group) ExponentFromHash(digest []byte) Exponent {
	return gr.g.Scalar().SetBytes(digest)
}

// HashToExponent hashes a version byte followed by the encodings of elems and
// reduces the digest mod q. It is the challenge function of every
// zero-knowledge proof in the SMP.
func (gr *Group) HashToExponent(version byte, elems ...Element) Exponent {
	h := sha256.New()
	h.Write([]byte{version})
	for _, e := range elems {
		h.Write(gr.EncodeElement(e))
	}
	return gr.ExponentFromHash(h.Sum(nil))
}

// Scalar arithmetic mod q.

// Add returns a+b mod q.
func (gr *Group) Add(a, b Exponent) Exponent { return gr.g.Scalar().Add(a, b) }

// Sub returns a-b mod q.
func (gr *Group) Sub(a, b Exponent) Exponent { return gr.g.Scalar().Sub(a, b) }

// Times returns a*b mod q.
func (gr *Group) Times(a, b Exponent) Exponent { return gr.g.Scalar().Mul(a, b) }

// ExponentsEqual reports whether two exponents are equal.
func (gr *Group) ExponentsEqual(a, b Exponent) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Equal(b)
}

// Wipe overwrites x with zero. Kyber scalars are backed by big.Int so this is
// best effort.
func (gr *Group) Wipe(x Exponent) {
	if x != nil {
		x.Zero()
	}
}
