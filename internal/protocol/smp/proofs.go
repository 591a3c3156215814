package smp

import (
	"crypto/sha256"

	"offrecord/internal/crypto/modp"
)

// Hash versions separate the challenge of every proof in a run.
const (
	versionG2a byte = iota + 1
	versionG3a
	versionG2b
	versionG3b
	versionPbQb
	versionPaQa
	versionRa
	versionRb
)

// secretVersion prefixes the hashed secret.
const secretVersion byte = 1

// hashSecret binds the user secret to both parties and the session.
func hashSecret(gr *modp.Group, initiatorFP, responderFP, ssid, secret []byte) modp.Exponent {
	h := sha256.New()
	h.Write([]byte{secretVersion})
	h.Write(initiatorFP)
	h.Write(responderFP)
	h.Write(ssid)
	h.Write(secret)
	return gr.ExponentFromHash(h.Sum(nil))
}

// proveLog is a Schnorr proof of knowledge of x for g^x.
func proveLog(gr *modp.Group, version byte, x modp.Exponent) (c, d modp.Exponent) {
	r := gr.RandomExponent()
	c = gr.HashToExponent(version, gr.Base(r))
	d = gr.Sub(r, gr.Times(x, c))
	gr.Wipe(r)
	return c, d
}

func verifyLog(gr *modp.Group, version byte, pub modp.Element, c, d modp.Exponent) bool {
	t := gr.Mul(gr.Base(d), gr.Exp(pub, c))
	return gr.ExponentsEqual(c, gr.HashToExponent(version, t))
}

// proveCoords shows that P = g3^r and Q = g^r * g2^s share r, without
// revealing r or s.
func proveCoords(gr *modp.Group, version byte, g2, g3 modp.Element, r, s modp.Exponent) (c, d5, d6 modp.Exponent) {
	r5 := gr.RandomExponent()
	r6 := gr.RandomExponent()
	c = gr.HashToExponent(version,
		gr.Exp(g3, r5),
		gr.Mul(gr.Base(r5), gr.Exp(g2, r6)))
	d5 = gr.Sub(r5, gr.Times(r, c))
	d6 = gr.Sub(r6, gr.Times(s, c))
	gr.Wipe(r5)
	gr.Wipe(r6)
	return c, d5, d6
}

func verifyCoords(gr *modp.Group, version byte, g2, g3, p, q modp.Element, c, d5, d6 modp.Exponent) bool {
	t1 := gr.Mul(gr.Exp(g3, d5), gr.Exp(p, c))
	t2 := gr.Mul(gr.Mul(gr.Base(d5), gr.Exp(g2, d6)), gr.Exp(q, c))
	return gr.ExponentsEqual(c, gr.HashToExponent(version, t1, t2))
}

// proveEqualLogs shows that log_g(g^x) == log_qab(R) for R = qab^x.
func proveEqualLogs(gr *modp.Group, version byte, qab modp.Element, x modp.Exponent) (c, d modp.Exponent) {
	r := gr.RandomExponent()
	c = gr.HashToExponent(version, gr.Base(r), gr.Exp(qab, r))
	d = gr.Sub(r, gr.Times(x, c))
	gr.Wipe(r)
	return c, d
}

func verifyEqualLogs(gr *modp.Group, version byte, pub, qab, rv modp.Element, c, d modp.Exponent) bool {
	t1 := gr.Mul(gr.Base(d), gr.Exp(pub, c))
	t2 := gr.Mul(gr.Exp(qab, d), gr.Exp(rv, c))
	return gr.ExponentsEqual(c, gr.HashToExponent(version, t1, t2))
}

// decoder parses wire fields and keeps the first failure.
type decoder struct {
	gr  *modp.Group
	err error
}

func (d *decoder) elem(b []byte) modp.Element {
	if d.err != nil {
		return nil
	}
	e, err := d.gr.DecodeElement(b)
	if err != nil {
		d.err = err
	}
	return e
}

func (d *decoder) exp(b []byte) modp.Exponent {
	if d.err != nil {
		return nil
	}
	x, err := d.gr.DecodeExponent(b)
	if err != nil {
		d.err = err
	}
	return x
}
