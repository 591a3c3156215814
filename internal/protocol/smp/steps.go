package smp

import (
	"fmt"

	"offrecord/internal/crypto/modp"
	"offrecord/internal/protocol/wire"
)

type output interface{ isOutput() }

func fail(err error) Result { return Result{err: err} }

func invalid(err error) Result { return fail(fmt.Errorf("%w: %v", ErrInvalidValue, err)) }

// startComp builds SMP1.
type startComp struct {
	gr                   *modp.Group
	secret               []byte
	ourFP, theirFP, ssid []byte
	question             string
}

type startOut struct {
	x, a2, a3 modp.Exponent
	msg       *wire.SMP1
}

func (c *startComp) Compute() Result {
	gr := c.gr
	x := hashSecret(gr, c.ourFP, c.theirFP, c.ssid, c.secret)
	a2, a3 := gr.RandomExponent(), gr.RandomExponent()
	c2, d2 := proveLog(gr, versionG2a, a2)
	c3, d3 := proveLog(gr, versionG3a, a3)
	return Result{out: &startOut{
		x: x, a2: a2, a3: a3,
		msg: &wire.SMP1{
			Question: c.question,
			G2a:      gr.EncodeElement(gr.Base(a2)),
			C2:       gr.EncodeExponent(c2),
			D2:       gr.EncodeExponent(d2),
			G3a:      gr.EncodeElement(gr.Base(a3)),
			C3:       gr.EncodeExponent(c3),
			D3:       gr.EncodeExponent(d3),
		},
	}}
}

// questionComp checks the proofs in a received SMP1.
type questionComp struct {
	gr  *modp.Group
	msg wire.SMP1
}

type questionOut struct {
	g2a, g3a modp.Element
	question string
}

func (c *questionComp) Compute() Result {
	gr, m := c.gr, c.msg
	d := decoder{gr: gr}
	g2a, c2, d2 := d.elem(m.G2a), d.exp(m.C2), d.exp(m.D2)
	g3a, c3, d3 := d.elem(m.G3a), d.exp(m.C3), d.exp(m.D3)
	if d.err != nil {
		return invalid(d.err)
	}
	if !verifyLog(gr, versionG2a, g2a, c2, d2) || !verifyLog(gr, versionG3a, g3a, c3, d3) {
		return fail(ErrProofFailed)
	}
	return Result{out: &questionOut{g2a: g2a, g3a: g3a, question: m.Question}}
}

// respondComp builds SMP2 from our secret.
type respondComp struct {
	gr                   *modp.Group
	secret               []byte
	ourFP, theirFP, ssid []byte
	g2a, g3a             modp.Element
}

type respondOut struct {
	b3          modp.Exponent
	g2, g3, g3a modp.Element
	pb, qb      modp.Element
	msg         *wire.SMP2
}

func (c *respondComp) Compute() Result {
	gr := c.gr
	// The peer started, so its fingerprint comes first.
	y := hashSecret(gr, c.theirFP, c.ourFP, c.ssid, c.secret)
	b2, b3, r4 := gr.RandomExponent(), gr.RandomExponent(), gr.RandomExponent()
	c2, d2 := proveLog(gr, versionG2b, b2)
	c3, d3 := proveLog(gr, versionG3b, b3)

	g2 := gr.Exp(c.g2a, b2)
	g3 := gr.Exp(c.g3a, b3)
	pb := gr.Exp(g3, r4)
	qb := gr.Mul(gr.Base(r4), gr.Exp(g2, y))
	cp, d5, d6 := proveCoords(gr, versionPbQb, g2, g3, r4, y)

	msg := &wire.SMP2{
		G2b: gr.EncodeElement(gr.Base(b2)),
		C2:  gr.EncodeExponent(c2),
		D2:  gr.EncodeExponent(d2),
		G3b: gr.EncodeElement(gr.Base(b3)),
		C3:  gr.EncodeExponent(c3),
		D3:  gr.EncodeExponent(d3),
		Pb:  gr.EncodeElement(pb),
		Qb:  gr.EncodeElement(qb),
		Cp:  gr.EncodeExponent(cp),
		D5:  gr.EncodeExponent(d5),
		D6:  gr.EncodeExponent(d6),
	}
	gr.Wipe(y)
	gr.Wipe(b2)
	gr.Wipe(r4)
	return Result{out: &respondOut{b3: b3, g2: g2, g3: g3, g3a: c.g3a, pb: pb, qb: qb, msg: msg}}
}

// thirdComp checks SMP2 and builds SMP3.
type thirdComp struct {
	gr        *modp.Group
	msg       wire.SMP2
	x, a2, a3 modp.Exponent
}

type thirdOut struct {
	a3       modp.Exponent
	g3b      modp.Element
	pab, qab modp.Element
	msg      *wire.SMP3
}

func (c *thirdComp) Compute() Result {
	gr, m := c.gr, c.msg
	d := decoder{gr: gr}
	g2b, c2, d2 := d.elem(m.G2b), d.exp(m.C2), d.exp(m.D2)
	g3b, c3, d3 := d.elem(m.G3b), d.exp(m.C3), d.exp(m.D3)
	pb, qb := d.elem(m.Pb), d.elem(m.Qb)
	cp, d5, d6 := d.exp(m.Cp), d.exp(m.D5), d.exp(m.D6)
	if d.err != nil {
		return invalid(d.err)
	}
	if !verifyLog(gr, versionG2b, g2b, c2, d2) || !verifyLog(gr, versionG3b, g3b, c3, d3) {
		return fail(ErrProofFailed)
	}

	g2 := gr.Exp(g2b, c.a2)
	g3 := gr.Exp(g3b, c.a3)
	if !verifyCoords(gr, versionPbQb, g2, g3, pb, qb, cp, d5, d6) {
		return fail(ErrProofFailed)
	}

	r4 := gr.RandomExponent()
	pa := gr.Exp(g3, r4)
	qa := gr.Mul(gr.Base(r4), gr.Exp(g2, c.x))
	cpa, d5a, d6a := proveCoords(gr, versionPaQa, g2, g3, r4, c.x)
	gr.Wipe(r4)

	qab := gr.Div(qa, qb)
	ra := gr.Exp(qab, c.a3)
	cr, d7 := proveEqualLogs(gr, versionRa, qab, c.a3)
	gr.Wipe(c.x)
	gr.Wipe(c.a2)

	return Result{out: &thirdOut{
		a3:  c.a3,
		g3b: g3b,
		pab: gr.Div(pa, pb),
		qab: qab,
		msg: &wire.SMP3{
			Pa: gr.EncodeElement(pa),
			Qa: gr.EncodeElement(qa),
			Cp: gr.EncodeExponent(cpa),
			D5: gr.EncodeExponent(d5a),
			D6: gr.EncodeExponent(d6a),
			Ra: gr.EncodeElement(ra),
			Cr: gr.EncodeExponent(cr),
			D7: gr.EncodeExponent(d7),
		},
	}}
}

// fourthComp checks SMP3, builds SMP4 and decides the responder's outcome.
type fourthComp struct {
	gr          *modp.Group
	msg         wire.SMP3
	b3          modp.Exponent
	g2, g3, g3a modp.Element
	pb, qb      modp.Element
}

type fourthOut struct {
	match bool
	msg   *wire.SMP4
}

func (c *fourthComp) Compute() Result {
	gr, m := c.gr, c.msg
	d := decoder{gr: gr}
	pa, qa := d.elem(m.Pa), d.elem(m.Qa)
	cp, d5, d6 := d.exp(m.Cp), d.exp(m.D5), d.exp(m.D6)
	ra, cr, d7 := d.elem(m.Ra), d.exp(m.Cr), d.exp(m.D7)
	if d.err != nil {
		return invalid(d.err)
	}
	if !verifyCoords(gr, versionPaQa, c.g2, c.g3, pa, qa, cp, d5, d6) {
		return fail(ErrProofFailed)
	}
	qab := gr.Div(qa, c.qb)
	if !verifyEqualLogs(gr, versionRa, c.g3a, qab, ra, cr, d7) {
		return fail(ErrProofFailed)
	}

	rb := gr.Exp(qab, c.b3)
	crb, d7b := proveEqualLogs(gr, versionRb, qab, c.b3)
	rab := gr.Exp(ra, c.b3)
	gr.Wipe(c.b3)

	return Result{out: &fourthOut{
		match: gr.Equal(rab, gr.Div(pa, c.pb)),
		msg: &wire.SMP4{
			Rb: gr.EncodeElement(rb),
			Cr: gr.EncodeExponent(crb),
			D7: gr.EncodeExponent(d7b),
		},
	}}
}

// finalComp checks SMP4 and decides the initiator's outcome.
type finalComp struct {
	gr       *modp.Group
	msg      wire.SMP4
	a3       modp.Exponent
	g3b      modp.Element
	pab, qab modp.Element
}

type finalOut struct{ match bool }

func (c *finalComp) Compute() Result {
	gr, m := c.gr, c.msg
	d := decoder{gr: gr}
	rb, cr, d7 := d.elem(m.Rb), d.exp(m.Cr), d.exp(m.D7)
	if d.err != nil {
		return invalid(d.err)
	}
	if !verifyEqualLogs(gr, versionRb, c.g3b, c.qab, rb, cr, d7) {
		return fail(ErrProofFailed)
	}
	rab := gr.Exp(rb, c.a3)
	gr.Wipe(c.a3)
	return Result{out: &finalOut{match: gr.Equal(rab, c.pab)}}
}

func (*startOut) isOutput()    {}
func (*questionOut) isOutput() {}
func (*respondOut) isOutput()  {}
func (*thirdOut) isOutput()    {}
func (*fourthOut) isOutput()   {}
func (*finalOut) isOutput()    {}
