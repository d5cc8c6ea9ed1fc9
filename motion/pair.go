package motion

import (
	"fmt"
	"math"

	"github.com/arkottke/sigmaspectra"
)

// Pair combines two Records from the same event and station into a single
// selectable unit using their geometric-mean spectrum (§4.3).
type Pair struct {
	a, b *Record

	sa      []float64
	lnSa    []float64
	avgLnSa float64
	flag    Flag
}

// NewPair constructs a Pair from two records satisfying a.Event()==b.Event()
// && a.Station()==b.Station() && a.Component()!=b.Component().
func NewPair(a, b *Record) (*Pair, error) {
	if !isPair(a, b) {
		return nil, fmt.Errorf("%w: %s/%s%s and %s/%s%s do not form a pair",
			sigmaspectra.ErrInvalidInput, a.event, a.station, a.component, b.event, b.station, b.component)
	}
	if len(a.lnSa) != len(b.lnSa) {
		return nil, fmt.Errorf("%w: mismatched spectral grid lengths", sigmaspectra.ErrInvalidInput)
	}

	p := &Pair{a: a, b: b}
	p.recompute()
	return p, nil
}

func (p *Pair) recompute() {
	n := len(p.a.lnSa)
	p.lnSa = make([]float64, n)
	p.sa = make([]float64, n)
	for j := range p.lnSa {
		p.lnSa[j] = (p.a.lnSa[j] + p.b.lnSa[j]) / 2
		p.sa[j] = math.Exp(p.lnSa[j])
	}
	p.avgLnSa = mean(p.lnSa)
}

// ScaleBy forwards to both component records and refreshes the pair's own
// ln-Sa cache from the freshly scaled components (§4.3).
func (p *Pair) ScaleBy(factor float64) {
	p.a.ScaleBy(factor)
	p.b.ScaleBy(factor)
	p.recompute()
}

func (p *Pair) Name() string       { return p.a.event + "/" + p.a.station }
func (p *Pair) Event() string      { return p.a.event }
func (p *Pair) Station() string    { return p.a.station }
func (p *Pair) ComponentCount() int { return 2 }
func (p *Pair) LnSa() []float64    { return p.lnSa }
func (p *Pair) Sa() []float64      { return p.sa }
func (p *Pair) AvgLnSa() float64   { return p.avgLnSa }
func (p *Pair) Flag() Flag         { return p.flag }
func (p *Pair) SetFlag(f Flag) {
	p.flag = f
	p.a.SetFlag(f)
	p.b.SetFlag(f)
}

// A returns the pair's first component record.
func (p *Pair) A() *Record { return p.a }

// B returns the pair's second component record.
func (p *Pair) B() *Record { return p.b }

var _ Motion = (*Pair)(nil)
