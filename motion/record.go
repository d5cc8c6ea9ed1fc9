package motion

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/arkottke/sigmaspectra"
	"github.com/arkottke/sigmaspectra/numerics"
)

// GToCmPerSecSq is the gravitational acceleration used to convert
// accelerations recorded in g to velocity in cm/s (§3).
const GToCmPerSecSq = 980.665

// componentSuffix matches a PEER AT2 component code at the end of a
// filename stem: three azimuth digits, an optional leading sign and a
// run of direction letters, or one of the named compass abbreviations.
var componentSuffix = regexp.MustCompile(`(?i)^(.+?)(\d{3}|-{0,2}[NSEWTLR]+|NOR|SOU|EAS|WES)$`)

// Record is a single recorded acceleration component, parsed from a PEER
// AT2 file and carrying its derived series, summary scalars, and response
// spectrum (§3, §4.2).
type Record struct {
	event     string
	station   string
	component string
	file      string

	dt  float64
	acc []float64
	vel []float64
	disp []float64

	pga, pgv, pgd float64
	ariasInt      float64
	dur575, dur595 float64

	sa      []float64
	lnSa    []float64
	avgLnSa float64

	prevScale float64
	flag      Flag
}

// LoadRecord parses one AT2 file and computes its derived series and
// response spectrum against cfg's period grid and damping.
func LoadRecord(path string, cfg SpectrumConfig) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", sigmaspectra.ErrIoError, path, err)
	}
	defer f.Close()

	raw, err := parseAT2(f)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", sigmaspectra.ErrIoError, path, err)
	}

	event, station, component := identityFromPath(path)

	r := &Record{
		event:     event,
		station:   station,
		component: component,
		file:      path,
		dt:        raw.dt,
		acc:       raw.acc,
		prevScale: 1.0,
		flag:      Unmarked,
	}
	r.deriveSeries()
	r.computeSpectrum(cfg)

	return r, nil
}

type rawSeries struct {
	dt  float64
	acc []float64
}

// parseAT2 reads the PEER AT2 format: four header lines (line 4 carrying
// N and dt as the first two numeric tokens), then whitespace-separated
// acceleration samples in g until N samples are consumed (§6).
func parseAT2(r *os.File) (rawSeries, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var headers [4]string
	for i := 0; i < 4; i++ {
		if !scanner.Scan() {
			return rawSeries{}, fmt.Errorf("truncated AT2 header")
		}
		headers[i] = scanner.Text()
	}

	n, dt, err := parseHeaderLine4(headers[3])
	if err != nil {
		return rawSeries{}, err
	}

	acc := make([]float64, 0, n)
	for scanner.Scan() {
		for _, tok := range strings.Fields(scanner.Text()) {
			if len(acc) >= n {
				break
			}
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return rawSeries{}, fmt.Errorf("invalid acceleration sample %q: %w", tok, err)
			}
			acc = append(acc, v)
		}
		if len(acc) >= n {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return rawSeries{}, err
	}
	if len(acc) < n {
		return rawSeries{}, fmt.Errorf("expected %d samples, got %d", n, len(acc))
	}

	return rawSeries{dt: dt, acc: acc}, nil
}

var numberToken = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?`)

// parseHeaderLine4 extracts N (int) and dt (float) as the first two
// numeric tokens of the line, tolerant of labels like "NPTS, DT" around
// them.
func parseHeaderLine4(line string) (int, float64, error) {
	matches := numberToken.FindAllString(line, -1)
	if len(matches) < 2 {
		return 0, 0, fmt.Errorf("header line 4 does not contain N and dt: %q", line)
	}
	n, err := strconv.Atoi(matches[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid N in header line 4: %w", err)
	}
	dt, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid dt in header line 4: %w", err)
	}
	if dt <= 0 {
		return 0, 0, fmt.Errorf("non-positive dt in header line 4: %g", dt)
	}
	return n, dt, nil
}

// identityFromPath extracts (event, station, component) from
// .../<event>/<station><component>.AT2. When the component suffix fails
// to match, identity falls back to parent-dir + filename (§4.2).
func identityFromPath(path string) (event, station, component string) {
	dir, base := filepath.Split(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	event = filepath.Base(filepath.Clean(dir))

	if m := componentSuffix.FindStringSubmatch(stem); m != nil {
		return event, m[1], m[2]
	}
	return event, stem, ""
}

// deriveSeries computes vel, disp, summary scalars, Arias intensity, and
// significant durations from acc (§4.2).
func (r *Record) deriveSeries() {
	r.vel = numerics.CumTrapz(r.acc, r.dt, GToCmPerSecSq)
	r.disp = numerics.CumTrapz(r.vel, r.dt, 1)

	r.pga = maxAbs(r.acc)
	r.pgv = maxAbs(r.vel)
	r.pgd = maxAbs(r.disp)

	n := len(r.acc)
	arias := make([]float64, n)
	for i := 1; i < n; i++ {
		arias[i] = arias[i-1] + (math.Pi/4)*r.dt*(r.acc[i]*r.acc[i]+r.acc[i-1]*r.acc[i-1])
	}
	r.ariasInt = arias[n-1]

	i5 := countBelow(arias, r.ariasInt, 0.05)
	i75 := countBelow(arias, r.ariasInt, 0.75)
	i95 := countBelow(arias, r.ariasInt, 0.95)
	r.dur575 = r.dt * float64(i75-i5)
	r.dur595 = r.dt * float64(i95-i5)
}

func countBelow(arias []float64, total, q float64) int {
	count := 0
	for _, a := range arias {
		if a/total < q {
			count++
		}
	}
	return count
}

func maxAbs(x []float64) float64 {
	m := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > m {
			m = a
		}
	}
	return m
}

// computeSpectrum evaluates the 5%-damped (configurable) pseudo-
// acceleration response spectrum of r.acc on cfg.Period via the
// frequency-domain SDOF transfer function (§4.2).
func (r *Record) computeSpectrum(cfg SpectrumConfig) {
	p := len(cfg.Period)
	r.sa = make([]float64, p)
	r.lnSa = make([]float64, p)

	n := len(r.acc)
	fasBase := numerics.Forward(r.acc)
	deltaF := 1.0 / (r.dt * float64(n))

	for j, T := range cfg.Period {
		fn := 1.0 / T
		binFor5fn := int(math.Ceil(5 * fn / deltaF))
		halfLen := numerics.NextPow2(maxInt(len(fasBase), binFor5fn))

		extended := make([]complex128, halfLen)
		copy(extended, fasBase)

		scaleAmp := complex(float64(halfLen)/float64(len(fasBase)), 0)
		for k := range extended {
			f := float64(k) * deltaF
			h := transferFunction(f, fn, cfg.Damping)
			extended[k] = extended[k] * scaleAmp * h
		}

		y := numerics.Inverse(extended, 2*halfLen)
		r.sa[j] = maxAbs(y)
		r.lnSa[j] = math.Log(r.sa[j])
	}

	r.avgLnSa = mean(r.lnSa)
	r.prevScale = 1.0
}

// transferFunction is the SDOF pseudo-acceleration transfer function
// H(f) = -fn^2 / ((f^2 - fn^2) - 2i*zeta*fn*f), defined for f>=0 (§4.2).
func transferFunction(f, fn, zeta float64) complex128 {
	denom := complex(f*f-fn*fn, -2*zeta*fn*f)
	return complex(-fn*fn, 0) / denom
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// ScaleBy multiplies acc, vel, disp, pga, pgv, pgd by factor/prevScale,
// scales ariasInt by the square of that ratio, and updates sa/lnSa/avgLnSa
// in step, so repeated ScaleBy calls are idempotent in net effect (§4.2,
// invariant 2).
func (r *Record) ScaleBy(factor float64) {
	ratio := factor / r.prevScale
	lnRatio := math.Log(ratio)

	scaleSlice(r.acc, ratio)
	scaleSlice(r.vel, ratio)
	scaleSlice(r.disp, ratio)
	r.pga *= ratio
	r.pgv *= ratio
	r.pgd *= ratio
	r.ariasInt *= ratio * ratio

	for j := range r.sa {
		r.sa[j] *= ratio
		r.lnSa[j] += lnRatio
	}
	r.avgLnSa += lnRatio

	r.prevScale = factor
}

func scaleSlice(x []float64, ratio float64) {
	for i := range x {
		x[i] *= ratio
	}
}

// ResetScale restores prevScale to 1 without touching the already-scaled
// samples, so the driver can reuse the library for a fresh search as §3's
// lifecycle requires. Callers that want the original unscaled samples back
// should ScaleBy(1) first.
func (r *Record) ResetScale() {
	r.prevScale = 1.0
}

func (r *Record) Name() string {
	if r.component == "" {
		return r.station
	}
	return r.station + r.component
}

func (r *Record) Event() string            { return r.event }
func (r *Record) Station() string          { return r.station }
func (r *Record) Component() string        { return r.component }
func (r *Record) File() string             { return r.file }
func (r *Record) ComponentCount() int      { return 1 }
func (r *Record) Dt() float64              { return r.dt }
func (r *Record) Acc() []float64           { return r.acc }
func (r *Record) Vel() []float64           { return r.vel }
func (r *Record) Disp() []float64          { return r.disp }
func (r *Record) PGA() float64             { return r.pga }
func (r *Record) PGV() float64             { return r.pgv }
func (r *Record) PGD() float64             { return r.pgd }
func (r *Record) AriasInt() float64        { return r.ariasInt }
func (r *Record) Dur575() float64          { return r.dur575 }
func (r *Record) Dur595() float64          { return r.dur595 }
func (r *Record) Sa() []float64            { return r.sa }
func (r *Record) LnSa() []float64          { return r.lnSa }
func (r *Record) AvgLnSa() float64         { return r.avgLnSa }
func (r *Record) Flag() Flag               { return r.flag }
func (r *Record) SetFlag(flag Flag)        { r.flag = flag }
func (r *Record) PrevScale() float64       { return r.prevScale }

var _ Motion = (*Record)(nil)

// isPair reports whether a and b share an event and station and carry
// distinct components, the constructor condition for Pair (§4.3).
func isPair(a, b *Record) bool {
	return a.event == b.event && a.station == b.station && a.component != b.component
}
