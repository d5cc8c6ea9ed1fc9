// Package motion implements the ground-motion data model: MotionRecord
// (C2), MotionPair (C3), and the AbstractMotion capability interface they
// both satisfy.
package motion

// Flag classifies a motion's role in suite selection.
type Flag int

const (
	Unmarked Flag = iota
	Required
	Requested
	Disabled
)

// String names the flag, following the teacher's enum-plus-name-map idiom
// (decode.go's RecordNames/SubRecordNames) collapsed to a stringer method
// since this enum is small.
func (f Flag) String() string {
	switch f {
	case Required:
		return "Required"
	case Requested:
		return "Requested"
	case Disabled:
		return "Disabled"
	default:
		return "Unmarked"
	}
}

// SpectrumConfig is the shared period grid and damping ratio every motion
// in a library is built against (§9 DESIGN NOTES: replaces the source's
// process-wide static state with an explicit value threaded through
// construction).
type SpectrumConfig struct {
	Period  []float64
	Damping float64
}

// Motion is the polymorphic selection unit (§9 DESIGN NOTES): a capability
// interface implemented by both Record and Pair. Consumers in suite and
// search never branch on the underlying variant.
type Motion interface {
	Name() string
	Event() string
	Station() string
	ComponentCount() int
	LnSa() []float64
	Sa() []float64
	AvgLnSa() float64
	Flag() Flag
	SetFlag(Flag)
	ScaleBy(factor float64)
}
