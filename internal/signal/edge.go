package signal

// Edge is the transition observed between two consecutive samples.
type Edge int

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	}
	return "none"
}

// EdgeDetector remembers the previous sample. The zero value starts low, so
// a first true sample is a rising edge.
type EdgeDetector struct {
	prev bool
}

// Observe records present and returns the edge relative to the previous sample.
func (d *EdgeDetector) Observe(present bool) Edge {
	prev := d.prev
	d.prev = present
	switch {
	case !prev && present:
		return EdgeRising
	case prev && !present:
		return EdgeFalling
	}
	return EdgeNone
}

// Current returns the last observed value
func (d *EdgeDetector) Current() bool { return d.prev }
