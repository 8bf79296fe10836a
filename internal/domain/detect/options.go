package detect

import "github.com/okian/clash/pkg/logger"

// WindowMode selects how the performer overload rule forms windows.
type WindowMode string

// Window modes.
const (
	// WindowSliding anchors one window at every distinct event date and
	// flags every pair inside a window whose distinct performers exceed the
	// ceiling.
	WindowSliding WindowMode = "sliding"
	// WindowPairwise only looks at the union of two events' performers.
	WindowPairwise WindowMode = "pairwise"
)

// Valid reports whether m is a known mode.
func (m WindowMode) Valid() bool {
	return m == WindowSliding || m == WindowPairwise
}

// Default detector configuration.
const (
	DefaultIndexThreshold = 512
	DefaultWindowMode     = WindowSliding
)

// Option configures a Detector.
type Option func(*Detector)

// WithWindowMode sets the performer window mode. Unknown modes are ignored.
func WithWindowMode(m WindowMode) Option {
	return func(d *Detector) {
		if m.Valid() {
			d.mode = m
		}
	}
}

// WithIndexThreshold sets the event count above which the distance rules
// use the weekly bucket index. Zero always indexes.
func WithIndexThreshold(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.indexThreshold = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.log = l
		}
	}
}
