package quadrature

import "sync/atomic"

// History patterns of one full detent, oldest sample in the high bits. Each sample
// is (B<<1)|A, and the idle level of both contacts is high.
const (
	// 10 00 01 11
	patternCCW = 0x87
	// 01 00 10 11
	patternCW = 0x4B
)

// Decoder reads EC11 kind of rotary encoders. It does not depend on concrete pins,
// so it can be fed from an edge handler or from a polling loop.
//
// The zero value is ready to use.
type Decoder struct {
	// Last 4 pin states as pairs of bits, the most recent in the low bits.
	history atomic.Uint32

	// Latest not yet read event, see pack.
	pending atomic.Uint32
}

// NewDecoder returns a decoder with empty history.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Sample records the current levels of both contacts. Both are expected to be high
// when the encoder rests on a detent.
//
// Sample must be called from a single producer goroutine. It may run concurrently
// with Read.
func (d *Decoder) Sample(a, b bool) {
	var state uint32
	if a {
		state |= 1
	}
	if b {
		state |= 2
	}

	h := d.history.Load()
	if state == h&0x3 {
		return
	}
	h = (h<<2 | state) & 0xFF
	d.history.Store(h)

	switch h {
	case patternCCW:
		d.addStep(CounterClockwise)
	case patternCW:
		d.addStep(Clockwise)
	}
}

func (d *Decoder) addStep(dir Direction) {
	for {
		old := d.pending.Load()
		next := pack(accumulate(unpack(old), dir))
		if d.pending.CompareAndSwap(old, next) {
			return
		}
	}
}

// Reset forgets the recent pin states, so transitions known to be spurious cannot
// complete a step. Pending events are kept.
func (d *Decoder) Reset() {
	d.history.Store(0)
}

// Read returns the steps accumulated since the previous successful Read. It reports
// false when there is nothing new.
func (d *Decoder) Read() (Event, bool) {
	for {
		old := d.pending.Load()
		e := unpack(old)
		if e.Count == 0 {
			return Event{}, false
		}
		if d.pending.CompareAndSwap(old, pack(Event{Direction: e.Direction})) {
			return e, true
		}
	}
}

// PressLatch holds one unread switch transition. A newer transition overwrites an
// unread one.
type PressLatch struct {
	v atomic.Uint32
}

// Set records p, replacing any unread transition.
func (l *PressLatch) Set(p Press) {
	l.v.Store(uint32(p))
}

// Read returns the unread transition and clears it.
func (l *PressLatch) Read() Press {
	return Press(l.v.Swap(uint32(NoPress)))
}
