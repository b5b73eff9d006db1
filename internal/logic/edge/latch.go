// Package edge provides the rising-edge latch used to count a condition once
// per occurrence, no matter how many polls it stays true for.
package edge

// Latch remembers whether a polled condition was active on the previous poll.
// The zero value is an unarmed latch (condition considered inactive).
type Latch struct {
	on bool
}

// Update records the current state of the condition and reports whether this
// poll is a rising edge (inactive -> active). The latch must observe an
// inactive poll before another rising edge is reported.
func (l *Latch) Update(active bool) bool {
	rising := active && !l.on
	l.on = active
	return rising
}

// Active reports the last observed state.
func (l *Latch) Active() bool {
	return l.on
}

// Reset clears the latch.
func (l *Latch) Reset() {
	l.on = false
}
