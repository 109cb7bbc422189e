package device

import (
	"fmt"
	"io"
	"time"
)

// Timing defaults in seconds.
const (
	DefaultPIRHoldSecs    = 120
	DefaultSwitchHoldSecs = 3600
)

// MinToggleDelay is the flip-flop protection window.
const MinToggleDelay = time.Second

// Actuator is the timing and override state shared by relays and yeelights.
// A zero LastToggled means never toggled; a zero StopAfter means no timer.
type Actuator struct {
	ID         int
	Name       string
	Tags       []string
	PIRExclude bool
	PIRHold    time.Duration
	SwitchHold time.Duration
	PIRAllDay  bool

	OverrideMode bool
	LastToggled  time.Time
	StopAfter    time.Duration
}

// NewActuator fills in default hold times for zero values.
func NewActuator(id int, name string, tags []string, pirHoldSecs, switchHoldSecs int) Actuator {
	if pirHoldSecs == 0 {
		pirHoldSecs = DefaultPIRHoldSecs
	}
	if switchHoldSecs == 0 {
		switchHoldSecs = DefaultSwitchHoldSecs
	}
	return Actuator{
		ID:         id,
		Name:       name,
		Tags:       tags,
		PIRHold:    time.Duration(pirHoldSecs) * time.Second,
		SwitchHold: time.Duration(switchHoldSecs) * time.Second,
	}
}

// Elapsed returns the time since the last toggle, or zero if never toggled.
func (a *Actuator) Elapsed(now time.Time) time.Duration {
	if a.LastToggled.IsZero() {
		return 0
	}
	return now.Sub(a.LastToggled)
}

// FlipFlopBlocked reports whether a toggle now would be too soon after the
// previous one.
func (a *Actuator) FlipFlopBlocked(now time.Time) bool {
	return !a.LastToggled.IsZero() && now.Sub(a.LastToggled) < MinToggleDelay
}

// HasTag reports whether the actuator carries tag.
func (a *Actuator) HasTag(tag string) bool {
	return HasTag(a.Tags, tag)
}

// Relay is one output of a relay board.
type Relay struct {
	Actuator
	Bit int
}

// RelayBoard is an eight-output board. Writes made during a pass are staged
// and flushed as one byte.
type RelayBoard struct {
	Family  byte
	Address uint64
	Slots   [8]*Relay

	last    byte
	staged  byte
	pending bool
	handle  Resource
}

// NewRelayBoard creates a board with every output off.
func NewRelayBoard(family byte, address uint64) *RelayBoard {
	return &RelayBoard{Family: family, Address: address, last: 0xff}
}

// Attach places r on its bit.
func (b *RelayBoard) Attach(r *Relay) error {
	if r.Bit < 0 || r.Bit >= len(b.Slots) {
		return fmt.Errorf("%w: relay bit %d", ErrInvalidBit, r.Bit)
	}
	if b.Slots[r.Bit] != nil {
		return fmt.Errorf("%w: %s bit %d", ErrSlotTaken, b.Name(), r.Bit)
	}
	b.Slots[r.Bit] = r
	return nil
}

// Name returns the w1 slave name of the board.
func (b *RelayBoard) Name() string {
	return SlaveName(b.Family, b.Address)
}

// Value returns the byte the board will hold after the next flush.
func (b *RelayBoard) Value() byte {
	if b.pending {
		return b.staged
	}
	return b.last
}

// LastValue returns the last byte written to the board.
func (b *RelayBoard) LastValue() byte {
	return b.last
}

// IsOn reports whether the output at bit is on, including staged changes.
func (b *RelayBoard) IsOn(bit int) bool {
	return b.Value()&(1<<uint(bit)) == 0
}

// SetOn stages the output at bit on or off.
func (b *RelayBoard) SetOn(bit int, on bool) {
	v := b.Value()
	if on {
		v &^= 1 << uint(bit)
	} else {
		v |= 1 << uint(bit)
	}
	b.Stage(v)
}

// Stage records v as the intended output without writing it.
func (b *RelayBoard) Stage(v byte) {
	b.staged = v
	b.pending = true
}

// Flush writes the staged byte if it differs from the last write. It returns
// the mask of bits that changed. On failure the stage is kept and the
// resource is reopened on the next call.
func (b *RelayBoard) Flush(bus Bus) (byte, error) {
	if !b.pending {
		return 0, nil
	}
	if b.staged == b.last {
		b.pending = false
		return 0, nil
	}

	if b.handle == nil {
		h, err := bus.OpenOutput(b.Family, b.Address)
		if err != nil {
			return 0, fmt.Errorf("opening %s: %w", b.Name(), err)
		}
		b.handle = h
	}

	if _, err := b.handle.Seek(0, io.SeekStart); err != nil {
		b.drop()
		return 0, fmt.Errorf("seeking %s: %w", b.Name(), err)
	}
	if _, err := b.handle.Write([]byte{b.staged}); err != nil {
		b.drop()
		return 0, fmt.Errorf("writing %s: %w", b.Name(), err)
	}

	changed := b.last ^ b.staged
	b.last = b.staged
	b.pending = false
	return changed, nil
}

// Close releases the board resource.
func (b *RelayBoard) Close() error {
	if b.handle == nil {
		return nil
	}
	err := b.handle.Close()
	b.handle = nil
	return err
}

func (b *RelayBoard) drop() {
	if b.handle != nil {
		_ = b.handle.Close()
		b.handle = nil
	}
}

// Yeelight is a network-controlled lamp.
type Yeelight struct {
	Actuator
	Address   string
	PoweredOn bool
}
