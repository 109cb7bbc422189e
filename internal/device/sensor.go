package device

import (
	"fmt"
	"io"
)

// SensorBits are the input bit positions of a DS2413 state byte (PIOA, PIOB).
var SensorBits = [2]int{0, 2}

// validSensorValues is the set of raw state bytes a healthy board reports.
// Anything else is a read glitch.
var validSensorValues = map[byte]bool{
	0x5a: true,
	0x4b: true,
	0x1e: true,
	0x0f: true,
}

// ValidSensorValue reports whether v is an accepted raw state byte.
func ValidSensorValue(v byte) bool {
	return validSensorValues[v]
}

// SensorOn reports whether the input at bit is active in a raw state byte.
func SensorOn(value byte, bit int) bool {
	return value&(1<<uint(bit)) != 0
}

// Sensor is one binary input.
type Sensor struct {
	ID        int
	KindID    int
	Name      string
	Tags      []string
	Relays    []int
	Yeelights []int
}

// SensorBoard is a dual-input board. Slot i holds the sensor wired to
// SensorBits[i].
type SensorBoard struct {
	Family  byte
	Address uint64
	Slots   [2]*Sensor

	last   byte
	seen   bool
	handle Resource
}

// NewSensorBoard creates a board with no sensors attached.
func NewSensorBoard(family byte, address uint64) *SensorBoard {
	return &SensorBoard{Family: family, Address: address}
}

// Attach places s on the given input bit.
func (b *SensorBoard) Attach(bit int, s *Sensor) error {
	idx := -1
	for i, sb := range SensorBits {
		if sb == bit {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: sensor bit %d", ErrInvalidBit, bit)
	}
	if b.Slots[idx] != nil {
		return fmt.Errorf("%w: %s bit %d", ErrSlotTaken, b.Name(), bit)
	}
	b.Slots[idx] = s
	return nil
}

// Name returns the w1 slave name of the board.
func (b *SensorBoard) Name() string {
	return SlaveName(b.Family, b.Address)
}

// LastValue returns the last accepted byte and whether one was ever read.
func (b *SensorBoard) LastValue() (byte, bool) {
	return b.last, b.seen
}

// ReadState reads the current byte, opening the resource on first use or
// after a previous failure. Any I/O error drops the handle so the next call
// reopens it. Values outside the allow-list return ErrInvalidValue and leave
// the last value untouched.
func (b *SensorBoard) ReadState(bus Bus) (byte, error) {
	if b.handle == nil {
		h, err := bus.OpenState(b.Family, b.Address)
		if err != nil {
			return 0, fmt.Errorf("opening %s: %w", b.Name(), err)
		}
		b.handle = h
	}

	if _, err := b.handle.Seek(0, io.SeekStart); err != nil {
		b.drop()
		return 0, fmt.Errorf("seeking %s: %w", b.Name(), err)
	}

	var buf [1]byte
	n, err := b.handle.Read(buf[:])
	if err != nil {
		b.drop()
		return 0, fmt.Errorf("reading %s: %w", b.Name(), err)
	}
	if n != 1 {
		b.drop()
		return 0, fmt.Errorf("reading %s: %w", b.Name(), ErrShortRead)
	}
	if !ValidSensorValue(buf[0]) {
		return 0, fmt.Errorf("%w: %s reported %#02x", ErrInvalidValue, b.Name(), buf[0])
	}
	return buf[0], nil
}

// Observe records v as the board's latest value. It returns the mask of
// bits that differ from the previous value and whether this was the first
// value ever observed (in which case the mask is zero).
func (b *SensorBoard) Observe(v byte) (changed byte, initial bool) {
	if !b.seen {
		b.last, b.seen = v, true
		return 0, true
	}
	changed = b.last ^ v
	b.last = v
	return changed, false
}

// Close releases the board resource.
func (b *SensorBoard) Close() error {
	if b.handle == nil {
		return nil
	}
	err := b.handle.Close()
	b.handle = nil
	return err
}

func (b *SensorBoard) drop() {
	if b.handle != nil {
		_ = b.handle.Close()
		b.handle = nil
	}
}
