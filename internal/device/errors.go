package device

import "errors"

// Domain errors for the device package.
var (
	// ErrInvalidValue is returned when a board reports a byte outside the
	// allow-list. The read is treated as a glitch.
	ErrInvalidValue = errors.New("device: invalid board value")

	// ErrShortRead is returned when a board resource yields no data.
	ErrShortRead = errors.New("device: short read")

	// ErrInvalidBit is returned when a slot index is outside the board.
	ErrInvalidBit = errors.New("device: invalid bit")

	// ErrSlotTaken is returned when two devices claim the same board bit.
	ErrSlotTaken = errors.New("device: slot already occupied")
)
