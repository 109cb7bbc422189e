package automation

import "errors"

// Domain errors for the automation package.
var (
	// ErrQueueFull is returned when the task queue cannot take another task.
	ErrQueueFull = errors.New("automation: task queue full")

	// ErrInvalidTask is returned when a task has neither a relay id nor a tag group.
	ErrInvalidTask = errors.New("automation: task needs id_relay or tag_group")

	// ErrUnknownCommand is returned when a task command name is not recognised.
	ErrUnknownCommand = errors.New("automation: unknown task command")

	// ErrBadDelay is returned when a wicket gate directive has no usable delay.
	ErrBadDelay = errors.New("automation: invalid wicket gate delay")
)
