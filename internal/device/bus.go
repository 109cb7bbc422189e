package device

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Resource is an open per-board byte file.
type Resource interface {
	io.ReadWriteSeeker
	io.Closer
}

// Bus opens board resources. SysfsBus is the production implementation and
// FakeBus the in-memory double.
type Bus interface {
	// OpenState opens a sensor board input for reading.
	OpenState(family byte, address uint64) (Resource, error)
	// OpenOutput opens a relay board output for writing.
	OpenOutput(family byte, address uint64) (Resource, error)
}

// SlaveName returns the w1 slave directory name, e.g. "3a-00000a1b2c3d".
func SlaveName(family byte, address uint64) string {
	return fmt.Sprintf("%02x-%012x", family, address)
}

// SysfsBus talks to boards through the kernel w1 driver.
type SysfsBus struct {
	Root string
}

// OpenState opens <root>/<slave>/state read-only.
func (b SysfsBus) OpenState(family byte, address uint64) (Resource, error) {
	return os.Open(filepath.Join(b.Root, SlaveName(family, address), "state"))
}

// OpenOutput opens <root>/<slave>/output write-only.
func (b SysfsBus) OpenOutput(family byte, address uint64) (Resource, error) {
	return os.OpenFile(filepath.Join(b.Root, SlaveName(family, address), "output"), os.O_WRONLY, 0)
}
