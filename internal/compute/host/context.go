package host

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"OpenCLGray/internal/compute"
)

var errReleased = errors.New("object already released")

type context struct {
	dev      *device
	released atomic.Bool
}

func (c *context) CreateQueue(d compute.Device) (compute.Queue, error) {
	if c.released.Load() {
		return nil, errReleased
	}
	if d != compute.Device(c.dev) {
		return nil, fmt.Errorf("device %q is not part of this context", d.Name())
	}
	return &queue{ctx: c}, nil
}

func (c *context) CreateProgram(source string) (compute.Program, error) {
	if c.released.Load() {
		return nil, errReleased
	}
	if source == "" {
		return nil, errors.New("empty program source")
	}
	return &program{ctx: c, source: source}, nil
}

func (c *context) CreateBuffer(flags compute.MemFlags, data []byte) (compute.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("invalid buffer size 0")
	}
	m, err := c.newMemory(flags, len(data))
	if err != nil {
		return nil, err
	}
	copy(m.data, data)
	return m, nil
}

func (c *context) CreateEmptyBuffer(flags compute.MemFlags, size int) (compute.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid buffer size %d", size)
	}
	return c.newMemory(flags, size)
}

func (c *context) newMemory(flags compute.MemFlags, size int) (*Memory, error) {
	if c.released.Load() {
		return nil, errReleased
	}
	return &Memory{ctx: c, flags: flags, data: make([]byte, size)}, nil
}

func (c *context) Release() { c.released.Store(true) }

// Memory is an emulated device buffer. Kernels access it only through Load
// and Store, which record out-of-bounds and access-mode violations instead of
// touching memory.
type Memory struct {
	ctx   *context
	flags compute.MemFlags
	data  []byte

	mu       sync.Mutex
	faults   int
	first    string
	released atomic.Bool
}

func (m *Memory) Size() int { return len(m.data) }

func (m *Memory) Release() { m.released.Store(true) }

// Load reads byte i. Reading a write-only buffer or outside its bounds is a
// fault and yields 0.
func (m *Memory) Load(i int) byte {
	if i < 0 || i >= len(m.data) {
		m.fault("read out of bounds at %d (size %d)", i, len(m.data))
		return 0
	}
	if m.flags == compute.MemWriteOnly {
		m.fault("read of write-only buffer at %d", i)
		return 0
	}
	return m.data[i]
}

// Store writes byte i. Writing a read-only buffer or outside its bounds is a
// fault and is dropped.
func (m *Memory) Store(i int, v byte) {
	if i < 0 || i >= len(m.data) {
		m.fault("write out of bounds at %d (size %d)", i, len(m.data))
		return
	}
	if m.flags == compute.MemReadOnly {
		m.fault("write to read-only buffer at %d", i)
		return
	}
	m.data[i] = v
}

func (m *Memory) fault(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults == 0 {
		m.first = fmt.Sprintf(format, args...)
	}
	m.faults++
}

// takeFaults returns and clears the recorded faults.
func (m *Memory) takeFaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults == 0 {
		return nil
	}
	err := fmt.Errorf("memory fault: %s (%d faults)", m.first, m.faults)
	m.faults, m.first = 0, ""
	return err
}
