package aspeed

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MMIO is a RegisterIO backed by a real memory-mapped register window,
// grounded on the teacher's raw mmap usage in internal/queue/runner.go's
// mmapQueues (there via syscall.Syscall6(SYS_MMAP,...); here via
// golang.org/x/sys/unix.Mmap, which wraps the same syscall).
type MMIO struct {
	mem []byte
}

// OpenMMIO maps length bytes of physDevice (typically /dev/mem or a UIO
// device node) starting at the given byte offset.
func OpenMMIO(physDevice string, offset int64, length int) (*MMIO, error) {
	f, err := os.OpenFile(physDevice, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("aspeed: open %s: %w", physDevice, err)
	}
	defer f.Close()

	mem, err := unix.Mmap(int(f.Fd()), offset, length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("aspeed: mmap %s at 0x%x: %w", physDevice, offset, err)
	}
	return &MMIO{mem: mem}, nil
}

// ReadReg reads the byte at offset within the mapped window.
func (m *MMIO) ReadReg(offset int) uint8 {
	return m.mem[offset]
}

// WriteReg writes val to the byte at offset within the mapped window.
func (m *MMIO) WriteReg(offset int, val uint8) {
	m.mem[offset] = val
}

// Close unmaps the register window.
func (m *MMIO) Close() error {
	return unix.Munmap(m.mem)
}
