package bin

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// NamedRegion is a symbolic sub-region of a binary, independent of the
// top-level executable sections: e.g. an ELF section such as ".text.foo"
// produced by -ffunction-sections. Grounded on original_source/named_region.cpp;
// Go's garbage-collected slices replace the C++ type's manual buffer
// ownership (constructor copy + destructor delete).
type NamedRegion struct {
	name   string
	offset uint64 // file offset of the region's contents
	vaddr  Addr
	size   uint64
}

// NewNamedRegion returns a NamedRegion named name, found at file offset
// offset, mapped at vaddr, spanning size bytes.
func NewNamedRegion(name string, offset uint64, vaddr Addr, size uint64) *NamedRegion {
	return &NamedRegion{name: name, offset: offset, vaddr: vaddr, size: size}
}

// Name returns the name of the named region.
func (nr *NamedRegion) Name() string { return nr.name }

// Offset returns the file offset at which the named region's contents begin.
func (nr *NamedRegion) Offset() uint64 { return nr.offset }

// Vaddr returns the virtual address of the named region.
func (nr *NamedRegion) Vaddr() Addr { return nr.vaddr }

// Size returns the size, in bytes, of the named region.
func (nr *NamedRegion) Size() uint64 { return nr.size }

// Dump materializes the named region's bytes, reading them lazily from r at
// nr.offset. It mirrors NamedRegion::dump in original_source/named_region.cpp,
// including the overflow-checked bounds test against the file size (the
// C++ SafeAddU64 call); overflow or an out-of-range region surfaces as an
// IntegerOverflow-class error (§7) rather than a panic.
func (nr *NamedRegion) Dump(r io.ReaderAt, fileSize uint64) ([]byte, error) {
	if nr.offset > math.MaxUint64-nr.size {
		return nil, errors.Errorf("named region %q: offset %d + size %d overflows", nr.name, nr.offset, nr.size)
	}
	if nr.offset+nr.size > fileSize {
		return nil, errors.Errorf("named region %q: offset %d + size %d exceeds file size %d", nr.name, nr.offset, nr.size, fileSize)
	}
	buf := make([]byte, nr.size)
	if _, err := r.ReadAt(buf, int64(nr.offset)); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf, nil
}
