package bin

import "bytes"

// Section is an executable memory region of a binary: a named, contiguous
// byte buffer mapped at a virtual address. It corresponds to the "Section
// contract (consumed)" of §6: the gadget engine reads Buffer() and never
// mutates it.
type Section interface {
	// Name returns the section's name (e.g. ".text").
	Name() string
	// Vaddr returns the virtual address of the section's first byte.
	Vaddr() Addr
	// Size returns the length of the section's content in bytes.
	Size() uint64
	// Buffer returns the section's raw bytes; len(Buffer()) == Size().
	Buffer() []byte
	// SearchInMemory returns the file-relative offsets, in ascending order,
	// at which pattern occurs as a byte-literal match within Buffer().
	SearchInMemory(pattern []byte) []uint64
}

// BasicSection is a Section backed by an owned, read-only byte slice. It is
// the concrete type returned by every ExecutableFormat implementation in
// this repository.
type BasicSection struct {
	name   string
	vaddr  Addr
	buffer []byte
}

// NewBasicSection returns a Section named name, mapped at vaddr, backed by
// buffer. buffer is retained, not copied; callers must not mutate it after
// the Section is constructed.
func NewBasicSection(name string, vaddr Addr, buffer []byte) *BasicSection {
	return &BasicSection{name: name, vaddr: vaddr, buffer: buffer}
}

// Name implements Section.
func (s *BasicSection) Name() string { return s.name }

// Vaddr implements Section.
func (s *BasicSection) Vaddr() Addr { return s.vaddr }

// Size implements Section.
func (s *BasicSection) Size() uint64 { return uint64(len(s.buffer)) }

// Buffer implements Section.
func (s *BasicSection) Buffer() []byte { return s.buffer }

// SearchInMemory implements Section.
func (s *BasicSection) SearchInMemory(pattern []byte) []uint64 {
	if len(pattern) == 0 {
		return nil
	}
	var offsets []uint64
	buf := s.buffer
	start := 0
	for {
		i := bytes.Index(buf[start:], pattern)
		if i < 0 {
			break
		}
		offsets = append(offsets, uint64(start+i))
		start += i + 1
		if start >= len(buf) {
			break
		}
	}
	return offsets
}
