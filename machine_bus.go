// machine_bus.go - Machine bus for the Armlet Engine

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later
*/

/*
machine_bus.go - Machine Bus for the Armlet Engine

This module implements the memory bus that forms the backbone of the Armlet
Engine's memory subsystem. It provides a unified interface for 8/16/32-bit
memory operations, memory-mapped I/O, and named permission-tagged segments.

Core Features:

    1MB of main memory allocated as a contiguous block.
    Named segments with read/write/execute permission bits; every access must
    land inside a segment carrying the required permission.
    Memory-mapped I/O via an I/O region mapping table keyed by page.
    Little-endian read/write operations.
    Thread-safe access implemented with a read/write mutex.

The ...WithFault accessors report permission and coverage faults to the caller
instead of panicking; the program loader and the AE32 core wrap the fault into
an error carrying the offending address.
*/

package main

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// SegPerm is a segment permission bitmask.
type SegPerm uint8

const (
	PermRead SegPerm = 1 << iota
	PermWrite
	PermExec
)

const (
	PermRW  = PermRead | PermWrite
	PermRWX = PermRW | PermExec
)

func (p SegPerm) String() string {
	buf := []byte{'-', '-', '-'}
	if p&PermRead != 0 {
		buf[0] = 'r'
	}
	if p&PermWrite != 0 {
		buf[1] = 'w'
	}
	if p&PermExec != 0 {
		buf[2] = 'x'
	}
	return string(buf)
}

// Segment is a named, permission-tagged contiguous region of the address space.
type Segment struct {
	Name  string
	Base  uint32
	Size  uint32
	Perms SegPerm
}

// Contains reports whether the n-byte access starting at addr lies inside the segment.
func (s *Segment) Contains(addr, n uint32) bool {
	return addr >= s.Base && addr+n <= s.Base+s.Size && addr+n >= addr
}

// IORegion represents a memory-mapped I/O region within the system.
// The callbacks are invoked when a memory access falls within the
// region's boundaries.
type IORegion struct {
	start   uint32
	end     uint32
	onRead  func(addr uint32) uint32
	onWrite func(addr uint32, value uint32)
}

// MachineBus is the primary memory bus for the Armlet Engine. It maintains a
// contiguous block of main memory, a segment table, and a mapping of
// memory-mapped I/O regions. Thread safety is enforced via a read/write mutex.
type MachineBus struct {
	memory   []byte
	segments []Segment
	mapping  map[uint32][]IORegion
	mutex    sync.RWMutex
}

// NewMachineBus allocates the main memory block and an empty segment table.
// Callers register segments with AddSegment before any accesses are made.
func NewMachineBus() *MachineBus {
	return &MachineBus{
		memory:  make([]byte, MEMORY_SIZE),
		mapping: make(map[uint32][]IORegion),
	}
}

// AddSegment registers a named segment. Registration fails if the segment is
// empty, extends past the end of memory, overlaps an existing segment, or
// reuses an existing name.
func (bus *MachineBus) AddSegment(name string, base, size uint32, perms SegPerm) error {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if size == 0 {
		return fmt.Errorf("segment %q: zero size", name)
	}
	if base+size > MEMORY_SIZE || base+size < base {
		return fmt.Errorf("segment %q: range 0x%08X-0x%08X exceeds memory", name, base, base+size)
	}
	for i := range bus.segments {
		s := &bus.segments[i]
		if s.Name == name {
			return fmt.Errorf("segment %q already registered", name)
		}
		if base < s.Base+s.Size && s.Base < base+size {
			return fmt.Errorf("segment %q overlaps segment %q", name, s.Name)
		}
	}
	bus.segments = append(bus.segments, Segment{Name: name, Base: base, Size: size, Perms: perms})
	return nil
}

// Segments returns a copy of the segment table.
func (bus *MachineBus) Segments() []Segment {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	out := make([]Segment, len(bus.segments))
	copy(out, bus.segments)
	return out
}

// SegmentAt returns the segment covering addr, or nil.
func (bus *MachineBus) SegmentAt(addr uint32) *Segment {
	bus.mutex.RLock()
	defer bus.mutex.RUnlock()
	if s := bus.segmentFor(addr, 1, 0); s != nil {
		seg := *s
		return &seg
	}
	return nil
}

// segmentFor finds the segment covering the n-byte access at addr and carrying
// perm (perm 0 skips the permission check). Caller must hold the mutex.
func (bus *MachineBus) segmentFor(addr, n uint32, perm SegPerm) *Segment {
	for i := range bus.segments {
		s := &bus.segments[i]
		if s.Contains(addr, n) {
			if perm != 0 && s.Perms&perm != perm {
				return nil
			}
			return s
		}
	}
	return nil
}

// MapIO registers a new memory-mapped I/O region with the bus. The region is
// specified by its start and end addresses (inclusive) and associated
// read/write callback functions, and is indexed by every page it spans.
func (bus *MachineBus) MapIO(start, end uint32, onRead func(addr uint32) uint32, onWrite func(addr uint32, value uint32)) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	region := IORegion{start: start, end: end, onRead: onRead, onWrite: onWrite}
	firstPage := start & PAGE_MASK
	lastPage := end & PAGE_MASK
	for page := firstPage; page <= lastPage; page += PAGE_SIZE {
		bus.mapping[page] = append(bus.mapping[page], region)
	}
}

// Write8WithFault writes one byte. It returns false if the address is not
// covered by a writable segment.
func (bus *MachineBus) Write8WithFault(addr uint32, value uint8) bool {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 1, PermWrite) == nil {
		return false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onWrite != nil {
				region.onWrite(addr, uint32(value))
				bus.memory[addr] = value
				return true
			}
		}
	}
	bus.memory[addr] = value
	return true
}

// Write16WithFault writes a 16-bit little-endian value.
func (bus *MachineBus) Write16WithFault(addr uint32, value uint16) bool {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 2, PermWrite) == nil {
		return false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onWrite != nil {
				region.onWrite(addr, uint32(value))
				binary.LittleEndian.PutUint16(bus.memory[addr:addr+2], value)
				return true
			}
		}
	}
	binary.LittleEndian.PutUint16(bus.memory[addr:addr+2], value)
	return true
}

// Write32WithFault writes a 32-bit little-endian word. It returns false if the
// access is not covered by a writable segment.
func (bus *MachineBus) Write32WithFault(addr uint32, value uint32) bool {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 4, PermWrite) == nil {
		return false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onWrite != nil {
				region.onWrite(addr, value)
				binary.LittleEndian.PutUint32(bus.memory[addr:addr+4], value)
				return true
			}
		}
	}
	binary.LittleEndian.PutUint32(bus.memory[addr:addr+4], value)
	return true
}

// Read8WithFault reads one byte, reporting a fault if the address is not
// covered by a readable segment.
func (bus *MachineBus) Read8WithFault(addr uint32) (uint8, bool) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 1, PermRead) == nil {
		return 0, false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onRead != nil {
				value := region.onRead(addr)
				bus.memory[addr] = uint8(value)
				return uint8(value), true
			}
		}
	}
	return bus.memory[addr], true
}

// Read16WithFault reads a 16-bit little-endian value.
func (bus *MachineBus) Read16WithFault(addr uint32) (uint16, bool) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 2, PermRead) == nil {
		return 0, false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onRead != nil {
				value := region.onRead(addr)
				binary.LittleEndian.PutUint16(bus.memory[addr:addr+2], uint16(value))
				return uint16(value), true
			}
		}
	}
	return binary.LittleEndian.Uint16(bus.memory[addr : addr+2]), true
}

// Read32WithFault reads a 32-bit little-endian word, reporting a fault if the
// access is not covered by a readable segment.
func (bus *MachineBus) Read32WithFault(addr uint32) (uint32, bool) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if bus.segmentFor(addr, 4, PermRead) == nil {
		return 0, false
	}
	if regions, exists := bus.mapping[addr&PAGE_MASK]; exists {
		for _, region := range regions {
			if addr >= region.start && addr <= region.end && region.onRead != nil {
				value := region.onRead(addr)
				binary.LittleEndian.PutUint32(bus.memory[addr:addr+4], value)
				return value, true
			}
		}
	}
	return binary.LittleEndian.Uint32(bus.memory[addr : addr+4]), true
}

// FetchWithFault reads a 32-bit instruction word, requiring execute permission.
func (bus *MachineBus) FetchWithFault(addr uint32) (uint32, bool) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	if addr&3 != 0 {
		return 0, false
	}
	if bus.segmentFor(addr, 4, PermExec) == nil {
		return 0, false
	}
	return binary.LittleEndian.Uint32(bus.memory[addr : addr+4]), true
}

// Read8 reads one byte, returning 0 on fault. Convenience accessor for
// devices and tests that have already validated the address.
func (bus *MachineBus) Read8(addr uint32) uint8 {
	v, _ := bus.Read8WithFault(addr)
	return v
}

// Read32 reads a 32-bit word, returning 0 on fault.
func (bus *MachineBus) Read32(addr uint32) uint32 {
	v, _ := bus.Read32WithFault(addr)
	return v
}

// Write32 writes a 32-bit word, ignoring faults.
func (bus *MachineBus) Write32(addr uint32, value uint32) {
	bus.Write32WithFault(addr, value)
}

// GetMemory exposes the backing memory slice for direct inspection.
func (bus *MachineBus) GetMemory() []byte {
	return bus.memory
}

// Reset clears the entire main memory. Segment registrations and I/O mappings
// are preserved.
func (bus *MachineBus) Reset() {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()

	for i := range bus.memory {
		bus.memory[i] = 0
	}
}
