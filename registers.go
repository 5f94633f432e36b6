// registers.go - Memory map and I/O register addresses for the Armlet Engine

/*
Armlet Engine - AE32: an ARM-flavoured 32-bit virtual machine

(c) 2025 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/ArmletEngine
License: GPLv3 or later
*/

/*
registers.go - Master Memory Map

Address Range       Size    Region              Segment
---------------------------------------------------------------------------
0x00000-0x07FFF     32KB    Low memory          (registered on demand by loader)
0x08000-0xDFFFF     864KB   Code + data         "text"  (RWX)
0xE0000-0xEFFFF     64KB    Stack               "stack" (RW)
0xF0000-0xFFFFF     64KB    Memory-mapped I/O   "mmio"  (RW)

Terminal/Serial (0xF0700-0xF070C) - terminal_io.go
  TERM_OUT, TERM_STATUS, TERM_IN, TERM_CTRL
*/

package main

const (
	MEMORY_SIZE = 0x100000 // 1MB total addressable memory
	PAGE_SIZE   = 0x100
	PAGE_MASK   = 0xFFF00

	// Segment boundaries
	CODE_BASE  = 0x8000  // Standard code segment base; entry points below this need a lowmem segment
	TEXT_LIMIT = 0xE0000 // End of the text segment (exclusive)
	STACK_BASE = 0xE0000
	STACK_TOP  = 0xF0000 // Initial stack pointer
	MMIO_BASE  = 0xF0000
	MMIO_LIMIT = 0x100000
)

// Terminal/Serial registers
const (
	TERM_OUT    uint32 = 0xF0700 // Write: output one character (low byte)
	TERM_STATUS uint32 = 0xF0704 // Read: bit 0 = input available, bit 1 = output ready
	TERM_IN     uint32 = 0xF0708 // Read: dequeue one input character
	TERM_CTRL   uint32 = 0xF070C // Write: control (bit 0 = clear input queue)
)
