package wazero

import (
	"fmt"

	"github.com/callbridge/callbridge/domain/errors"
)

// guestMemory is the subset of api.Memory the call context reads through.
type guestMemory interface {
	Read(offset, byteCount uint32) ([]byte, bool)
	ReadUint64Le(offset uint32) (uint64, bool)
}

// memoryCallContext implements bridge.CallContext over an argv table in
// guest memory. Buffers are views into guest memory, valid for the call only.
type memoryCallContext struct {
	mem     guestMemory
	argv    uint32
	argc    uint32
	maxSize uint32
}

func (c *memoryCallContext) Len() int {
	return int(c.argc)
}

func (c *memoryCallContext) Argument(index int) ([]byte, error) {
	if index < 0 || index >= int(c.argc) {
		return nil, &errors.ArgumentError{Index: index, Count: int(c.argc)}
	}

	slot := uint64(c.argv) + uint64(index)*8
	if slot > 0xFFFFFFFF {
		return nil, fmt.Errorf("argument %d: argv slot at %#x overflows guest address space", index, slot)
	}
	packed, ok := c.mem.ReadUint64Le(uint32(slot))
	if !ok {
		return nil, fmt.Errorf("argument %d: argv slot at %#x is outside guest memory", index, slot)
	}

	ptr, length := unpackPtrLen(packed)
	if length > c.maxSize {
		return nil, fmt.Errorf("argument %d: size %d exceeds maximum %d bytes", index, length, c.maxSize)
	}
	if length == 0 {
		return []byte{}, nil
	}

	buf, ok := c.mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("argument %d: buffer %#x+%d is outside guest memory", index, ptr, length)
	}
	return buf, nil
}
