package bridge

import (
	"encoding/binary"

	abi "github.com/woxQAQ/xlang-bridge/api/wasm"
)

// Region is a byte range in linear memory.
type Region struct {
	Offset uint32
	Length uint32
}

// Read validates the region against the current memory size and copies it.
func (r Region) Read(mem Memory, what string) ([]byte, error) {
	if err := r.check(mem, what); err != nil {
		return nil, err
	}
	buf, ok := mem.Read(r.Offset, r.Length)
	if !ok {
		return nil, r.violation(mem, what)
	}
	return buf, nil
}

// ReadString reads the region as UTF-8 text.
func (r Region) ReadString(mem Memory, what string) (string, error) {
	buf, err := r.Read(mem, what)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r Region) check(mem Memory, what string) error {
	if uint64(r.Offset)+uint64(r.Length) > uint64(mem.Size()) {
		return r.violation(mem, what)
	}
	return nil
}

func (r Region) violation(mem Memory, what string) error {
	return &ProtocolViolationError{
		What:   what,
		Offset: uint64(r.Offset),
		Length: uint64(r.Length),
		Limit:  uint64(mem.Size()),
	}
}

// readWords reads n little-endian words starting at ptr.
func readWords(mem Memory, ptr, n uint32, what string) ([]uint32, error) {
	size := uint64(n) * abi.WordSize
	if uint64(ptr)+size > uint64(mem.Size()) {
		return nil, &ProtocolViolationError{What: what, Offset: uint64(ptr), Length: size, Limit: uint64(mem.Size())}
	}
	buf, err := Region{Offset: ptr, Length: uint32(size)}.Read(mem, what)
	if err != nil {
		return nil, err
	}
	words := make([]uint32, n)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(buf[i*abi.WordSize:])
	}
	return words, nil
}

// substring slices text by a [start, end) pair taken from a record.
func substring(text string, start, end uint32, what string) (string, error) {
	if start > end || uint64(end) > uint64(len(text)) {
		var length uint64
		if end > start {
			length = uint64(end - start)
		}
		return "", &ProtocolViolationError{
			What:   what,
			Offset: uint64(start),
			Length: length,
			Limit:  uint64(len(text)),
		}
	}
	return text[start:end], nil
}
