package bridge

import (
	"context"
)

// EncodeSource copies text into module memory and returns its address.
//
// The buffer comes from the module's allocSource export and stays owned by
// the module, which reuses it on the next allocation; there is no free.
func EncodeSource(ctx context.Context, m Module, text string) (uint32, error) {
	length := uint32(len(text))

	ptr, err := m.AllocSource(ctx, length)
	if err != nil {
		return 0, err
	}

	// Allocation may have grown memory; take a fresh view.
	mem := m.Memory()
	region := Region{Offset: ptr, Length: length}
	if err := region.check(mem, "source buffer"); err != nil {
		return 0, err
	}
	if !mem.Write(ptr, []byte(text)) {
		return 0, region.violation(mem, "source buffer")
	}
	return ptr, nil
}
