package codebuf

import "unsafe"

// addrOf returns the absolute host address of b's first byte.
func addrOf(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}
