package loader

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapFixed maps size bytes of anonymous, private memory at the exact
// host address addr (MAP_FIXED), returning a []byte view over it.
// golang.org/x/sys/unix.Mmap has no way to request a specific address
// (Go's wrapper always passes a NULL hint), so this drops to a raw
// mmap(2) syscall, the same call original_source/src/ArmX86ElfLoad.c
// makes directly from C. MAP_FIXED silently clobbers any existing
// mapping in range, matching the original's behavior.
func mmapFixed(addr uintptr, size int, prot int) ([]byte, error) {
	ptr, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		uintptr(prot),
		uintptr(unix.MAP_FIXED|unix.MAP_PRIVATE|unix.MAP_ANONYMOUS),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		return nil, errno
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size), nil
}
