package loader

import "golang.org/x/sys/unix"

// MapStack fixed-maps a size-byte guest stack region immediately below
// the lowest loaded segment and returns its top address (stack grows
// down, per ARM/AAPCS convention, matching the original's reservation
// of a fixed-size stack below the loaded image). img is updated so
// later queries of the image's address range include the stack.
func MapStack(img *Image, size uint32) (uint32, error) {
	size = (size + pageSize - 1) &^ (pageSize - 1)
	base := (img.LowestVaddr - size) &^ (pageSize - 1)

	if _, err := mmapFixed(uintptr(base), int(size), unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, err
	}

	if base < img.LowestVaddr {
		img.LowestVaddr = base
	}
	top := base + size
	return top, nil
}
