//go:build darwin || freebsd || netbsd || openbsd

package wrapper

import "golang.org/x/sys/unix"

const fdSetWordBits = 32

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/fdSetWordBits] |= 1 << uint(fd%fdSetWordBits)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/fdSetWordBits]&(1<<uint(fd%fdSetWordBits)) != 0
}
