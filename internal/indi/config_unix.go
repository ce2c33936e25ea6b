//go:build !windows

package indi

import (
	"os"
	"syscall"
)

// fileOwner extracts the uid/gid of st on platforms with a POSIX stat
// struct, used by openConfigFile's root-ownership sanity check
// (spec.md §4.G).
func fileOwner(st os.FileInfo) (uid, gid uint32, ok bool) {
	sysStat, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, 0, false
	}
	return sysStat.Uid, sysStat.Gid, true
}
