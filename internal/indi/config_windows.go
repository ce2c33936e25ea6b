//go:build windows

package indi

import "os"

// fileOwner has no POSIX uid/gid concept on Windows; the root-
// ownership sanity check of spec.md §4.G is a no-op there.
func fileOwner(st os.FileInfo) (uid, gid uint32, ok bool) {
	return 0, 0, false
}
