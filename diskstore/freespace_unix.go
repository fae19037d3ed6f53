/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

//go:build unix

package diskstore

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// freeDiskSpace returns the number of bytes available to an unprivileged user on the file system of path.
func freeDiskSpace(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, fmt.Errorf("statfs %q: %w", path, err)
	}
	return int64(st.Bavail) * int64(st.Bsize), nil //nolint:unconvert // field types differ between platforms
}
