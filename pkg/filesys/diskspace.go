package filesys

import "golang.org/x/sys/unix"

// AvailableDiskSpace returns the number of free bytes available to an
// unprivileged user on the filesystem that backs dirPath. The merge
// subsystem consults this before starting a merge pass, since a merge
// temporarily needs enough headroom to hold a full rewrite of the live
// data alongside the files it is replacing.
func AvailableDiskSpace(dirPath string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dirPath, &stat); err != nil {
		return 0, err
	}
	// Bavail (not Bfree) excludes blocks reserved for the superuser.
	return stat.Bavail * uint64(stat.Bsize), nil
}
