package acornfs

import "os"

// IOFlags controls what a stream over a file's sectors may do. The values are
// compatible with the flags passed to [os.OpenFile].
type IOFlags int

const (
	O_RDONLY IOFlags = IOFlags(os.O_RDONLY)
	O_WRONLY IOFlags = IOFlags(os.O_WRONLY)
	O_RDWR   IOFlags = IOFlags(os.O_RDWR)
)

const accessModeMask = O_RDONLY | O_WRONLY | O_RDWR

func (flags IOFlags) Read() bool {
	mode := flags & accessModeMask
	return mode == O_RDONLY || mode == O_RDWR
}

func (flags IOFlags) Write() bool {
	mode := flags & accessModeMask
	return mode == O_WRONLY || mode == O_RDWR
}

const (
	S_IXOTH = 1 << iota // 00001
	S_IWOTH = 1 << iota // 00002
	S_IROTH = 1 << iota
	S_IXGRP = 1 << iota
	S_IWGRP = 1 << iota // 00010
	S_IRGRP = 1 << iota
	S_IXUSR = 1 << iota
	S_IWUSR = 1 << iota
	S_IRUSR = 1 << iota // 00100
)

const S_IRALL = S_IRUSR | S_IRGRP | S_IROTH

// HostFileMode gives the permissions a file extracted from a disk image should
// have on the host. DFS has no notion of ownership, so locking is the only
// thing that matters: locked files are read-only for everyone.
func HostFileMode(locked bool) os.FileMode {
	if locked {
		return os.FileMode(S_IRALL)
	}
	return os.FileMode(S_IRALL | S_IWUSR)
}
