//go:build !windows

package deletion

import "syscall"

var errInvalidName error = syscall.ENAMETOOLONG
