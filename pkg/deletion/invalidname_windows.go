//go:build windows

package deletion

import "golang.org/x/sys/windows"

var errInvalidName error = windows.ERROR_INVALID_NAME
