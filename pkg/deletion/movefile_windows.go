//go:build windows

package deletion

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// MoveFileQueue registers paths with MoveFileEx(MOVEFILE_DELAY_UNTIL_REBOOT).
// Requires administrative rights.
type MoveFileQueue struct{}

func (MoveFileQueue) ScheduleOnReboot(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	if err := windows.MoveFileEx(p, nil, windows.MOVEFILE_DELAY_UNTIL_REBOOT); err != nil {
		return fmt.Errorf("MoveFileEx %s: %w", path, err)
	}
	return nil
}
