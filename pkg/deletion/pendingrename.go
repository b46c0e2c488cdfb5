package deletion

import (
	"fmt"

	"github.com/windowsadmins/c2rscrub/pkg/regview"
)

const (
	// SessionManagerPath is the HKLM key holding the boot-time rename queue.
	SessionManagerPath = `SYSTEM\CurrentControlSet\Control\Session Manager`
	// PendingRenameValue lists source/destination pairs; an empty destination deletes the source.
	PendingRenameValue = "PendingFileRenameOperations"
)

// PendingRenameQueue appends entries to PendingFileRenameOperations directly.
// It is used where MoveFileEx is unavailable or when the queue must be
// written through a non-live registry backend.
type PendingRenameQueue struct {
	view *regview.View
}

// NewPendingRenameQueue returns a queue writing through view.
func NewPendingRenameQueue(view *regview.View) *PendingRenameQueue {
	return &PendingRenameQueue{view: view}
}

// ScheduleOnReboot appends `\??\path` followed by an empty destination.
func (q *PendingRenameQueue) ScheduleOnReboot(path string) error {
	loc := regview.Location{Hive: regview.LocalMachine, Path: SessionManagerPath}
	existing, _ := q.view.GetStrings(loc, PendingRenameValue)

	entries := make([]string, 0, len(existing)+2)
	entries = append(entries, existing...)
	entries = append(entries, `\??\`+path, "")

	if !q.view.SetValue(loc, PendingRenameValue, regview.MultiStringValue(entries)) {
		return fmt.Errorf("could not update %s\\%s", loc, PendingRenameValue)
	}
	return nil
}
