// pkg/scrub/report.go - per-candidate outcomes and the run summary.

package scrub

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/c2rscrub/pkg/deletion"
)

// Region names a part of the machine the orchestrator scrubs.
type Region string

const (
	RegionProcesses           Region = "processes"
	RegionServices            Region = "services"
	RegionShortcuts           Region = "shortcuts"
	RegionUpgradeCodes        Region = "upgrade-codes"
	RegionProducts            Region = "products"
	RegionComponents          Region = "components"
	RegionPublishedComponents Region = "published-components"
	RegionTypeLibs            Region = "typelibs"
	RegionLicense             Region = "license"
	RegionFiles               Region = "files"
)

// Status is the terminal state of one candidate.
type Status string

const (
	StatusDeleted   Status = "deleted"
	StatusScheduled Status = "scheduled-on-reboot"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Action is what was attempted on a candidate.
type Action string

const (
	ActionDeleteKey    Action = "delete-key"
	ActionDeleteValue  Action = "delete-value"
	ActionFilterList   Action = "filter-list"
	ActionDeletePath   Action = "delete-path"
	ActionDeleteSvc    Action = "delete-service"
	ActionUnpin        Action = "unpin"
	ActionUninstallKey Action = "uninstall-product-key"
)

// Outcome records what happened to one candidate.
type Outcome struct {
	Region     Region `yaml:"region"`
	Location   string `yaml:"location"`
	Identifier string `yaml:"identifier,omitempty"`
	Action     Action `yaml:"action"`
	Status     Status `yaml:"status"`
	Detail     string `yaml:"detail,omitempty"`
}

// Counts aggregates outcomes by status.
type Counts struct {
	Deleted   int `yaml:"deleted"`
	Scheduled int `yaml:"scheduled_on_reboot"`
	Failed    int `yaml:"failed"`
	Skipped   int `yaml:"skipped"`
}

// Report is the result of one scrub pass. Skipped candidates are always
// counted but listed only when they carry a Detail; plain out-of-scope
// installer entries number in the thousands.
type Report struct {
	SessionID        string    `yaml:"session_id,omitempty"`
	Started          time.Time `yaml:"started"`
	Finished         time.Time `yaml:"finished"`
	DryRun           bool      `yaml:"dry_run"`
	Is64Bit          bool      `yaml:"is_64_bit"`
	InstalledVersion string    `yaml:"installed_version,omitempty"`
	Counts           Counts    `yaml:"counts"`
	TerminatedPIDs   []int32   `yaml:"terminated_pids,omitempty"`
	RebootJournal    []string  `yaml:"reboot_journal,omitempty"`
	Outcomes         []Outcome `yaml:"outcomes,omitempty"`
}

// Add records an outcome.
func (r *Report) Add(o Outcome) {
	switch o.Status {
	case StatusDeleted:
		r.Counts.Deleted++
	case StatusScheduled:
		r.Counts.Scheduled++
	case StatusFailed:
		r.Counts.Failed++
	case StatusSkipped:
		r.Counts.Skipped++
		if o.Detail == "" {
			return
		}
	}
	r.Outcomes = append(r.Outcomes, o)
}

// Filter returns the recorded outcomes with the given status.
func (r *Report) Filter(status Status) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

// RebootRequired reports whether anything was left for removal at restart.
func (r *Report) RebootRequired() bool {
	return r.Counts.Scheduled > 0
}

// Process exit codes.
const (
	ExitOK             = 0
	ExitConfigError    = 1
	ExitRebootRequired = 2
	ExitFailures       = 3
)

// ExitCode maps the report onto the process exit code. Failures win over a
// pending reboot.
func (r *Report) ExitCode() int {
	switch {
	case r.Counts.Failed > 0:
		return ExitFailures
	case r.RebootRequired():
		return ExitRebootRequired
	default:
		return ExitOK
	}
}

// Write saves the report as YAML.
func (r *Report) Write(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("serializing report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func statusOf(t deletion.Task) Status {
	switch t.Status {
	case deletion.Deleted:
		return StatusDeleted
	case deletion.ScheduledOnReboot:
		return StatusScheduled
	default:
		return StatusFailed
	}
}

func boolStatus(ok bool) Status {
	if ok {
		return StatusDeleted
	}
	return StatusFailed
}
