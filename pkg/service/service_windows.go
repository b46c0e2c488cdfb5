//go:build windows

package service

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/yusufpapurcu/wmi"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/wmiexec"
)

// Manager deletes services through WMI, falling back to sc.exe.
type Manager struct {
	StopWait time.Duration
}

// NewManager returns a Manager with the default stop wait.
func NewManager() *Manager {
	return &Manager{StopWait: time.Second}
}

// DeleteService stops and deletes every service whose name starts with name.
// A service that does not exist is not an error.
func (m *Manager) DeleteService(ctx context.Context, name string) error {
	var services []Win32Service
	if err := wmi.Query(Query(name), &services); err != nil {
		logging.Warn("WMI service query failed, falling back to sc.exe", "service", name, "error", err)
		return scDelete(ctx, name)
	}
	if len(services) == 0 {
		logging.Debug("Service not present", "service", name)
		return nil
	}

	err := wmiexec.Do(func(s *wmiexec.Session) error {
		for _, svc := range services {
			path := ObjectPath(svc.Name)
			if svc.Running() {
				if rc, err := s.Call(path, "StopService"); err != nil || rc != 0 {
					logging.Debug("StopService did not succeed", "service", svc.Name, "code", rc, "error", err)
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(m.StopWait):
				}
			}
			rc, err := s.Call(path, "Delete")
			if err != nil {
				return err
			}
			if rc != 0 {
				return fmt.Errorf("Win32_Service.Delete %s returned %d", svc.Name, rc)
			}
			logging.Info("Deleted service", "service", svc.Name)
		}
		return nil
	})
	if err != nil {
		logging.Warn("WMI service deletion failed, falling back to sc.exe", "service", name, "error", err)
		return scDelete(ctx, name)
	}
	return nil
}

func scDelete(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "sc.exe", "delete", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("sc.exe delete %s: %w: %s", name, err, out)
	}
	logging.Info("Deleted service with sc.exe", "service", name)
	return nil
}
