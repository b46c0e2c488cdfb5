//go:build windows

package license

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"

	"github.com/windowsadmins/c2rscrub/pkg/logging"
	"github.com/windowsadmins/c2rscrub/pkg/wmiexec"
)

// KeyRemover uninstalls Office product keys from the licensing service.
type KeyRemover struct{}

// OSVersion returns the running Windows version as "major.minor.build".
func OSVersion() string {
	v := windows.RtlGetVersion()
	return fmt.Sprintf("%d.%d.%d", v.MajorVersion, v.MinorVersion, v.BuildNumber)
}

// RemoveProductKeys uninstalls every Office key and returns how many were removed.
func (KeyRemover) RemoveProductKeys(ctx context.Context) (int, error) {
	class := Class(OSVersion())

	var products []Product
	if err := wmi.Query(Query(class), &products); err != nil {
		return 0, fmt.Errorf("querying %s: %w", class, err)
	}
	if len(products) == 0 {
		return 0, nil
	}

	removed := 0
	err := wmiexec.Do(func(s *wmiexec.Session) error {
		for _, p := range products {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.ProductKeyID == "" {
				continue
			}
			rc, err := s.Call(ObjectPath(class, p.ID), "UninstallProductKey", p.ProductKeyID)
			if err != nil || rc != 0 {
				logging.Warn("Failed to uninstall product key", "product", p.ID, "code", rc, "error", err)
				continue
			}
			logging.Info("Uninstalled product key", "product", p.ID)
			removed++
		}
		return nil
	})
	return removed, err
}
