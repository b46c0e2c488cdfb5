// pkg/service/service.go - stopping and deleting the Click-to-Run services.

package service

import (
	"fmt"
	"strings"
)

// Win32Service is the part of the WMI Win32_Service class we read.
type Win32Service struct {
	Name  string `wmi:"Name"`
	State string `wmi:"State"`
}

// Running reports whether the service must be stopped before deletion.
func (s Win32Service) Running() bool {
	return strings.EqualFold(s.State, "Running") || strings.EqualFold(s.State, "Started")
}

// Query selects services whose name starts with prefix. The prefix match
// also catches per-version variants such as ClickToRunSvc_16.
func Query(prefix string) string {
	return fmt.Sprintf("SELECT Name, State FROM Win32_Service WHERE Name LIKE '%s%%'", escapeLike(prefix))
}

// ObjectPath is the WMI path of a single service instance.
func ObjectPath(name string) string {
	return fmt.Sprintf(`Win32_Service.Name="%s"`, strings.ReplaceAll(name, `"`, `\"`))
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `%`, `[%]`, `_`, `[_]`)
	return r.Replace(s)
}
