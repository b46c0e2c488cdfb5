// Package wmiexec invokes WMI instance methods (StopService, Delete,
// UninstallProductKey) through SWbemServices. github.com/yusufpapurcu/wmi
// covers queries; this package covers the method calls it does not.
package wmiexec
