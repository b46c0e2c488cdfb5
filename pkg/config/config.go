// pkg/config/config.go - configuration settings for c2rscrub.

package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/c2rscrub/pkg/scope"
)

// ConfigPath is the default location of the YAML configuration.
const ConfigPath = `C:\ProgramData\c2rscrub\Config.yaml`

// PolicyRegistryPath holds policy values used when no YAML file exists.
const PolicyRegistryPath = `SOFTWARE\Policies\c2rscrub`

// Deferred-deletion mechanisms.
const (
	DeferredMoveFile      = "movefile"
	DeferredPendingRename = "pendingrename"
)

// Regions toggles individual registry regions of the scrub.
type Regions struct {
	UpgradeCodes        bool `yaml:"UpgradeCodes"`
	Products            bool `yaml:"Products"`
	Components          bool `yaml:"Components"`
	PublishedComponents bool `yaml:"PublishedComponents"`
	TypeLibs            bool `yaml:"TypeLibs"`
}

// Configuration holds the configurable options for c2rscrub in YAML format
type Configuration struct {
	LogLevel            string `yaml:"LogLevel"`
	LogPath             string `yaml:"LogPath"`
	LogRetentionRuns    int    `yaml:"LogRetentionRuns"`
	DryRun              bool   `yaml:"DryRun"`
	Force64Bit          bool   `yaml:"Force64Bit"`
	DeferredDelete      string `yaml:"DeferredDelete"` // "movefile" or "pendingrename"
	ProcessTimeoutSecs  int    `yaml:"ProcessTimeoutSeconds"`
	RetryAttempts       int    `yaml:"RetryAttempts"`
	RetryIntervalMillis int    `yaml:"RetryIntervalMillis"`
	RestartExplorer     bool   `yaml:"RestartExplorer"`

	Processes     []string `yaml:"Processes"`
	Services      []string `yaml:"Services"`
	KnownTypeLibs []string `yaml:"KnownTypeLibs"`
	CleanupPaths  []string `yaml:"CleanupPaths"`
	Shortcuts     []string `yaml:"Shortcuts"`

	Regions Regions      `yaml:"Regions"`
	Scope   scope.Tables `yaml:"Scope"`
}

// LoadConfig loads the configuration from a YAML file.
// If the file doesn't exist, it falls back to policy values in the registry,
// and finally to defaults.
func LoadConfig(path string) (*Configuration, error) {
	if path == "" {
		path = ConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("Configuration file does not exist: %s", path)

		cfg, policyErr := LoadConfigFromPolicy()
		if policyErr == nil {
			log.Printf("Loaded configuration from policy registry key %s", PolicyRegistryPath)
			return cfg, nil
		}
		log.Printf("No policy configuration available (%v), using defaults", policyErr)
		return GetDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Configuration, error) {
	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(cfg *Configuration, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serializing configuration: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating configuration directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Configuration) Validate() error {
	var errs []error

	switch strings.ToLower(c.DeferredDelete) {
	case DeferredMoveFile, DeferredPendingRename:
		c.DeferredDelete = strings.ToLower(c.DeferredDelete)
	default:
		errs = append(errs, fmt.Errorf("unknown DeferredDelete %q (want %q or %q)",
			c.DeferredDelete, DeferredMoveFile, DeferredPendingRename))
	}
	if c.ProcessTimeoutSecs <= 0 {
		errs = append(errs, fmt.Errorf("ProcessTimeoutSeconds must be positive, got %d", c.ProcessTimeoutSecs))
	}
	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("RetryAttempts must be at least 1, got %d", c.RetryAttempts))
	}
	if _, err := scope.New(c.Scope); err != nil {
		errs = append(errs, fmt.Errorf("scope tables: %w", err))
	}

	return errors.Join(errs...)
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		LogLevel:            "INFO",
		LogPath:             `C:\ProgramData\c2rscrub\logs`,
		LogRetentionRuns:    20,
		DeferredDelete:      DeferredMoveFile,
		ProcessTimeoutSecs:  5,
		RetryAttempts:       3,
		RetryIntervalMillis: 250,
		Processes:           DefaultProcesses(),
		Services:            []string{"ClickToRunSvc", "OfficeSvc"},
		KnownTypeLibs:       DefaultTypeLibs(),
		CleanupPaths: []string{
			`%ProgramFiles%\Microsoft Office\root`,
			`%ProgramFiles(x86)%\Microsoft Office\root`,
			`%CommonProgramFiles%\microsoft shared\ClickToRun`,
			`%CommonProgramFiles(x86)%\microsoft shared\ClickToRun`,
			`%ProgramFiles%\Microsoft Office\PackageManifests`,
			`%ProgramFiles%\Microsoft Office\PackageSunrisePolicies`,
		},
		Regions: Regions{
			UpgradeCodes:        true,
			Products:            true,
			Components:          true,
			PublishedComponents: true,
			TypeLibs:            true,
		},
		Scope: scope.DefaultTables(),
	}
}

// DefaultProcesses lists executables that hold C2R files open.
func DefaultProcesses() []string {
	return []string{
		"appvshnotify.exe", "integratedoffice.exe", "integrator.exe", "firstrun.exe",
		"communicator.exe", "msosync.exe", "OneNoteM.exe", "iexplore.exe",
		"mavinject32.exe", "werfault.exe", "perfboost.exe", "roamingoffice.exe",
		"officeclicktorun.exe", "officeondemand.exe", "OfficeC2RClient.exe",
		"winword.exe", "excel.exe", "powerpnt.exe", "outlook.exe", "onenote.exe",
		"mspub.exe", "msaccess.exe", "lync.exe", "skype.exe", "teams.exe",
	}
}

// DefaultTypeLibs lists type libraries registered by Office.
func DefaultTypeLibs() []string {
	return []string{
		"{000204EF-0000-0000-C000-000000000046}", "{00020802-0000-0000-C000-000000000046}",
		"{00020813-0000-0000-C000-000000000046}", "{00020905-0000-0000-C000-000000000046}",
		"{0002123C-0000-0000-C000-000000000046}", "{00024517-0000-0000-C000-000000000046}",
		"{0002E157-0000-0000-C000-000000000046}", "{00062FFF-0000-0000-C000-000000000046}",
		"{0006F062-0000-0000-C000-000000000046}", "{0006F080-0000-0000-C000-000000000046}",
		"{2DF8D04C-5BFA-101B-BDE5-00AA0044DE52}", "{4AFFC9A0-5F99-101B-AF4E-00AA003F0F07}",
		"{5B87B6F0-17C8-11D0-AD41-00A0C90DC8D9}", "{831FDD16-0C5C-11D2-A9FC-0000F8754DA1}",
		"{91493440-5A91-11CF-8700-00AA0060263B}", "{AC0714F2-3D04-11D1-AE7D-00A0C90F26F4}",
		"{BDEADE33-C265-11D0-BCED-00A0C90AB50F}", "{BDEADEF0-C265-11D0-BCED-00A0C90AB50F}",
		"{EDCD5812-6A06-43C3-AFAC-46EF5D14E22C}",
	}
}

// ExpandPath resolves %VAR% references against the environment.
// Unknown variables are left untouched.
func ExpandPath(p string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(p, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(p[start+1:], '%')
		if end < 0 {
			break
		}
		end += start + 1
		name := p[start+1 : end]
		b.WriteString(p[:start])
		if val, ok := os.LookupEnv(name); ok && name != "" {
			b.WriteString(val)
		} else {
			b.WriteString(p[start : end+1])
		}
		p = p[end+1:]
	}
	b.WriteString(p)
	return b.String()
}
