// pkg/license/license.go - removing Office product keys and cached licenses.

package license

import (
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-version"
)

// OfficeAppID is the Software Protection application id shared by Office products.
const OfficeAppID = "0ff1ce15-a989-479d-af46-f275c6370663"

// Licensing WMI classes. Windows 7 and earlier keep Office keys in the
// separate Office Software Protection Platform.
const (
	ClassSPP  = "SoftwareLicensingProduct"
	ClassOSPP = "OfficeSoftwareProtectionProduct"
)

var win7 = version.Must(version.NewVersion("6.1"))

// Product is a licensed product with an installed key.
type Product struct {
	ID           string `wmi:"ID"`
	ProductKeyID string `wmi:"ProductKeyID"`
}

// Class returns the WMI class holding Office keys for the given Windows
// version ("major.minor[.build]"). Unparseable versions are treated as current Windows.
func Class(osVersion string) string {
	v, err := version.NewVersion(osVersion)
	if err != nil {
		return ClassSPP
	}
	// only major.minor matters; 6.1.7601 is still Windows 7
	seg := v.Segments()
	majorMinor, err := version.NewVersion(fmt.Sprintf("%d.%d", seg[0], seg[1]))
	if err != nil || majorMinor.GreaterThan(win7) {
		return ClassSPP
	}
	return ClassOSPP
}

// Query selects the Office products in class that have a key installed.
func Query(class string) string {
	return fmt.Sprintf("SELECT ID, ProductKeyID FROM %s WHERE ApplicationId = '%s' AND PartialProductKey <> NULL", class, OfficeAppID)
}

// ObjectPath is the WMI path of a single product instance.
func ObjectPath(class, id string) string {
	return fmt.Sprintf(`%s.ID="%s"`, class, id)
}

// CachePaths lists the per-user vNext license caches under localAppData.
func CachePaths(localAppData string) []string {
	if localAppData == "" {
		return nil
	}
	return []string{
		filepath.Join(localAppData, "Microsoft", "Office", "Licenses"),
		filepath.Join(localAppData, "Microsoft", "Office", "15.0", "Licensing"),
		filepath.Join(localAppData, "Microsoft", "Office", "16.0", "Licensing"),
	}
}
