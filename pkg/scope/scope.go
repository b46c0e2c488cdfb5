// pkg/scope/scope.go - decides which installer identifiers and paths belong to the Click-to-Run family.

package scope

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tables is the fixed data the Classifier works from. It is read from
// configuration so deployments and tests can substitute their own values.
type Tables struct {
	// FamilySuffix is the tail every family product code ends with, closing brace included.
	FamilySuffix string `yaml:"FamilySuffix"`
	// VersionFloor: the two-digit major version must be strictly greater.
	VersionFloor int `yaml:"VersionFloor"`
	// VersionOffset is the index of the two version digits in the expanded form.
	VersionOffset int `yaml:"VersionOffset"`
	// SKUOffset is the index of the four SKU characters in the expanded form.
	SKUOffset       int      `yaml:"SKUOffset"`
	ValidSKUs       []string `yaml:"ValidSKUs"`
	SpecialProducts []string `yaml:"SpecialProducts"`
	// KnownPathPatterns identify the C2R installation layout in file and registry paths.
	KnownPathPatterns []string `yaml:"KnownPathPatterns"`
}

// DefaultTables returns the Office Click-to-Run tables.
func DefaultTables() Tables {
	return Tables{
		FamilySuffix:  "0000000FF1CE}",
		VersionFloor:  14,
		VersionOffset: 3,
		SKUOffset:     10,
		ValidSKUs:     []string{"007E", "008F", "008C", "24E1", "237A", "00DD"},
		SpecialProducts: []string{
			"{6C1ADE97-24E1-4AE4-AEDD-86D3A209CE60}",
			"{9520DDEB-237A-41DB-AA20-F2EF2360DCEB}",
			"{9AC08E99-230B-47E8-9721-4577B7F124EA}",
		},
		KnownPathPatterns: []string{
			`\ROOT\OFFICE1`,
			`Microsoft Office\Root\`,
			`\microsoft shared\ClickToRun`,
			`\Microsoft Office\PackageManifests`,
			`\Microsoft Office\PackageSunrisePolicies`,
			`Microsoft Office 15`,
			`Microsoft Office 16`,
		},
	}
}

const candidateLen = 38

// Classifier is an immutable predicate over product codes and paths.
type Classifier struct {
	suffix        string
	versionFloor  int
	versionOffset int
	skuOffset     int
	skus          map[string]struct{}
	special       map[string]struct{}
	patterns      []string
}

// New validates the tables and builds a Classifier. An error here means the
// tables themselves are malformed.
func New(t Tables) (*Classifier, error) {
	var errs []error

	if t.FamilySuffix == "" || len(t.FamilySuffix) > candidateLen {
		errs = append(errs, fmt.Errorf("family suffix %q must be 1..%d characters", t.FamilySuffix, candidateLen))
	}
	if t.VersionOffset < 0 || t.VersionOffset+2 > candidateLen {
		errs = append(errs, fmt.Errorf("version offset %d out of range", t.VersionOffset))
	}
	if t.SKUOffset < 0 || t.SKUOffset+4 > candidateLen {
		errs = append(errs, fmt.Errorf("sku offset %d out of range", t.SKUOffset))
	}

	c := &Classifier{
		suffix:        strings.ToUpper(t.FamilySuffix),
		versionFloor:  t.VersionFloor,
		versionOffset: t.VersionOffset,
		skuOffset:     t.SKUOffset,
		skus:          make(map[string]struct{}, len(t.ValidSKUs)),
		special:       make(map[string]struct{}, len(t.SpecialProducts)),
	}

	for _, sku := range t.ValidSKUs {
		if len(sku) != 4 {
			errs = append(errs, fmt.Errorf("sku %q must be 4 characters", sku))
			continue
		}
		c.skus[strings.ToUpper(sku)] = struct{}{}
	}
	for _, code := range t.SpecialProducts {
		if len(code) != candidateLen {
			errs = append(errs, fmt.Errorf("special product %q must be %d characters", code, candidateLen))
			continue
		}
		c.special[strings.ToUpper(code)] = struct{}{}
	}
	for _, p := range t.KnownPathPatterns {
		if p == "" {
			errs = append(errs, errors.New("empty path pattern"))
			continue
		}
		c.patterns = append(c.patterns, strings.ToUpper(p))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns a Classifier over DefaultTables.
func Default() *Classifier {
	c, err := New(DefaultTables())
	if err != nil {
		panic("scope: default tables are invalid: " + err.Error())
	}
	return c
}

// IsInScope reports whether an expanded product code belongs to the family.
func (c *Classifier) IsInScope(candidate string) bool {
	if len(candidate) != candidateLen {
		return false
	}
	upper := strings.ToUpper(candidate)
	if len(upper) != candidateLen {
		return false
	}

	if _, ok := c.special[upper]; ok {
		return true
	}
	if !strings.HasSuffix(upper, c.suffix) {
		return false
	}

	version, err := strconv.ParseUint(upper[c.versionOffset:c.versionOffset+2], 10, 8)
	if err != nil || int(version) <= c.versionFloor {
		return false
	}

	_, ok := c.skus[upper[c.skuOffset:c.skuOffset+4]]
	return ok
}

// IsKnownPathPattern reports whether path contains any known C2R layout fragment.
func (c *Classifier) IsKnownPathPattern(path string) bool {
	if path == "" {
		return false
	}
	upper := strings.ToUpper(path)
	for _, p := range c.patterns {
		if strings.Contains(upper, p) {
			return true
		}
	}
	return false
}
