package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsInScope(t *testing.T) {
	c := Default()

	tests := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"version 15 sku 007E", "{90150000-007E-0000-1000-0000000FF1CE}", true},
		{"version 16 sku 008C", "{90160000-008C-0000-0000-0000000FF1CE}", true},
		{"lowercase", "{90160000-008c-0000-0000-0000000ff1ce}", true},
		{"version 12 below floor", "{90120000-007E-0000-1000-0000000FF1CE}", false},
		{"version 14 equals floor", "{90140000-007E-0000-1000-0000000FF1CE}", false},
		{"sku not valid", "{90160000-0011-0000-0000-0000000FF1CE}", false},
		{"version not numeric", "{901A0000-007E-0000-0000-0000000FF1CE}", false},
		{"foreign suffix", "{90160000-007E-0000-0000-000000000000}", false},
		{"arbitrary 38 chars", "abcdefghijklmnopqrstuvwxyz0123456789AB", false},
		{"special product 1", "{6C1ADE97-24E1-4AE4-AEDD-86D3A209CE60}", true},
		{"special product 2", "{9520DDEB-237A-41DB-AA20-F2EF2360DCEB}", true},
		{"special product 3 lowercase", "{9ac08e99-230b-47e8-9721-4577b7f124ea}", true},
		{"too short", "{90160000-008C-0000-0000-0000000FF1CE", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.IsInScope(tt.candidate))
		})
	}
}

func TestIsKnownPathPattern(t *testing.T) {
	c := Default()

	assert.True(t, c.IsKnownPathPattern(`C:\Program Files\Microsoft Office\root\Office16\WINWORD.EXE`))
	assert.True(t, c.IsKnownPathPattern(`c:\program files\common files\MICROSOFT SHARED\clicktorun\OfficeClickToRun.exe`))
	assert.True(t, c.IsKnownPathPattern(`C:\Program Files (x86)\Microsoft Office 15\ClientX64`))
	assert.True(t, c.IsKnownPathPattern(`C:\Program Files\Microsoft Office\PackageManifests\foo.xml`))
	assert.False(t, c.IsKnownPathPattern(`C:\Program Files\Microsoft Office\Office14\WINWORD.EXE`))
	assert.False(t, c.IsKnownPathPattern(""))
}

func TestInjectedTables(t *testing.T) {
	tables := DefaultTables()
	tables.ValidSKUs = []string{"0011"}
	tables.SpecialProducts = nil
	tables.VersionFloor = 15

	c, err := New(tables)
	require.NoError(t, err)

	assert.True(t, c.IsInScope("{90160000-0011-0000-0000-0000000FF1CE}"))
	assert.False(t, c.IsInScope("{90160000-007E-0000-0000-0000000FF1CE}"))
	assert.False(t, c.IsInScope("{90150000-0011-0000-0000-0000000FF1CE}"))
	assert.False(t, c.IsInScope("{6C1ADE97-24E1-4AE4-AEDD-86D3A209CE60}"))
}

func TestNewRejectsMalformedTables(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
	}{
		{"empty suffix", func(tb *Tables) { tb.FamilySuffix = "" }},
		{"short sku", func(tb *Tables) { tb.ValidSKUs = append(tb.ValidSKUs, "7E") }},
		{"short special product", func(tb *Tables) { tb.SpecialProducts = []string{"{6C1ADE97}"} }},
		{"version offset past end", func(tb *Tables) { tb.VersionOffset = 37 }},
		{"negative sku offset", func(tb *Tables) { tb.SKUOffset = -1 }},
		{"empty pattern", func(tb *Tables) { tb.KnownPathPatterns = []string{""} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := DefaultTables()
			tt.mutate(&tables)
			_, err := New(tables)
			assert.Error(t, err)
		})
	}
}
