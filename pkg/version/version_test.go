package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionDefaults(t *testing.T) {
	v := Version()
	assert.Equal(t, "c2rscrub", v.AppName)
	assert.Equal(t, runtime.Version(), v.GoVersion)
	assert.Equal(t, "c2rscrub "+v.Version, v.String())
}

func TestPrintFull(t *testing.T) {
	var buf bytes.Buffer
	PrintFull(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "c2rscrub "))
	assert.Contains(t, buf.String(), "go version: \t"+runtime.Version())
}
