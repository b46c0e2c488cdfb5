package scrub

import (
	"context"
	"strings"

	"github.com/spf13/afero"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/regview"
)

// TypeLibPath is the machine type-library registration root.
const TypeLibPath = `Software\Classes\TypeLib`

// typeLibPlatforms are the LCID\platform subkeys whose default value names the library file.
var typeLibPlatforms = []string{`0\Win32`, `9\Win32`, `0\Win64`, `9\Win64`}

// scrubTypeLibs removes registrations of the known Office type libraries
// whose library file no longer exists. A library root is removed once it has
// no versions left.
func (o *Orchestrator) scrubTypeLibs(_ context.Context, r *Report) {
	root := regview.Location{Hive: regview.LocalMachine, Path: TypeLibPath}
	for _, typeLib := range o.cfg.KnownTypeLibs {
		tl := root.Join(typeLib)
		if !o.view.Exists(tl) {
			continue
		}

		for _, ver := range o.view.SubKeyNames(tl) {
			verLoc := tl.Join(ver)
			out := Outcome{Region: RegionTypeLibs, Location: verLoc.String(), Identifier: typeLib, Action: ActionDeleteKey}
			if file, inUse := o.typeLibFilePresent(verLoc); inUse {
				out.Status, out.Detail = StatusSkipped, "library file present: "+file
				r.Add(out)
				continue
			}
			out.Status = boolStatus(o.view.DeleteKey(verLoc))
			r.Add(out)
		}

		if len(o.view.SubKeyNames(tl)) == 0 {
			r.Add(Outcome{Region: RegionTypeLibs, Location: tl.String(), Identifier: typeLib, Action: ActionDeleteKey, Status: boolStatus(o.view.DeleteKey(tl))})
		}
	}
}

func (o *Orchestrator) typeLibFilePresent(verLoc regview.Location) (string, bool) {
	for _, platform := range typeLibPlatforms {
		raw, ok := o.view.GetString(verLoc.Join(platform), "")
		if !ok || raw == "" {
			continue
		}
		file := libraryFile(config.ExpandPath(raw))
		if exists, _ := afero.Exists(o.files.Fs(), file); exists {
			return file, true
		}
	}
	return "", false
}

// libraryFile strips a trailing resource index such as `\3` from a
// registered library path by cutting three characters after the last dot.
func libraryFile(path string) string {
	dot := strings.LastIndexByte(path, '.')
	if dot < 0 || dot+4 >= len(path) {
		return path
	}
	return path[:dot+4]
}
