package scrub

import (
	"context"

	"github.com/windowsadmins/c2rscrub/pkg/guid"
	"github.com/windowsadmins/c2rscrub/pkg/regview"
)

// Installer registry roots.
const (
	UpgradeCodesPath        = `SOFTWARE\Microsoft\Windows\CurrentVersion\Installer\UpgradeCodes`
	SystemProductsPath      = `SOFTWARE\Microsoft\Windows\CurrentVersion\Installer\UserData\S-1-5-18\Products`
	ClassesProductsPath     = `Installer\Products`
	SystemComponentsPath    = `SOFTWARE\Microsoft\Windows\CurrentVersion\Installer\UserData\S-1-5-18\Components`
	PublishedComponentsPath = `Installer\Components`
)

// inScopeCompressed expands a compressed key or value name and classifies it.
func (o *Orchestrator) inScopeCompressed(name string) (string, bool) {
	if len(name) != guid.CompressedLen {
		return "", false
	}
	expanded, ok := guid.Expand(name)
	if !ok {
		return "", false
	}
	return expanded, o.classifier.IsInScope(expanded)
}

// scrubKeysUnder deletes every child of root whose compressed name is in scope.
func (o *Orchestrator) scrubKeysUnder(region Region, root regview.Location, r *Report) {
	for _, name := range o.view.SubKeyNames(root) {
		if len(name) != guid.CompressedLen {
			continue
		}
		expanded, ok := o.inScopeCompressed(name)
		out := Outcome{Region: region, Location: root.Join(name).String(), Identifier: expanded, Action: ActionDeleteKey}
		if !ok {
			out.Status = StatusSkipped
			r.Add(out)
			continue
		}
		out.Status = boolStatus(o.view.DeleteKey(root.Join(name)))
		r.Add(out)
	}
}

func (o *Orchestrator) scrubUpgradeCodes(_ context.Context, r *Report) {
	o.scrubKeysUnder(RegionUpgradeCodes, regview.Location{Hive: regview.LocalMachine, Path: UpgradeCodesPath}, r)
}

func (o *Orchestrator) scrubProducts(_ context.Context, r *Report) {
	o.scrubKeysUnder(RegionProducts, regview.Location{Hive: regview.LocalMachine, Path: SystemProductsPath}, r)
	o.scrubKeysUnder(RegionProducts, regview.Location{Hive: regview.ClassesRoot, Path: ClassesProductsPath}, r)
}

// scrubComponents removes the product-code values that register an in-scope
// product as a client of each component.
func (o *Orchestrator) scrubComponents(_ context.Context, r *Report) {
	root := regview.Location{Hive: regview.LocalMachine, Path: SystemComponentsPath}
	for _, component := range o.view.SubKeyNames(root) {
		if len(component) != guid.CompressedLen {
			continue
		}
		loc := root.Join(component)
		for _, value := range o.view.ValueNames(loc) {
			if len(value) != guid.CompressedLen {
				continue
			}
			expanded, ok := o.inScopeCompressed(value)
			out := Outcome{Region: RegionComponents, Location: loc.String() + " [" + value + "]", Identifier: expanded, Action: ActionDeleteValue}
			if !ok {
				out.Status = StatusSkipped
				r.Add(out)
				continue
			}
			out.Status = boolStatus(o.view.DeleteValue(loc, value))
			r.Add(out)
		}
	}
}

// scrubPublishedComponents drops in-scope entries from the qualifier lists of
// published components. Each entry begins with the packed product code.
func (o *Orchestrator) scrubPublishedComponents(_ context.Context, r *Report) {
	root := regview.Location{Hive: regview.ClassesRoot, Path: PublishedComponentsPath}
	for _, component := range o.view.SubKeyNames(root) {
		if len(component) != guid.CompressedLen {
			continue
		}
		loc := root.Join(component)
		for _, value := range o.view.ValueNames(loc) {
			location := loc.String() + " [" + value + "]"
			kept := make(map[string]struct{})
			dropped, ok := o.view.FilterStrings(loc, value, func(entry string) bool {
				if o.publishedInScope(entry) {
					return false
				}
				kept[entry] = struct{}{}
				return true
			})
			for _, entry := range dropped {
				product, _ := guid.DecodePacked(entry[:guid.PackedLen])
				r.Add(Outcome{Region: RegionPublishedComponents, Location: location, Identifier: product, Action: ActionFilterList, Status: StatusDeleted})
			}
			if !ok {
				r.Add(Outcome{Region: RegionPublishedComponents, Location: location, Action: ActionFilterList, Status: StatusFailed, Detail: "list could not be rewritten"})
			}
			r.Counts.Skipped += len(kept)
		}
	}
}

func (o *Orchestrator) publishedInScope(entry string) bool {
	if len(entry) <= guid.PackedLen {
		return false
	}
	product, ok := guid.DecodePacked(entry[:guid.PackedLen])
	return ok && o.classifier.IsInScope(product)
}
