//go:build !windows

package main

import (
	"errors"

	"github.com/windowsadmins/c2rscrub/pkg/config"
	"github.com/windowsadmins/c2rscrub/pkg/scope"
	"github.com/windowsadmins/c2rscrub/pkg/scrub"
)

func patchArgs() {}

func newOrchestrator(*config.Configuration, *scope.Classifier, bool) (*scrub.Orchestrator, error) {
	return nil, errors.New("scrubbing requires Windows; only --decode, --show-config and --version work here")
}
