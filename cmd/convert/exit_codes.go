package main

import (
	"errors"
	"os"

	"github.com/dunamismax/pageflow/internal/domain"
)

// Exit codes for the convert CLI.
const (
	ExitSuccess = 0
	ExitGeneral = 1
	ExitUsage   = 2 // bad flags or unconvertible input
	ExitIO      = 3
	ExitTooling = 4 // missing capability or external tool failure
)

func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, domain.ErrCapabilityUnavailable) ||
		errors.Is(err, domain.ErrRenderTimeout) ||
		errors.Is(err, domain.ErrCompressionEngine) ||
		errors.Is(err, domain.ErrOfficeConversion) {
		return ExitTooling
	}

	if errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) ||
		errors.Is(err, ErrReadInput) ||
		errors.Is(err, ErrWriteOutput) {
		return ExitIO
	}

	if errors.Is(err, ErrUsage) || domain.IsUserError(err) {
		return ExitUsage
	}

	return ExitGeneral
}
