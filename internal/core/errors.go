package core

import (
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
)

// Message prefixes the CLI maps to exit codes. Keep them stable.
const (
	msgResolutionFailed   = "no local manifest found"
	msgDependencyNotFound = "dependency not found"
	msgSwapNotFound       = "swap not found"
	msgUnitNotFound       = "build unit not found"
	msgAlreadySwapped     = "dependency already swapped"
)

func errResolutionFailed(dependency string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s for %s", msgResolutionFailed, dependency))
}

func errDependencyNotFound(unit string, dependency string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s: %s in %s", msgDependencyNotFound, dependency, unit))
}

func errSwapNotFound(unit string, dependency string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s: %s in %s", msgSwapNotFound, dependency, unit))
}

func errUnitNotFound(unit string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s: %s", msgUnitNotFound, unit))
}

func errAlreadySwapped(unit string, dependency string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeAlreadyExists).
		WithMsg(fmt.Sprintf("%s: %s in %s", msgAlreadySwapped, dependency, unit))
}

func errRequired(field string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(field + " is required")
}
