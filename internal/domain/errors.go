// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict indicates two writers raced for the same
// (request, artifact kind, version) slot. The loser must recompute.
var ErrVersionConflict = errors.New("version conflict")

// ErrDependencyUnsatisfied indicates a step was scheduled before all of
// its dependencies reached a terminal successful state.
var ErrDependencyUnsatisfied = errors.New("dependency unsatisfied")

// ErrOracleTimeout indicates a reasoning oracle call exceeded its bounded timeout.
var ErrOracleTimeout = errors.New("oracle timeout")

// ErrMalformedPlan indicates the plan failed structural validation and
// cannot be executed. This is a caller fault, not a step failure.
var ErrMalformedPlan = errors.New("malformed plan")
