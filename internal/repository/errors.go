// Package repository defines the storage interfaces used by the service
// layer, the sentinel errors they return, and their database/sql
// implementation. Sentinels let higher layers distinguish failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrStaleState is returned by conditional updates when the row exists but
// is no longer in the expected state, typically because a concurrent
// transaction changed it first.
var ErrStaleState = errors.New("stale state")

// ErrInvalidTransition is returned when an item status change is not one
// of the permitted edges.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInsufficientBalance is returned when a balance adjustment would make
// the balance negative. The balance is left unchanged.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")
