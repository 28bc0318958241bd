// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "io/fs"

// ErrNotFound is returned when a stored item doesn't exist.
// Use errors.Is(err, ErrNotFound) to check for this error; it also matches
// fs.ErrNotExist.
var ErrNotFound = &StoreError{Message: "not found"}

// ErrInvalidID is returned for session IDs that cannot name a file.
var ErrInvalidID = &StoreError{Message: "invalid id"}

// StoreError represents a storage-related error.
type StoreError struct {
	Message string
	// Path or ID the error refers to, if any
	Item string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Item != "" {
		return e.Item + ": " + e.Message
	}
	return e.Message
}

// Is implements errors.Is support for comparing storage errors.
func (e *StoreError) Is(target error) bool {
	if target == fs.ErrNotExist {
		return e.Message == ErrNotFound.Message
	}
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(item string) error {
	return &StoreError{Message: ErrNotFound.Message, Item: item}
}
