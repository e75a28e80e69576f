// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file holds the fault taxonomy shared by the engine and its adapters.
// Faults wrap one of these sentinels, so callers classify them with errors.Is.
package model

import "errors"

var (
	// ErrAlreadyExists is returned when creating a name that is already registered.
	ErrAlreadyExists = errors.New("function already exists")

	// ErrNotFound is returned for any operation on an absent name.
	ErrNotFound = errors.New("function not found")

	// ErrInvalidDefinition covers source that does not compile, a missing entry
	// point, and structurally inconsistent signatures.
	ErrInvalidDefinition = errors.New("invalid function definition")

	// ErrEvaluation is returned when a per-point call fails or returns a
	// non-numeric result.
	ErrEvaluation = errors.New("evaluation error")

	// ErrSerialization covers reading or writing the persisted document.
	ErrSerialization = errors.New("serialization error")
)
