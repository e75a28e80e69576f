// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model holds the records the registry stores and persists: the
// function Definition, its ordered Signature, its Parameters, the Patch used by
// updates, and the fault sentinels shared by every layer.
//
// The model has no behaviour beyond structural validation and copying. Source
// analysis lives in the signature package, compilation and evaluation in the
// evaluator package, and lifecycle in the registry package.
package model
