// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers build file fixtures (WriteFiles, MustMkdirAll) and inspect
// the results (ReadFile, Exists).
package testutil
