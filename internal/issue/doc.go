// SPDX-License-Identifier: MPL-2.0

// Package issue defines the user-facing error tier of peru.
//
// Errors from this package carry a message meant for the person at the
// terminal. The CLI prints them (in red on a terminal) and exits with status
// 1. Any other error is treated as an internal failure.
package issue
