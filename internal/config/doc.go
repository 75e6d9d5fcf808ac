// SPDX-License-Identifier: MPL-2.0

// Package config handles peru's tool configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/peru/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/peru/config.cue on macOS, %APPDATA%\peru\config.cue
// on Windows), or from the file named by PERU_CONFIG. PERU_FILE, PERU_DIR, PERU_CACHE
// and PERU_JOBS override individual fields.
//
// The file is validated against an embedded CUE schema (config_schema.cue) so that
// mistakes are reported with the path of the offending field.
package config
