// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared CUE validation helpers.
//
// Schemas are embedded CUE files. ParseAndDecode handles CUE input files;
// Validate handles documents already decoded from another format, such as
// peru.yaml read with yaml.v3:
//
//	//go:embed perufile_schema.cue
//	var schemaBytes []byte
//
//	if err := cueutil.Validate(schemaBytes, "#Project", doc,
//	    cueutil.WithFilename("peru.yaml")); err != nil {
//	    return err // includes the CUE path of the offending field
//	}
package cueutil
