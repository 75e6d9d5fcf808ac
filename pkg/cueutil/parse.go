// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseResult contains the result of a successful CUE parse operation.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T

	// Unified is the unified CUE value.
	Unified cue.Value
}

// ParseAndDecode performs the 3-step CUE parsing flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// schemaPath names the root definition (e.g. "#Config").
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := resolve(opts)
	if err := CheckFileSize(data, options.maxFileSize, options.filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()
	root, err := schemaRoot(ctx, schema, schemaPath)
	if err != nil {
		return nil, err
	}

	userValue := ctx.CompileBytes(data, cue.Filename(options.filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), options.filename)
	}

	unified := root.Unify(userValue)
	if err := unified.Validate(cue.Concrete(options.concrete)); err != nil {
		return nil, FormatError(err, options.filename)
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, options.filename)
	}

	return &ParseResult[T]{
		Value:   &result,
		Unified: unified,
	}, nil
}

// ParseAndDecodeString is a convenience wrapper that accepts schema as string.
func ParseAndDecodeString[T any](schema string, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	return ParseAndDecode[T]([]byte(schema), data, schemaPath, opts...)
}

// Validate checks an already-decoded Go value (for example a document read
// from YAML) against the schema definition at schemaPath. The value is
// encoded to CUE first, so maps, slices, strings and numbers are supported.
func Validate(schema []byte, schemaPath string, value any, opts ...Option) error {
	options := resolve(opts)

	ctx := cuecontext.New()
	root, err := schemaRoot(ctx, schema, schemaPath)
	if err != nil {
		return err
	}

	encoded := ctx.Encode(value)
	if encoded.Err() != nil {
		return FormatError(encoded.Err(), options.filename)
	}

	if err := root.Unify(encoded).Validate(cue.Concrete(options.concrete)); err != nil {
		return FormatError(err, options.filename)
	}
	return nil
}

func resolve(opts []Option) options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.filename == "" {
		options.filename = "<input>"
	}
	return options
}

func schemaRoot(ctx *cue.Context, schema []byte, schemaPath string) (cue.Value, error) {
	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}
	root := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, root.Err())
	}
	return root, nil
}
