// Copyright 2018-2019 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

// Package errors provides the error helpers shared by every package in the
// stack. It exists so call sites can write errors.Errorf the same way they
// write fmt.Errorf, without importing fmt directly everywhere.
package errors

import "fmt"

// Errorf formats an error, analogous to fmt.Errorf.
func Errorf(format string, a ...interface{}) error {
	return fmt.Errorf(format, a...)
}

// New returns an error with the given text.
func New(text string) error {
	return fmt.Errorf("%s", text)
}

// Wrap annotates err with msg. Returns nil if err is nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
