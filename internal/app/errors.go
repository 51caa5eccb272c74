package app

import "fmt"

// ErrEngine represents an engine startup error.
type ErrEngine struct {
	Driver string
	Cause  error
}

func (e *ErrEngine) Error() string {
	return fmt.Sprintf("%s engine error: %v", e.Driver, e.Cause)
}

func (e *ErrEngine) Unwrap() error {
	return e.Cause
}

// ErrQuery represents a query execution error.
type ErrQuery struct {
	Query string
	Cause error
}

func (e *ErrQuery) Error() string {
	return fmt.Sprintf("query error: %v", e.Cause)
}

func (e *ErrQuery) Unwrap() error {
	return e.Cause
}

// ErrLoad represents a failure to load rows into a table.
type ErrLoad struct {
	Table string
	Cause error
}

func (e *ErrLoad) Error() string {
	return fmt.Sprintf("load %s: %v", e.Table, e.Cause)
}

func (e *ErrLoad) Unwrap() error {
	return e.Cause
}

// ErrTableInfo represents a failure to describe a table.
type ErrTableInfo struct {
	Table string
	Cause error
}

func (e *ErrTableInfo) Error() string {
	return fmt.Sprintf("table info %s: %v", e.Table, e.Cause)
}

func (e *ErrTableInfo) Unwrap() error {
	return e.Cause
}

// ErrExport represents a failed chart or result export.
type ErrExport struct {
	Format string
	Cause  error
}

func (e *ErrExport) Error() string {
	return fmt.Sprintf("export %s: %v", e.Format, e.Cause)
}

func (e *ErrExport) Unwrap() error {
	return e.Cause
}

// ErrConfig represents a configuration error.
type ErrConfig struct {
	Cause error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error: %v", e.Cause)
}

func (e *ErrConfig) Unwrap() error {
	return e.Cause
}
