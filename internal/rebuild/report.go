package rebuild

import (
	"fmt"
	"strings"
)

// Caps keeping error reports presentable.
const (
	MaxAreaMessages    = 400
	MaxFileMessages    = 400
	MaxMessagesPerArea = 400
)

// FileError is a failure reading one scenery file.
type FileError struct {
	Path    string
	Message string
}

// AreaErrors collects the failures of one scenery area.
type AreaErrors struct {
	Title    string
	Path     string
	Messages []string
	Files    []FileError
}

// LoadErrors aggregates loader failures per scenery area and file.
type LoadErrors struct {
	Areas []AreaErrors
	// Cause is the error which stopped the load, if any.
	Cause error
}

func (e *LoadErrors) Error() string {
	n := 0
	for _, a := range e.Areas {
		n += len(a.Messages) + len(a.Files)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loading scenery failed: %v (%d errors in %d areas)", e.Cause, n, len(e.Areas))
	}
	return fmt.Sprintf("loading scenery failed: %d errors in %d areas", n, len(e.Areas))
}

func (e *LoadErrors) Unwrap() error { return e.Cause }

// Empty reports whether nothing was collected.
func (e *LoadErrors) Empty() bool { return e == nil || (len(e.Areas) == 0 && e.Cause == nil) }

// AddArea starts a new scenery area and returns it for appending.
func (e *LoadErrors) AddArea(title, path string) *AreaErrors {
	e.Areas = append(e.Areas, AreaErrors{Title: title, Path: path})
	return &e.Areas[len(e.Areas)-1]
}

// Report renders the errors as lines, capped per category.
func (e *LoadErrors) Report() []string {
	if e == nil {
		return nil
	}
	var lines []string
	if e.Cause != nil {
		lines = append(lines, "Error: "+e.Cause.Error())
	}
	for i, area := range e.Areas {
		if i >= MaxAreaMessages {
			lines = append(lines, "More scenery entries ...")
			break
		}
		lines = append(lines, "Scenery Title: "+area.Title)
		for j, msg := range area.Messages {
			if j >= MaxMessagesPerArea {
				lines = append(lines, "More messages ...")
				break
			}
			lines = append(lines, msg)
		}
		for j, f := range area.Files {
			if j >= MaxFileMessages {
				lines = append(lines, "More files ...")
				break
			}
			lines = append(lines, fmt.Sprintf("File: %q Error: %s", f.Path, f.Message))
		}
	}
	return lines
}

// String joins the report lines.
func (e *LoadErrors) String() string { return strings.Join(e.Report(), "\n") }
