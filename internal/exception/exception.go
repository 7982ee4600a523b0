// Package exception implements the shared error context attached to an image.
//
// Pixel cache operations report recoverable failures twice: they return an
// error to the immediate caller and they throw a record into the image's
// Exception so that code further up (a filter, a server handler) can inspect
// what went wrong after the fact. An Exception is safe for concurrent use by
// the worker goroutines sharing an image.
package exception

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironsheep/pixel-cache/internal/logging"
)

// Severity classifies an exception. Values 300-399 are warnings, 400-699
// errors and 700 and above fatal errors.
type Severity int

const (
	Undefined Severity = 0

	Warning              Severity = 300
	ResourceLimitWarning Severity = 300
	CacheWarning         Severity = 345

	Error              Severity = 400
	ResourceLimitError Severity = 400
	OptionError        Severity = 410
	CacheError         Severity = 445
	ImageError         Severity = 465

	Fatal                   Severity = 700
	ResourceLimitFatalError Severity = 700
	CacheFatalError         Severity = 745
)

// IsWarning reports whether s is in the warning band.
func (s Severity) IsWarning() bool { return s >= Warning && s < Error }

// IsError reports whether s is an error or fatal error.
func (s Severity) IsError() bool { return s >= Error }

func (s Severity) String() string {
	switch s {
	case Undefined:
		return "Undefined"
	case CacheWarning:
		return "CacheWarning"
	case OptionError:
		return "OptionError"
	case CacheError:
		return "CacheError"
	case ImageError:
		return "ImageError"
	case CacheFatalError:
		return "CacheFatalError"
	}
	switch {
	case s >= Fatal:
		return "FatalError"
	case s >= Error:
		return "Error"
	case s >= Warning:
		return "Warning"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Record is one thrown exception.
type Record struct {
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
	Description string   `json:"description,omitempty"`
}

func (r Record) String() string {
	if r.Description == "" {
		return r.Reason
	}
	return r.Reason + " `" + r.Description + "'"
}

// RecordError is the error form of the most severe record in an Exception.
type RecordError struct {
	Record
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %s", e.Severity, e.Record.String())
}

// Exception accumulates thrown records.
type Exception struct {
	mu       sync.Mutex
	records  []Record
	severity Severity
}

// New returns an empty exception context.
func New() *Exception {
	return &Exception{}
}

// Throw records an exception and logs it.
func (e *Exception) Throw(severity Severity, reason, description string) {
	e.mu.Lock()
	e.records = append(e.records, Record{Severity: severity, Reason: reason, Description: description})
	if severity > e.severity {
		e.severity = severity
	}
	e.mu.Unlock()

	if severity.IsWarning() {
		logging.Logger().Warn(reason, "severity", severity.String(), "description", description)
	} else {
		logging.Logger().Error(reason, "severity", severity.String(), "description", description)
	}
}

// Throwf records an exception with a formatted description.
func (e *Exception) Throwf(severity Severity, reason, format string, args ...interface{}) {
	e.Throw(severity, reason, fmt.Sprintf(format, args...))
}

// Severity returns the most severe recorded severity, or Undefined.
func (e *Exception) Severity() Severity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.severity
}

// Len returns the number of recorded exceptions.
func (e *Exception) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.records)
}

// Records returns a copy of the recorded exceptions in throw order.
func (e *Exception) Records() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Record, len(e.records))
	copy(out, e.records)
	return out
}

// Messages returns the recorded exceptions formatted one per entry.
func (e *Exception) Messages() []string {
	records := e.Records()
	msgs := make([]string, len(records))
	for i, r := range records {
		msgs[i] = fmt.Sprintf("%s: %s", r.Severity, r)
	}
	return msgs
}

// String joins all messages with "; ".
func (e *Exception) String() string {
	return strings.Join(e.Messages(), "; ")
}

// Clear discards all records.
func (e *Exception) Clear() {
	e.mu.Lock()
	e.records = nil
	e.severity = Undefined
	e.mu.Unlock()
}

// Err returns nil when no error-band record was thrown, otherwise a *RecordError
// for the first record of the highest severity.
func (e *Exception) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.severity.IsError() {
		return nil
	}
	for _, r := range e.records {
		if r.Severity == e.severity {
			return &RecordError{Record: r}
		}
	}
	return nil
}

// Inherit appends the records of other to e.
func (e *Exception) Inherit(other *Exception) {
	if other == nil || other == e {
		return
	}
	records := other.Records()
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r)
		if r.Severity > e.severity {
			e.severity = r.Severity
		}
	}
}
