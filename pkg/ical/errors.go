package ical

import "fmt"

// ParseError reports that the codec could not decode input. Raw bytes are
// attached for diagnostics; per §7 callers may log them but must not
// persist them unless explicitly configured, since calendar data can carry
// personal information.
type ParseError struct {
	Message string
	Raw     []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ical: %s", e.Message)
}

func parseErrorf(raw []byte, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Raw: raw}
}
