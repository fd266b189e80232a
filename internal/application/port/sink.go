package port

import "time"

type Sink interface {
	// Report block: a timestamped multi-line report followed by an empty line
	WriteReport(ts time.Time, text string) error
	// Normal newline (for logs)
	NewLine() error
}
