// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/conclave/internal/config"
	"github.com/xkilldash9x/conclave/internal/society/models"
)

// Supported output formats.
const (
	FormatText = config.FormatText
	FormatJSON = config.FormatJSON
	FormatNone = config.FormatNone
)

// Reporter is a report sink that owns an output stream.
type Reporter interface {
	models.ReportSink
	// Close flushes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter based on the specified format and output path. An
// empty path or "stdout" writes to standard output.
func New(format, outputPath string) (Reporter, error) {
	if format == FormatNone {
		return discard{}, nil
	}

	var writer io.WriteCloser
	isStdOut := outputPath == "" || outputPath == "stdout"

	if isStdOut {
		// Wrap Stdout so Close() is a no-op.
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	switch format {
	case FormatText:
		return NewTextReporter(writer), nil
	case FormatJSON:
		return NewJSONReporter(writer), nil
	default:
		if !isStdOut {
			writer.Close()
		}
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

type discard struct {
	models.NopSink
}

func (discard) Close() error { return nil }
