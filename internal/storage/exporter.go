package storage

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/IshaanNene/wxscrape/internal/types"
)

// Exporter serializes a run's records into an in-memory file.
type Exporter interface {
	// Export writes a header row plus one row per record, in order.
	Export(records []types.ArticleRecord) (*bytes.Buffer, error)

	// ContentType returns the MIME type of the produced file.
	ContentType() string

	// Extension returns the file extension without the dot.
	Extension() string
}

// NewExporter creates the exporter for the given format.
func NewExporter(format, sheetName string) (Exporter, error) {
	switch format {
	case "xlsx", "":
		return NewXLSXExporter(sheetName), nil
	case "csv":
		return NewCSVExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// TimestampLayout is the YYYYMMDDHHMMSS layout used in file names.
const TimestampLayout = "20060102150405"

var unsafeName = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// FileName returns <label>_<keyword>_<YYYYMMDDHHMMSS>.<ext>. Characters that
// are not allowed in file names are replaced in the keyword.
func FileName(label, keyword, ext string, t time.Time) string {
	kw := unsafeName.Replace(strings.Join(strings.Fields(keyword), "_"))
	return fmt.Sprintf("%s_%s_%s.%s", label, kw, t.Format(TimestampLayout), ext)
}
