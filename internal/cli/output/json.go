package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter formats data as JSON. Indented output suits one-shot
// commands; Lines writes one compact document per line so a long-running
// command can be tailed and parsed line by line.
type JSONFormatter struct {
	Lines bool
}

// Format writes data followed by a newline. Nil data writes nothing.
// HTML characters are left as is since output goes to a terminal or a pipe.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !f.Lines {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}
