package ingest

// sniffer.go detects the text encoding and field delimiter of an uploaded
// CSV and extracts its header row. Detection is an ordered trial: each
// candidate is tried in a fixed preference order and the first structurally
// valid result wins. For files capped at a few megabytes this beats scoring
// every candidate and picking the best.

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Header is the outcome of encoding and delimiter detection.
type Header struct {
	// Columns are the trimmed, non-empty column names of the first line,
	// in source order.
	Columns []string
	// Encoding is the name of the encoding that decoded the bytes.
	Encoding string
	// Delimiter is the field separator the columns were split on.
	Delimiter rune
}

// candidateDelimiters in preference order. Semicolon first: the primary
// CSV dialect in this domain is European/semicolon-separated.
var candidateDelimiters = []rune{';', ',', '\t'}

// legacyEncodings tried after UTF-8, in order.
var legacyEncodings = []struct {
	name    string
	charmap *charmap.Charmap
}{
	{"windows-1252", charmap.Windows1252},
	{"iso-8859-1", charmap.ISO8859_1},
}

// DecodeContent decodes raw bytes using the first encoding that accepts
// them: UTF-8, then the fixed legacy single-byte list. There is no
// content-based encoding sniffing. The returned text has a leading BOM
// stripped. ok is false when no supported encoding decodes the bytes.
func DecodeContent(raw []byte) (text, encodingName string, ok bool) {
	if utf8.Valid(raw) {
		return strings.TrimPrefix(string(raw), "\uFEFF"), "utf-8", true
	}
	for _, enc := range legacyEncodings {
		decoded, err := decodeWith(enc.charmap.NewDecoder(), raw)
		if err != nil {
			continue
		}
		return decoded, enc.name, true
	}
	return "", "", false
}

func decodeWith(dec *encoding.Decoder, raw []byte) (string, error) {
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// SniffHeader detects encoding and delimiter for raw CSV bytes and returns
// the normalized header. It fails with a HeaderDetectionFailed validation
// error only when no attempt yields any column.
func SniffHeader(raw []byte) (*Header, error) {
	text, encName, ok := DecodeContent(raw)
	if !ok {
		return nil, validationErrorf(CodeHeaderDetectionFailed,
			"could not decode file content with any supported encoding")
	}

	line := firstLine(text)

	for _, delim := range candidateDelimiters {
		cols := splitHeaderLine(line, delim)
		// A delimiter is only trusted when it produces more than one
		// column and none of the columns contain a competing delimiter.
		// This rejects delimiter/content collisions, e.g. a comma file
		// whose quoted values contain semicolons.
		if len(cols) > 1 && consistentColumns(cols, delim) {
			return &Header{Columns: cols, Encoding: encName, Delimiter: delim}, nil
		}
	}

	// Last resort: comma with no consistency check. May still yield a
	// degenerate single-column header.
	cols := splitHeaderLine(line, ',')
	if len(cols) == 0 {
		return nil, validationErrorf(CodeHeaderDetectionFailed,
			"could not detect any column names in the first line")
	}
	return &Header{Columns: cols, Encoding: encName, Delimiter: ','}, nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSuffix(text, "\r")
}

// splitHeaderLine splits on delim, trims whitespace, and drops empty tokens.
func splitHeaderLine(line string, delim rune) []string {
	parts := strings.Split(line, string(delim))
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.Trim(strings.TrimSpace(p), `"`))
		if p != "" {
			cols = append(cols, p)
		}
	}
	return cols
}

// consistentColumns reports whether no column contains one of the other
// candidate delimiters.
func consistentColumns(cols []string, delim rune) bool {
	for _, other := range candidateDelimiters {
		if other == delim {
			continue
		}
		for _, c := range cols {
			if strings.ContainsRune(c, other) {
				return false
			}
		}
	}
	return true
}
