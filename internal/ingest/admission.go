package ingest

// admission.go enforces every rule an uploaded CSV must pass before any
// durable side effect occurs: extension, size, decodability, header shape,
// required columns, and row count. Checks run in a fixed order so failures
// are deterministic and cheap checks reject bad files before content is
// parsed.

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"sort"
	"strings"
)

// MaxFileSize is the admission ceiling for uploaded CSV files (5 MiB).
const MaxFileSize int64 = 5 * 1024 * 1024

// CanonicalFields are the four logical columns every upload must provide,
// in reporting order.
var CanonicalFields = []string{"email", "first_name", "last_name", "company"}

// columnSynonyms maps each canonical field to the source header names that
// satisfy it. Matching is case-insensitive on trimmed headers.
var columnSynonyms = map[string][]string{
	"email":      {"email", "e-mail", "email address", "email_address", "mail", "correo"},
	"first_name": {"first_name", "firstname", "first name", "given name", "given_name", "nombre"},
	"last_name":  {"last_name", "lastname", "last name", "surname", "family name", "family_name", "apellido"},
	"company":    {"company", "organization", "organisation", "org", "company name", "company_name", "empresa"},
}

// AdmissionResult is produced only when the file passed every check: all
// four canonical fields resolved and at least one data row present.
type AdmissionResult struct {
	// RowCount is the number of data rows, excluding the header.
	RowCount int
	// Fingerprint is the SHA-256 hex digest of the raw bytes. Recorded
	// for future content-based duplicate detection; the current duplicate
	// policy compares filenames only (see Coordinator).
	Fingerprint string
	// Encoding and Delimiter are the detected dialect.
	Encoding  string
	Delimiter rune
	// Columns maps each canonical field to the source header that
	// satisfied it.
	Columns map[string]string
	// Headers are all column names found in the file, in source order.
	Headers []string
}

// Validator runs the admission pipeline. The zero value is not usable;
// construct with NewValidator.
type Validator struct {
	maxFileSize int64
}

// NewValidator returns a Validator with the given size ceiling in bytes.
// A non-positive ceiling falls back to MaxFileSize.
func NewValidator(maxFileSize int64) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = MaxFileSize
	}
	return &Validator{maxFileSize: maxFileSize}
}

// Admit validates filename and raw content, returning a typed
// ValidationError on the first failed check. No collaborator is touched:
// admission is pure computation over the byte buffer.
func (v *Validator) Admit(filename string, raw []byte) (*AdmissionResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, validationErrorf(CodeInvalidExtension,
			"file must be a CSV file (.csv extension required)")
	}

	size := int64(len(raw))
	if size == 0 {
		return nil, validationErrorf(CodeEmptyFile, "file is empty")
	}
	if size > v.maxFileSize {
		return nil, validationErrorf(CodeFileTooLarge,
			"file size (%.2fMB) exceeds maximum allowed size (%dMB)",
			float64(size)/1024/1024, v.maxFileSize/1024/1024)
	}

	text, encName, ok := DecodeContent(raw)
	if !ok {
		return nil, validationErrorf(CodeUnreadableContent,
			"file encoding is not supported, use UTF-8 or a Latin-1 compatible encoding")
	}
	if strings.TrimSpace(text) == "" {
		return nil, validationErrorf(CodeNoContent, "CSV file is empty")
	}

	header, err := SniffHeader(raw)
	if err != nil {
		return nil, err
	}

	columns, missing := resolveColumns(header.Columns)
	if len(missing) > 0 {
		return nil, validationErrorf(CodeMissingRequiredColumns,
			"missing required columns: %s (found headers: %s)",
			strings.Join(missing, ", "), strings.Join(header.Columns, ", "))
	}

	rowCount, err := countDataRows(text, header.Delimiter)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(raw)

	return &AdmissionResult{
		RowCount:    rowCount,
		Fingerprint: hex.EncodeToString(digest[:]),
		Encoding:    encName,
		Delimiter:   header.Delimiter,
		Columns:     columns,
		Headers:     header.Columns,
	}, nil
}

// resolveColumns matches found headers against the synonym table. Returns
// the canonical->source mapping and the sorted list of canonical names
// that no header satisfied.
func resolveColumns(headers []string) (map[string]string, []string) {
	normalized := make(map[string]string, len(headers))
	for _, h := range headers {
		normalized[strings.ToLower(strings.TrimSpace(h))] = h
	}

	columns := make(map[string]string, len(CanonicalFields))
	var missing []string
	for _, field := range CanonicalFields {
		source, ok := matchSynonym(field, normalized)
		if !ok {
			missing = append(missing, field)
			continue
		}
		columns[field] = source
	}
	sort.Strings(missing)
	return columns, missing
}

func matchSynonym(field string, normalized map[string]string) (string, bool) {
	for _, syn := range columnSynonyms[field] {
		if source, ok := normalized[syn]; ok {
			return source, true
		}
	}
	return "", false
}

// countDataRows parses the full decoded body with the detected delimiter
// and counts records after the header. Quoted fields may span lines, so
// this uses a real CSV parse rather than counting newlines.
func countDataRows(text string, delim rune) (int, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return 0, validationErrorf(CodeUnreadableContent, "invalid CSV format: %v", err)
	}

	switch len(records) {
	case 0:
		return 0, validationErrorf(CodeNoRows, "CSV file has no rows")
	case 1:
		return 0, validationErrorf(CodeNoDataRows, "CSV file has no data rows (only header)")
	}
	return len(records) - 1, nil
}

// sanitizeFilename makes an original filename safe to embed in a blob key:
// spaces and path separators become underscores.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(name)
}
