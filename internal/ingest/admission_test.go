package ingest

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const validCSV = "email,first_name,last_name,company\nalice@example.com,Alice,Smith,Acme\nbob@example.com,Bob,Jones,Initech\n"

func admitErrCode(t *testing.T, err error) string {
	t.Helper()
	var valErr *ValidationError
	if !errors.As(err, &valErr) {
		t.Fatalf("error %v (%T) is not a ValidationError", err, err)
	}
	return valErr.Code
}

func TestAdmitValidFile(t *testing.T) {
	res, err := NewValidator(0).Admit("contacts.csv", []byte(validCSV))
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}

	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}
	if res.Encoding != "utf-8" {
		t.Errorf("Encoding = %q, want utf-8", res.Encoding)
	}
	if res.Delimiter != ',' {
		t.Errorf("Delimiter = %q, want comma", res.Delimiter)
	}
	if len(res.Fingerprint) != 64 {
		t.Errorf("Fingerprint = %q, want 64 hex chars", res.Fingerprint)
	}
	for _, field := range CanonicalFields {
		if res.Columns[field] == "" {
			t.Errorf("Columns missing canonical field %q", field)
		}
	}
}

func TestAdmitRejections(t *testing.T) {
	big := "email,first_name,last_name,company\n" + strings.Repeat("x,x,x,x\n", 1<<20)

	tests := []struct {
		name     string
		filename string
		content  []byte
		wantCode string
	}{
		{
			name:     "wrong extension",
			filename: "contacts.xlsx",
			content:  []byte(validCSV),
			wantCode: CodeInvalidExtension,
		},
		{
			name:     "extension checked before content",
			filename: "empty.txt",
			content:  nil,
			wantCode: CodeInvalidExtension,
		},
		{
			name:     "empty file",
			filename: "contacts.csv",
			content:  nil,
			wantCode: CodeEmptyFile,
		},
		{
			name:     "oversized file",
			filename: "contacts.csv",
			content:  []byte(big),
			wantCode: CodeFileTooLarge,
		},
		{
			name:     "whitespace only",
			filename: "contacts.csv",
			content:  []byte("   \n\n  \t\n"),
			wantCode: CodeNoContent,
		},
		{
			name:     "missing required columns",
			filename: "contacts.csv",
			content:  []byte("email,phone\nalice@example.com,555\n"),
			wantCode: CodeMissingRequiredColumns,
		},
		{
			name:     "header only",
			filename: "contacts.csv",
			content:  []byte("email,first_name,last_name,company\n"),
			wantCode: CodeNoDataRows,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewValidator(0).Admit(tt.filename, tt.content)
			if err == nil {
				t.Fatal("Admit() accepted an invalid file")
			}
			if code := admitErrCode(t, err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestAdmitCaseInsensitiveExtension(t *testing.T) {
	if _, err := NewValidator(0).Admit("CONTACTS.CSV", []byte(validCSV)); err != nil {
		t.Errorf("Admit() rejected uppercase extension: %v", err)
	}
}

func TestAdmitConfiguredCeiling(t *testing.T) {
	content := []byte(validCSV)

	if _, err := NewValidator(int64(len(content))).Admit("contacts.csv", content); err != nil {
		t.Errorf("Admit() rejected file at the ceiling: %v", err)
	}

	_, err := NewValidator(int64(len(content)) - 1).Admit("contacts.csv", content)
	if code := admitErrCode(t, err); code != CodeFileTooLarge {
		t.Errorf("code = %q, want %q", code, CodeFileTooLarge)
	}
}

func TestAdmitSynonymHeaders(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "spanish headers",
			content: "correo;nombre;apellido;empresa\na@b.com;Ana;García;Acme\n",
		},
		{
			name:    "mixed case and spacing",
			content: "E-Mail, First Name , Surname, Organization\na@b.com,A,B,C\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewValidator(0).Admit("contacts.csv", []byte(tt.content))
			if err != nil {
				t.Fatalf("Admit() error: %v", err)
			}
			if len(res.Columns) != len(CanonicalFields) {
				t.Errorf("Columns = %v, want all canonical fields resolved", res.Columns)
			}
		})
	}
}

func TestAdmitMissingColumnsSorted(t *testing.T) {
	_, err := NewValidator(0).Admit("contacts.csv", []byte("email,first_name\na@b.com,A\n"))
	if err == nil {
		t.Fatal("Admit() accepted file without company and last_name")
	}

	msg := err.Error()
	company := strings.Index(msg, "company")
	lastName := strings.Index(msg, "last_name")
	if company == -1 || lastName == -1 {
		t.Fatalf("error %q does not name the missing columns", msg)
	}
	if company > lastName {
		t.Errorf("missing columns not sorted: %q", msg)
	}
}

func TestAdmitQuotedNewlines(t *testing.T) {
	content := "email,first_name,last_name,company\n" +
		"a@b.com,\"Alice\nMarie\",Smith,Acme\n" +
		"b@c.com,Bob,Jones,Initech\n"

	res, err := NewValidator(0).Admit("contacts.csv", []byte(content))
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	// The embedded newline is inside quotes; a newline count would say 3.
	if res.RowCount != 2 {
		t.Errorf("RowCount = %d, want 2", res.RowCount)
	}
}

func TestAdmitLatin1Content(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("email;first_name;last_name;company\n")
	buf.WriteString("a@b.com;Jos")
	buf.WriteByte(0xE9) // é in latin-1, invalid UTF-8
	buf.WriteString(";Garc")
	buf.WriteByte(0xED) // í
	buf.WriteString("a;Acme\n")

	res, err := NewValidator(0).Admit("contacts.csv", buf.Bytes())
	if err != nil {
		t.Fatalf("Admit() error: %v", err)
	}
	if res.Encoding != "windows-1252" {
		t.Errorf("Encoding = %q, want windows-1252", res.Encoding)
	}
	if res.RowCount != 1 {
		t.Errorf("RowCount = %d, want 1", res.RowCount)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"my contacts.csv", "my_contacts.csv"},
		{"a/b\\c.csv", "a_b_c.csv"},
		{"plain.csv", "plain.csv"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
