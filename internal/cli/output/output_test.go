package output

import (
	"bytes"
	"strings"
	"testing"
)

type pair struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func (p pair) Table() *Table {
	t := NewTable("NAME", "COUNT")
	t.AddRow(p.Name, "n/a")
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestTableFormatter(t *testing.T) {
	tbl := NewTable("ACTOR", "DAYS")
	tbl.AddRow("xasd", "2")
	tbl.AddRow("xasd2", "")

	var buf bytes.Buffer
	if err := NewFormatter(FormatTable).Format(&buf, tbl); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "ACTOR") || !strings.HasSuffix(lines[2], "-") {
		t.Errorf("unexpected table:\n%s", buf.String())
	}

	buf.Reset()
	f := &TableFormatter{NoHeaders: true}
	if err := f.Format(&buf, pair{Name: "a"}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if strings.Contains(buf.String(), "NAME") || !strings.Contains(buf.String(), "n/a") {
		t.Errorf("Tabler output = %q", buf.String())
	}

	buf.Reset()
	if err := f.Format(&buf, map[string]int{"k": 1}); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"k": 1`) {
		t.Errorf("fallback output = %q", buf.String())
	}
}

func TestStructuredFormatters(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFormatter(FormatJSON).Format(&buf, pair{Name: "a", Count: 2}); err != nil {
		t.Fatalf("json: %v", err)
	}
	if !strings.Contains(buf.String(), `"count": 2`) {
		t.Errorf("json output = %q", buf.String())
	}

	buf.Reset()
	if err := NewFormatter(FormatYAML).Format(&buf, pair{Name: "a", Count: 2}); err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if buf.String() != "name: a\ncount: 2\n" {
		t.Errorf("yaml output = %q", buf.String())
	}
}
