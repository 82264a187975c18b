package output

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func (s sample) Table(wide bool) *Table {
	t := NewTable("NAME", "COUNT")
	if wide {
		t.Headers = append(t.Headers, "NOTE")
		t.AddRow(s.Name, strconv.Itoa(s.Count), "")
		return t
	}
	t.AddRow(s.Name, strconv.Itoa(s.Count))
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	tf, ok := NewFormatter("unknown", true).(*TableFormatter)
	if !ok || !tf.Wide {
		t.Errorf("expected wide TableFormatter, got %#v", tf)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, sample{Name: "a", Count: 2}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"name": "a"`) || !strings.Contains(buf.String(), `"count": 2`) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, []sample{{Name: "a", Count: 1}}); err != nil {
		t.Fatal(err)
	}
	want := "- name: a\n  count: 1\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTableFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, sample{Name: "alpha", Count: 3}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[1], "alpha") {
		t.Errorf("table = %q", buf.String())
	}

	buf.Reset()
	if err := (&TableFormatter{Wide: true, NoHeaders: true}).Format(&buf, sample{Name: "b", Count: 1}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "NAME") {
		t.Error("headers printed with NoHeaders")
	}
	if !strings.Contains(buf.String(), "-") {
		t.Errorf("empty wide cell not rendered as '-': %q", buf.String())
	}
}

func TestTableFormatter_Fallback(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, map[string]int{"k": 1}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"k": 1`) {
		t.Errorf("fallback output = %s", buf.String())
	}

	buf.Reset()
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("nil data: err=%v out=%q", err, buf.String())
	}
}

func TestTable_Alignment(t *testing.T) {
	tbl := NewTable("A", "B")
	tbl.AddRow("short", "1")
	tbl.AddRow("much-longer", "2")

	var buf bytes.Buffer
	if err := tbl.Render(&buf); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	col := strings.Index(lines[2], "2")
	if strings.Index(lines[1], "1") != col || strings.Index(lines[0], "B") != col {
		t.Errorf("columns not aligned:\n%s", buf.String())
	}
}
