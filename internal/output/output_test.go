package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mj1618/uibridge/internal/model"
	"gopkg.in/yaml.v3"
)

type payload struct {
	FrameTimeMs float64 `json:"frame_time_ms"`
	Label       string  `json:"label,omitempty"`
	Items       []int   `json:"items"`
}

func sampleTree() *model.Tree {
	app := model.Node{ID: 1, Role: "application", Label: "Demo", Children: []uint64{2}}
	parent := uint64(1)
	ok := model.Node{ID: 2, Role: "button", Label: "OK", Parent: &parent,
		Bounds: &model.Bounds{X: 10, Y: 20, Width: 100, Height: 30}}
	return model.NewTree([]model.Node{app, ok}, true)
}

func TestYAMLUsesJSONNamesInOrder(t *testing.T) {
	out, err := YAML(payload{FrameTimeMs: 16.5, Items: []int{1, 2}})
	if err != nil {
		t.Fatal(err)
	}
	want := "frame_time_ms: 16.5\nitems:\n  - 1\n  - 2\n"
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}
}

func TestYAMLIsBlockStyle(t *testing.T) {
	out, err := YAML(NewTreeResult("Demo", sampleTree()))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "{") || strings.Contains(out, "[") {
		t.Errorf("expected block style, got:\n%s", out)
	}
	var decoded TreeResult
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v", err)
	}
	if decoded.Count != 2 || len(decoded.Elements) != 2 {
		t.Errorf("count: got %d/%d, want 2", decoded.Count, len(decoded.Elements))
	}
	if decoded.Elements[1].Label != "OK" {
		t.Errorf("label: got %q, want %q", decoded.Elements[1].Label, "OK")
	}
}

func TestNewTreeResultNil(t *testing.T) {
	res := NewTreeResult("", nil)
	if res.Elements == nil || res.Count != 0 {
		t.Errorf("got %+v, want empty non-nil elements", res)
	}
}

func TestWriteJSON(t *testing.T) {
	var compact, pretty bytes.Buffer
	if err := WriteJSON(&compact, payload{Label: "<a>"}, false); err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(&pretty, payload{Label: "<a>"}, true); err != nil {
		t.Fatal(err)
	}
	if bytes.Count(compact.Bytes(), []byte("\n")) != 1 {
		t.Errorf("compact JSON should be one line, got %q", compact.String())
	}
	if !strings.Contains(compact.String(), "<a>") {
		t.Errorf("HTML should not be escaped, got %q", compact.String())
	}
	if bytes.Count(pretty.Bytes(), []byte("\n")) <= 1 {
		t.Errorf("pretty JSON should be multi-line, got %q", pretty.String())
	}
	var p payload
	if err := json.Unmarshal(pretty.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
}

func TestFprintFollowsFormat(t *testing.T) {
	defer func(f Format) { OutputFormat = f }(OutputFormat)

	OutputFormat = FormatJSON
	var buf bytes.Buffer
	if err := Fprint(&buf, payload{Label: "x"}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("got %q, want JSON", buf.String())
	}

	OutputFormat = "xml"
	if err := Fprint(&buf, payload{}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" JSON "); err != nil || f != FormatJSON {
		t.Errorf("got %q, %v", f, err)
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Error("expected error")
	}
}
