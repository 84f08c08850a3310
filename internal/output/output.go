// Package output renders command and tool results as YAML or JSON.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mj1618/uibridge/internal/model"
	"gopkg.in/yaml.v3"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// ParseFormat accepts yaml or json, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatYAML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s (use yaml or json)", s)
}

// TreeResult is the output of get_ui_tree and the tree command.
type TreeResult struct {
	App       string           `yaml:"app,omitempty" json:"app,omitempty"`
	TS        int64            `yaml:"ts"            json:"ts"`
	StableIDs bool             `yaml:"stable_ids"    json:"stable_ids"`
	Count     int              `yaml:"count"         json:"count"`
	Elements  []model.FlatNode `yaml:"elements"      json:"elements"`
}

// NewTreeResult flattens t. A nil tree yields an empty element list.
func NewTreeResult(app string, t *model.Tree) TreeResult {
	res := TreeResult{App: app, TS: time.Now().Unix(), Elements: []model.FlatNode{}}
	if t == nil {
		return res
	}
	res.StableIDs = t.StableIDs
	if flat := model.Flatten(t); flat != nil {
		res.Elements = flat
	}
	res.Count = len(res.Elements)
	return res
}

// Print serializes v to stdout in the current output format.
func Print(v any) error {
	return Fprint(os.Stdout, v)
}

// Fprint serializes v to w in the current output format.
func Fprint(w io.Writer, v any) error {
	switch OutputFormat {
	case FormatJSON:
		return WriteJSON(w, v, PrettyOutput)
	case FormatYAML:
		return WriteYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// WriteJSON writes v as JSON, compact on one line unless pretty.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// WriteYAML writes v as block-style YAML.
func WriteYAML(w io.Writer, v any) error {
	node, err := toNode(v)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// YAML renders v as a YAML document string.
func YAML(v any) (string, error) {
	var buf bytes.Buffer
	if err := WriteYAML(&buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// toNode goes through JSON so that json tags name the keys and field
// order is kept, then clears the flow styles the JSON parse leaves.
func toNode(v any) (*yaml.Node, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yaml decode: %w", err)
	}
	blockStyle(&doc)
	return &doc, nil
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
