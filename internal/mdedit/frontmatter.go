package mdedit

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatter is the YAML block at the top of a document.
type FrontMatter struct {
	Keys      []string       `json:"keys"`
	Values    map[string]any `json:"values"`
	StartLine int            `json:"start_line"`
	EndLine   int            `json:"end_line"`

	closer string // closing delimiter, "---" or "..."
	node   *yaml.Node
}

func isFrontMatterDelim(line string, closing bool) bool {
	line = strings.TrimRight(line, " \t")
	if line == "---" {
		return true
	}
	return closing && line == "..."
}

// parseFrontMatter recognises a front matter block only when the first line
// is "---" and a closing delimiter follows.
func (d *Document) parseFrontMatter() {
	if d.LineCount < 1 || !isFrontMatterDelim(d.lineAt(1), false) {
		return
	}
	closing := 0
	for n := 2; n <= d.LineCount; n++ {
		if isFrontMatterDelim(d.lineAt(n), true) {
			closing = n
			break
		}
	}
	if closing == 0 {
		d.addDiag(SeverityWarning, 1, 1, DiagFrontMatterUnterminated,
			"document starts with --- but the front matter block is never closed")
		return
	}

	body := d.text[d.lineOffset(2):d.lineOffset(closing)]

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(body), &node); err != nil {
		d.fmInvalid = true
		d.addDiag(SeverityError, 2, 1, DiagFrontMatterInvalid, fmt.Sprintf("front matter is not valid YAML: %v", err))
		return
	}
	if node.Kind == 0 {
		node = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	if len(node.Content) != 1 || node.Content[0].Kind != yaml.MappingNode {
		d.fmInvalid = true
		d.addDiag(SeverityError, 2, 1, DiagFrontMatterInvalid, "front matter must be a YAML mapping")
		return
	}

	values := make(map[string]any)
	if err := node.Decode(&values); err != nil {
		d.fmInvalid = true
		d.addDiag(SeverityError, 2, 1, DiagFrontMatterInvalid, fmt.Sprintf("front matter could not be decoded: %v", err))
		return
	}

	mapping := node.Content[0]
	keys := make([]string, 0, len(mapping.Content)/2)
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		keys = append(keys, mapping.Content[i].Value)
	}

	// A rejected block stays part of the body; only a usable mapping is
	// carved out of the structure.
	d.fmEnd = d.lineOffset(closing + 1)
	d.FrontMatter = &FrontMatter{
		Keys:      keys,
		Values:    values,
		StartLine: 1,
		EndLine:   closing + 1,
		closer:    strings.TrimRight(d.lineAt(closing), " \t"),
		node:      &node,
	}
}

// mergeFrontMatter returns the rendered front matter block after applying
// set and remove to fm. A nil fm starts from an empty mapping. Existing keys
// keep their position; new keys are appended in sorted order.
func mergeFrontMatter(fm *FrontMatter, set map[string]any, remove []string) (string, error) {
	var doc *yaml.Node
	if fm != nil && fm.node != nil {
		doc = cloneNode(fm.node)
	} else {
		doc = &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	mapping := doc.Content[0]

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var value yaml.Node
		if err := value.Encode(set[k]); err != nil {
			return "", fmt.Errorf("encode front matter key %q: %w", k, err)
		}
		if idx := mappingIndex(mapping, k); idx >= 0 {
			value.HeadComment = mapping.Content[idx+1].HeadComment
			value.LineComment = mapping.Content[idx+1].LineComment
			mapping.Content[idx+1] = &value
			continue
		}
		keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
		mapping.Content = append(mapping.Content, keyNode, &value)
	}

	for _, k := range remove {
		if idx := mappingIndex(mapping, k); idx >= 0 {
			mapping.Content = append(mapping.Content[:idx], mapping.Content[idx+2:]...)
		}
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(mapping.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return "", fmt.Errorf("encode front matter: %w", err)
		}
	}
	closer := "---"
	if fm != nil && fm.closer != "" {
		closer = fm.closer
	}
	buf.WriteString(closer + "\n")
	return buf.String(), nil
}

func mappingIndex(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}
