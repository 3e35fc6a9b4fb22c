package mdedit

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDecodeEdits(t *testing.T) {
	input := `[
		{"op": "replace_range", "range": {"start": {"line": 1, "col": 1}, "end": {"line": 1, "col": 3}}, "expected_text": "# ", "replacement": "## "},
		{"op": "replace_match", "pattern": "npm", "replacement": "yarn", "scope": {"heading_path": ["Install"]}, "expected_match_count": {"min": 1, "max": 2}, "match_selection": "first", "exclusions": {"inline_code": false}},
		{"op": "replace_section", "section_id": "s-abc", "new_markdown": "body", "keep_subsections": true},
		{"op": "insert_after_heading", "heading_path": ["A", "B"], "markdown": "x", "ensure_blank_line": true},
		{"op": "update_front_matter", "set": {"version": "2.0.0"}, "remove": ["draft"]}
	]`
	edits, err := DecodeEdits([]byte(input))
	if err != nil {
		t.Fatalf("DecodeEdits() error: %v", err)
	}
	if len(edits) != 5 {
		t.Fatalf("len = %d, want 5", len(edits))
	}

	rr := edits[0].(ReplaceRange)
	if rr.Range.End.Col != 3 || rr.ExpectedText == nil || *rr.ExpectedText != "# " {
		t.Errorf("replace_range = %+v", rr)
	}

	rm := edits[1].(ReplaceMatch)
	if rm.Scope == nil || rm.Scope.HeadingPath[0] != "Install" {
		t.Errorf("scope = %+v", rm.Scope)
	}
	if *rm.ExpectedMatchCount != (MatchCount{Min: 1, Max: 2}) {
		t.Errorf("expected_match_count = %+v", rm.ExpectedMatchCount)
	}
	if rm.MatchSelection.Kind != SelectFirst {
		t.Errorf("match_selection = %+v", rm.MatchSelection)
	}
	wantExcl := Exclusions{CodeBlocks: true, Tables: true}
	if *rm.Exclusions != wantExcl {
		t.Errorf("exclusions = %+v, want %+v", *rm.Exclusions, wantExcl)
	}

	rs := edits[2].(ReplaceSection)
	if rs.SectionID != "s-abc" || !rs.KeepSubsections {
		t.Errorf("replace_section = %+v", rs)
	}

	ia := edits[3].(InsertAfterHeading)
	if !reflect.DeepEqual(ia.HeadingPath, []string{"A", "B"}) || !ia.EnsureBlankLine {
		t.Errorf("insert_after_heading = %+v", ia)
	}

	uf := edits[4].(UpdateFrontMatter)
	if uf.Set["version"] != "2.0.0" || uf.Remove[0] != "draft" {
		t.Errorf("update_front_matter = %+v", uf)
	}
}

func TestDecodeEditErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  ErrorCode
	}{
		{"not an array", `{"op": "replace_match"}`, ErrInvalidEdit},
		{"missing op", `[{"pattern": "x"}]`, ErrInvalidEdit},
		{"unknown op", `[{"op": "delete_everything"}]`, ErrInvalidEdit},
		{"unknown field", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "occurrence": 2}]`, ErrInvalidEdit},
		{"field of another variant", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "new_markdown": "z"}]`, ErrInvalidEdit},
		{"empty pattern", `[{"op": "replace_match", "pattern": "", "replacement": "y"}]`, ErrInvalidEdit},
		{"bad match count", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "expected_match_count": "many"}]`, ErrInvalidEdit},
		{"negative match count", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "expected_match_count": -1}]`, ErrInvalidEdit},
		{"bad selection", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "match_selection": "middle"}]`, ErrInvalidEdit},
		{"unknown exclusion", `[{"op": "replace_match", "pattern": "x", "replacement": "y", "exclusions": ["images"]}]`, ErrInvalidEdit},
		{"no selector", `[{"op": "replace_section", "new_markdown": "z"}]`, ErrInvalidHeadingPath},
		{"empty path segment", `[{"op": "insert_after_heading", "heading_path": ["A", ""], "markdown": "x"}]`, ErrInvalidHeadingPath},
		{"empty front matter update", `[{"op": "update_front_matter"}]`, ErrInvalidEdit},
		{"inverted range", `[{"op": "replace_range", "range": {"start": {"line": 2, "col": 1}, "end": {"line": 1, "col": 1}}, "replacement": ""}]`, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEdits([]byte(tt.input))
			if err == nil {
				t.Fatal("DecodeEdits() succeeded, want error")
			}
			if code := AsError(err).Code; code != tt.code {
				t.Errorf("code = %s, want %s (%v)", code, tt.code, err)
			}
		})
	}
}

func TestDecodeEditsReportsIndex(t *testing.T) {
	_, err := DecodeEdits([]byte(`[{"op": "update_front_matter", "set": {"a": 1}}, {"op": "nope"}]`))
	if e := AsError(err); e == nil || e.EditIndex != 1 {
		t.Fatalf("err = %v, want edit index 1", err)
	}
}

func TestEncodeEdit(t *testing.T) {
	in := ReplaceMatch{Pattern: "a", Replacement: "b", ExpectedMatchCount: Exactly(2), MatchSelection: MatchSelection{Kind: SelectIndex, Index: 2}}
	data, err := EncodeEdit(in)
	if err != nil {
		t.Fatalf("EncodeEdit() error: %v", err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		t.Fatalf("invalid JSON %s: %v", data, err)
	}
	if string(probe["op"]) != `"replace_match"` {
		t.Errorf("op = %s", probe["op"])
	}
	out, err := DecodeEdit(data)
	if err != nil {
		t.Fatalf("DecodeEdit(%s) error: %v", data, err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("decoded %+v, want %+v", out, in)
	}
}

func TestExclusionsArrayAddsToDefaults(t *testing.T) {
	var x Exclusions
	if err := json.Unmarshal([]byte(`["links"]`), &x); err != nil {
		t.Fatal(err)
	}
	want := Exclusions{CodeBlocks: true, InlineCode: true, Tables: true, LinkDestinations: true}
	if x != want {
		t.Errorf("exclusions = %+v, want %+v", x, want)
	}
}
