package category

import "testing"

func TestIsValid(t *testing.T) {
	for _, c := range All() {
		if !c.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", c)
		}
	}

	invalid := []Category{"", "medium", "SHORT_FORM", "2mark"}
	for _, c := range invalid {
		if c.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", c)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"short_form", ShortForm},
		{"2mark", ShortForm},
		{" 2-Mark ", ShortForm},
		{"short", ShortForm},
		{"long_form", LongForm},
		{"16mark", LongForm},
		{"16-MARK", LongForm},
		{"long", LongForm},
	}
	for _, tc := range tests {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "8mark", "essay"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}

func TestMarksAndLabel(t *testing.T) {
	if ShortForm.Marks() != 2 || ShortForm.Label() != "2-mark" {
		t.Errorf("ShortForm = (%d, %q)", ShortForm.Marks(), ShortForm.Label())
	}
	if LongForm.Marks() != 16 || LongForm.Label() != "16-mark" {
		t.Errorf("LongForm = (%d, %q)", LongForm.Marks(), LongForm.Label())
	}
	if Category("x").Marks() != 0 {
		t.Error("unknown category should have 0 marks")
	}
}
