package validation

import "testing"

func TestValidateRequired(t *testing.T) {
	v := New()
	cases := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{"present", "A1a", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateRequired(tc.field, "lineage_code")
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateRequired(%q) error = %v, wantErr %v", tc.field, err, tc.wantErr)
			}
		})
	}
}

func TestValidateStringLength(t *testing.T) {
	v := New()
	cases := []struct {
		name     string
		field    string
		min, max int
		wantErr  bool
	}{
		{"within bounds", "hello", 1, 10, false},
		{"too short", "h", 2, 10, true},
		{"too long", "hello world", 1, 5, true},
		{"unbounded max", "hello world this is long", 1, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateStringLength(tc.field, "description", tc.min, tc.max)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateStringLength(%q) error = %v, wantErr %v", tc.field, err, tc.wantErr)
			}
		})
	}
}

func TestValidateOneOf(t *testing.T) {
	v := New()
	allowed := []string{"temperature_shift", "sea_level_rise", "predator_introduction"}

	if err := v.ValidateOneOf("temperature_shift", "kind", allowed); err != nil {
		t.Fatalf("expected allowed value to pass, got %v", err)
	}
	if err := v.ValidateOneOf("", "kind", allowed); err != nil {
		t.Fatalf("expected empty optional value to pass, got %v", err)
	}
	if err := v.ValidateOneOf("meteor_strike", "kind", allowed); err == nil {
		t.Fatal("expected disallowed value to fail")
	}
}

func TestValidatePositiveInt(t *testing.T) {
	v := New()
	if err := v.ValidatePositiveInt(5, "rounds"); err != nil {
		t.Fatalf("expected positive int to pass, got %v", err)
	}
	if err := v.ValidatePositiveInt(0, "rounds"); err == nil {
		t.Fatal("expected zero to fail")
	}
	if err := v.ValidatePositiveInt(-1, "rounds"); err == nil {
		t.Fatal("expected negative to fail")
	}
}

func TestValidateIntRange(t *testing.T) {
	v := New()
	cases := []struct {
		name     string
		value    int
		min, max int
		wantErr  bool
	}{
		{"within range", 16, 1, 32, false},
		{"at min", 1, 1, 32, false},
		{"at max", 32, 1, 32, false},
		{"below min", 0, 1, 32, true},
		{"above max", 33, 1, 32, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.ValidateIntRange(tc.value, "rounds", tc.min, tc.max)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateIntRange(%d) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
		})
	}
}

func TestValidateFloatRange(t *testing.T) {
	v := New()
	if err := v.ValidateFloatRange(5.5, "intensity", 0, 10); err != nil {
		t.Fatalf("expected in-range value to pass, got %v", err)
	}
	if err := v.ValidateFloatRange(-0.1, "intensity", 0, 10); err == nil {
		t.Fatal("expected below-min value to fail")
	}
	if err := v.ValidateFloatRange(10.1, "intensity", 0, 10); err == nil {
		t.Fatal("expected above-max value to fail")
	}
}

func TestValidateLineageCode(t *testing.T) {
	v := New()
	for _, code := range []string{"A1", "A1a", "A1a2", "Z9z"} {
		if err := v.ValidateLineageCode(code, "lineage_code"); err != nil {
			t.Fatalf("expected %q to be valid, got %v", code, err)
		}
	}
	for _, code := range []string{"", "A-1", "A 1", "A1!"} {
		if err := v.ValidateLineageCode(code, "lineage_code"); err == nil {
			t.Fatalf("expected %q to be invalid", code)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	if ve.HasErrors() {
		t.Fatal("expected no errors initially")
	}
	ve.Add(nil)
	if ve.HasErrors() {
		t.Fatal("adding nil should not record an error")
	}
	v := New()
	ve.Add(v.ValidateRequired("", "scenario"))
	ve.Add(v.ValidatePositiveInt(-1, "rounds"))
	if !ve.HasErrors() {
		t.Fatal("expected errors after adding failures")
	}
	if len(ve.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(ve.Errors), ve.Errors)
	}
	if ve.Error() == "" {
		t.Fatal("expected non-empty combined error string")
	}
}

func TestSanitizeString(t *testing.T) {
	v := New()
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "a drought-tolerant burrower", "a drought-tolerant burrower"},
		{"strip script tags", "<script>alert('xss')</script>", "alert('xss')"},
		{"strip control chars", "line1\x00line2", "line1line2"},
		{"trim whitespace", "  padded text  ", "padded text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := v.SanitizeString(tc.input)
			if got != tc.want {
				t.Fatalf("SanitizeString(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}
