package security

import "testing"

func TestValidateName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{
			name:      "plain name",
			input:     "north 40",
			wantError: false,
		},
		{
			name:      "name with punctuation",
			input:     "pivot, east (2026)",
			wantError: false,
		},
		{
			name:      "empty name",
			input:     "",
			wantError: true,
		},
		{
			name:      "single dot",
			input:     ".",
			wantError: true,
		},
		{
			name:      "double dot",
			input:     "..",
			wantError: true,
		},
		{
			name:      "forward slash",
			input:     "fields/other",
			wantError: true,
		},
		{
			name:      "backslash",
			input:     `fields\other`,
			wantError: true,
		},
		{
			name:      "traversal inside name",
			input:     "../escape",
			wantError: true,
		},
		{
			name:      "leading dot is allowed",
			input:     ".hidden",
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateName(%q) error = %v, wantError %v", tt.input, err, tt.wantError)
			}
		})
	}
}
