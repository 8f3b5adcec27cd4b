package util

import (
	"strings"
	"testing"
)

func TestTokenHash(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple string",
			input:    "test",
			expected: "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TokenHash(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result)
			}
		})
	}
}

func TestNewToken(t *testing.T) {
	tok1, err := NewToken(16)
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if len(tok1) != 32 {
		t.Errorf("Expected token length 32, got %d", len(tok1))
	}

	tok2, _ := NewToken(16)
	if tok1 == tok2 {
		t.Error("Tokens should be unique")
	}
}

func TestGetNameAndVersion(t *testing.T) {
	result := GetNameAndVersion()
	if !strings.HasPrefix(result, "nodeweave / ") {
		t.Errorf("Unexpected name and version: %s", result)
	}
	if GetVersion() == "" {
		t.Error("Version should not be empty")
	}
	if !strings.HasPrefix(UserAgent(), "nodeweave/") {
		t.Errorf("Unexpected user agent: %s", UserAgent())
	}
}

func TestPrettyPrint(t *testing.T) {
	result := PrettyPrint(map[string]int{"a": 1})
	if !strings.Contains(result, "\"a\": 1") {
		t.Errorf("Unexpected output: %s", result)
	}
}
