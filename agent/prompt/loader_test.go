package prompt

import (
	"strings"
	"testing"
)

func TestLoadPromptSet(t *testing.T) {
	t.Parallel()

	set := LoadPromptSet()
	if set.Assistant == "" || set.Summary == "" {
		t.Fatal("prompts must not be empty")
	}
	if !strings.Contains(set.Assistant, "identify_user") {
		t.Fatal("assistant prompt must mention identify_user")
	}
	// The assistant prompt goes through an FString chat template.
	if strings.ContainsAny(set.Assistant, "{}") {
		t.Fatal("assistant prompt must not contain template braces")
	}
}
