package intent

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message string
		intent  Intent
		tool    string
		title   string
	}{
		{"remember to buy milk", Add, "add_task", "buy milk"},
		{"Add task call the dentist", Add, "add_task", "task call the dentist"},
		{"what do I need to do", List, "list_tasks", ""},
		{"show my tasks", List, "list_tasks", ""},
		{"mark the task as done", Complete, "complete_task", ""},
		{"Change groceries to vegetables", Update, "update_task", "vegetables"},
		{"delete that task", Delete, "delete_task", ""},
		{"the weather is nice", Unknown, "", ""},
		{"", Unknown, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			m := Classify(tt.message)
			assert.Equal(t, tt.intent, m.Intent)
			assert.Equal(t, tt.tool, m.Tool)
			assert.Equal(t, tt.title, m.Title)
		})
	}
}

func TestDeclarationOrderBreaksTies(t *testing.T) {
	// Matches both add ("create"+"task") and delete ("remove"+"task").
	m := Classify("create a task to remove the old boxes")
	assert.Equal(t, Add, m.Intent)

	// Matches list ("show"+"tasks") and complete ("done"+"task").
	m = Classify("show done tasks")
	assert.Equal(t, List, m.Intent)
}

func TestClassifyWithCustomRules(t *testing.T) {
	rules := []Rule{
		{Intent: Delete, Tool: "delete_task", Patterns: []*regexp.Regexp{regexp.MustCompile(`purge`)}},
		{Intent: List, Tool: "list_tasks"},
	}
	assert.Equal(t, Delete, ClassifyWith(rules, "purge everything").Intent)
	// A rule without patterns never matches.
	assert.Equal(t, Unknown, ClassifyWith(rules, "list").Intent)
}

func TestAddTitle(t *testing.T) {
	assert.Equal(t, "buy milk", AddTitle("remember to buy milk"))
	assert.Equal(t, "Buy Milk", AddTitle("Please ADD Buy Milk"))
	assert.Equal(t, "remind me about tea", AddTitle("  remind me about tea "))
	assert.Equal(t, "add", AddTitle("add"))

	long := AddTitle("add " + strings.Repeat("x", 250))
	assert.Len(t, long, 200)
}

func TestUpdateTitle(t *testing.T) {
	assert.Equal(t, "vegetables", UpdateTitle("Change groceries TO Vegetables"))
	assert.Equal(t, "call bob", UpdateTitle("rename my todo to call bob"))
	assert.Equal(t, "", UpdateTitle("rename it"))
	assert.Equal(t, "", UpdateTitle("change it to"))
}
