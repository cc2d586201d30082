package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

type keywordIntent int

const (
	kwStatistics keywordIntent = iota
	kwList
	kwCreate
	kwComplete
	kwOther
)

// keywordRule matches when the lowercased message contains any of Words, or
// when Extra reports a match.
type keywordRule struct {
	Intent keywordIntent
	Words  []string
	Extra  func(lower string) bool
}

// keywordRules is evaluated in order; the first match wins.
var keywordRules = []keywordRule{
	{Intent: kwStatistics, Words: []string{"how many", "statistics", "stats", "analytics", "progress", "summary"}},
	{Intent: kwList, Words: []string{"list", "show", "what", "need", "have to do", "tasks", "my tasks", "all tasks"}},
	{
		Intent: kwCreate,
		Words:  []string{"add ", "create ", "remember ", "remember to", "buy ", "need to ", "have to "},
		Extra: func(lower string) bool {
			return containsAny(lower, "do", "can", "will", "should") &&
				len(lower) > 10 && !strings.HasPrefix(lower, "how")
		},
	},
	{Intent: kwComplete, Words: []string{"done", "completed", "complete", "finish", "mark", "finished", "finished it", "did it"}},
}

// createPrefixes are stripped from the start of a message to find the title.
var createPrefixes = []string{"add ", "create ", "remember to ", "remember ", "buy ", "i need to ", "i have to ", "do ", "can you "}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func classifyKeywords(lower string) keywordIntent {
	for _, r := range keywordRules {
		if containsAny(lower, r.Words...) || (r.Extra != nil && r.Extra(lower)) {
			return r.Intent
		}
	}
	return kwOther
}

const greetingReply = "👋 Hi there! I'm your AI task assistant. I can help you:\n" +
	"• ➕ Create tasks (just tell me what to do)\n" +
	"• 📋 List your tasks\n" +
	"• ✅ Mark tasks as done\n" +
	"• 📊 View your progress\n" +
	"• 🎯 Delete or update tasks\n\n" +
	"What would you like to do?"

const helpReply = `📋 **I can help you manage your tasks!** Here's what I can do:

**Creating Tasks:**
• 'Add buy groceries'
• 'Remember to call mom'
• 'I need to fix the bug'

**Viewing Tasks:**
• 'Show my tasks'
• 'What do I need to do?'
• 'List all tasks'

**Completing Tasks:**
• 'Mark it done'
• 'I finished it'
• 'Complete the task'

**Getting Insights:**
• 'Show my progress'
• 'How many tasks do I have?'
• 'What's my completion rate?'

**Deleting Tasks:**
• 'Delete this task'
• 'Remove it'

Just tell me what you need! 😊`

const nudgeReply = "I understand you said: '%s'\n\n" +
	"🤖 I'm learning from you! Try asking me to:\n" +
	"• ➕ Create a task: 'add...' or 'remember...'\n" +
	"• 📋 Show your tasks: 'list tasks' or 'what do I need?'\n" +
	"• ✅ Complete a task: 'mark it done'\n" +
	"• 📊 Check progress: 'show stats' or 'how many tasks?'\n\n" +
	"Type 'help' for more options! 🎯"

// keywordResolver answers without an LLM by matching keyword sets and
// rendering templated replies around the tool results.
type keywordResolver struct {
	registry *runtime.Registry
}

func (r *keywordResolver) Resolve(ctx context.Context, message, owner string, _ []Turn) Reply {
	lower := strings.ToLower(strings.TrimSpace(message))

	switch classifyKeywords(lower) {
	case kwStatistics:
		return r.statistics(ctx, owner)
	case kwList:
		return r.list(ctx, owner)
	case kwCreate:
		return r.create(ctx, owner, message, lower)
	case kwComplete:
		return r.complete(ctx, owner)
	}

	switch {
	case containsAny(lower, "hello", "hi", "hey"):
		return Reply{Text: greetingReply}
	case strings.Contains(lower, "help"):
		return Reply{Text: helpReply}
	}
	return Reply{Text: fmt.Sprintf(nudgeReply, message)}
}

func (r *keywordResolver) listAll(ctx context.Context, owner string) (runtime.Result, []*types.Task) {
	res := r.registry.Dispatch(ctx, tools.ListTasks, owner, runtime.Args{})
	if !res.Success {
		return res, nil
	}
	return res, res.Payload.(tools.ListPayload).Tasks
}

// failed reports a tool failure as text only; the telemetry pair stays empty.
func failed(text string) Reply {
	return Reply{Text: text}
}

func (r *keywordResolver) statistics(ctx context.Context, owner string) Reply {
	res, tasks := r.listAll(ctx, owner)
	if !res.Success {
		return failed("Sorry, I couldn't analyze your tasks. Please try again.")
	}

	var completed, pending []*types.Task
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}
	rate := 0.0
	if len(tasks) > 0 {
		rate = float64(len(completed)) / float64(len(tasks)) * 100
	}

	var b strings.Builder
	b.WriteString("📊 **Your Progress:**\n\n")
	fmt.Fprintf(&b, "✅ Completed: %d/%d\n", len(completed), len(tasks))
	fmt.Fprintf(&b, "⏳ Pending: %d/%d\n", len(pending), len(tasks))
	fmt.Fprintf(&b, "🎯 Completion Rate: %.0f%%\n\n", rate)

	if len(completed) > 0 {
		b.WriteString("🏆 **Recently Completed:**\n")
		for _, t := range completed[max(0, len(completed)-3):] {
			fmt.Fprintf(&b, "  • %s\n", t.Title)
		}
	}
	if len(pending) > 0 {
		b.WriteString("\n📝 **Upcoming Tasks:**\n")
		for _, t := range pending[:min(3, len(pending))] {
			fmt.Fprintf(&b, "  • %s\n", t.Title)
		}
	}
	return Reply{Text: b.String(), ToolUsed: res.Tool, ActionTaken: FormatAction(res)}
}

func (r *keywordResolver) list(ctx context.Context, owner string) Reply {
	res, tasks := r.listAll(ctx, owner)
	if !res.Success {
		return failed("Sorry, I couldn't fetch your tasks. Please try again.")
	}
	if len(tasks) == 0 {
		return Reply{
			Text:        "📭 You don't have any tasks yet. Want to create one? Just tell me what you need to do!",
			ToolUsed:    res.Tool,
			ActionTaken: FormatAction(res),
		}
	}

	var b strings.Builder
	b.WriteString("📋 **Your Tasks:**\n\n")
	pending := 0
	for i, t := range tasks {
		status := "○"
		if t.Completed {
			status = "✓"
		} else {
			pending++
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, status, t.Title)
		if t.Description != "" {
			fmt.Fprintf(&b, "   → %s\n", t.Description)
		}
	}
	if pending > 0 {
		fmt.Fprintf(&b, "\n💡 You have %d pending task(s). Need help with any of them?", pending)
	}
	return Reply{Text: b.String(), ToolUsed: res.Tool, ActionTaken: FormatAction(res)}
}

func (r *keywordResolver) create(ctx context.Context, owner, message, lower string) Reply {
	title := message
	for _, prefix := range createPrefixes {
		if strings.HasPrefix(lower, prefix) {
			title = strings.TrimSpace(strings.TrimSpace(message)[len(prefix):])
			break
		}
	}
	if utf8.RuneCountInString(title) <= 2 {
		return Reply{Text: "I didn't catch what task you want to add. Can you be more specific?"}
	}

	res := r.registry.Dispatch(ctx, tools.AddTask, owner, runtime.Args{"title": title, "description": ""})
	if !res.Success {
		return failed("Sorry, I couldn't create the task. " + res.Error)
	}
	task := res.Payload.(tools.TaskPayload).Task
	return Reply{
		Text:        fmt.Sprintf("✓ Got it! I've added '%s' to your task list.", task.Title),
		ToolUsed:    res.Tool,
		ActionTaken: FormatAction(res),
	}
}

func (r *keywordResolver) complete(ctx context.Context, owner string) Reply {
	listRes, tasks := r.listAll(ctx, owner)
	if !listRes.Success {
		return failed("You don't have any tasks to complete yet.")
	}
	if len(tasks) == 0 {
		return Reply{Text: "You don't have any tasks to complete yet.", ToolUsed: listRes.Tool, ActionTaken: FormatAction(listRes)}
	}

	var target *types.Task
	for _, t := range tasks {
		if !t.Completed {
			target = t
			break
		}
	}
	if target == nil {
		return Reply{
			Text:        "Great! You've completed all your tasks. No more tasks to mark as done!",
			ToolUsed:    listRes.Tool,
			ActionTaken: FormatAction(listRes),
		}
	}

	res := r.registry.Dispatch(ctx, tools.CompleteTask, owner, runtime.Args{"task_id": target.ID, "completed": true})
	if !res.Success {
		return failed("Sorry, I couldn't mark the task as done.")
	}
	return Reply{
		Text:        fmt.Sprintf("🎉 Awesome! I've marked '%s' as done!", target.Title),
		ToolUsed:    res.Tool,
		ActionTaken: FormatAction(res),
	}
}
