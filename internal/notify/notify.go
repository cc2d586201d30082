// Package notify turns task events into short notices. Every event is
// logged; owners with a configured route also get the notice delivered to
// a chat channel.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"sync"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/tasktalk/internal/runtime"
	"github.com/user/tasktalk/internal/runtime/tools"
	"github.com/user/tasktalk/internal/types"
)

// Deliverer sends a message to the channel behind a session key.
type Deliverer interface {
	Deliver(ctx context.Context, key types.SessionKey, message string) error
}

const noticeHTML = `<p><strong>{{.Heading}}</strong>{{if .Title}}: {{.Title}}{{end}}</p>
{{- if .Detail}}<p><em>{{.Detail}}</em></p>{{end}}
<p>via {{.Source}}</p>`

// Notice is the rendered view of one task event.
type Notice struct {
	Heading string
	Title   string
	Detail  string
	Source  string
}

// Notifier observes mutating tool calls.
type Notifier struct {
	routes  map[string]types.SessionKey
	deliver Deliverer
	tmpl    *template.Template
	wg      sync.WaitGroup
}

// New creates a notifier. routes maps an owner to the session key that
// should receive their notices; deliver may be nil when routes is empty.
func New(routes map[string]string, deliver Deliverer) (*Notifier, error) {
	tmpl, err := template.New("notice").Parse(noticeHTML)
	if err != nil {
		return nil, fmt.Errorf("parse notice template: %w", err)
	}
	n := &Notifier{
		routes:  make(map[string]types.SessionKey, len(routes)),
		deliver: deliver,
		tmpl:    tmpl,
	}
	for owner, key := range routes {
		n.routes[owner] = types.SessionKey(key)
	}
	return n, nil
}

// Observe logs the event and, when the owner has a route, delivers the
// notice in the background. It has the runtime.Observer signature.
func (n *Notifier) Observe(ctx context.Context, ev runtime.Event) {
	notice := Describe(ev)
	slog.Info("task event",
		"tool", ev.Tool,
		"user_id", ev.Owner,
		"source", ev.Source,
		"event", notice.Heading,
		"title", notice.Title)

	key, ok := n.routes[ev.Owner]
	if !ok || n.deliver == nil {
		return
	}
	msg, err := n.Markdown(notice)
	if err != nil {
		slog.Error("render notice failed", "user_id", ev.Owner, "error", err)
		return
	}

	dctx := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.deliver.Deliver(dctx, key, msg); err != nil {
			slog.Error("notice delivery failed", "user_id", ev.Owner, "session_key", string(key), "error", err)
		}
	}()
}

// Wait blocks until background deliveries finish.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// HTML renders the notice as an HTML fragment.
func (n *Notifier) HTML(notice Notice) (string, error) {
	var buf bytes.Buffer
	if err := n.tmpl.Execute(&buf, notice); err != nil {
		return "", fmt.Errorf("render notice: %w", err)
	}
	return buf.String(), nil
}

// Markdown renders the notice for chat channels.
func (n *Notifier) Markdown(notice Notice) (string, error) {
	html, err := n.HTML(notice)
	if err != nil {
		return "", err
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert notice: %w", err)
	}
	return strings.TrimSpace(md), nil
}

// Describe maps a task event to its notice.
func Describe(ev runtime.Event) Notice {
	notice := Notice{Heading: "Task changed", Source: ev.Source}
	if notice.Source == "" {
		notice.Source = "unknown"
	}

	switch p := ev.Result.Payload.(type) {
	case tools.TaskPayload:
		notice.Title = p.Task.Title
		switch ev.Tool {
		case tools.AddTask:
			notice.Heading = "Task created"
			notice.Detail = p.Task.Description
		case tools.CompleteTask:
			if p.Task.Completed {
				notice.Heading = "Task completed"
			} else {
				notice.Heading = "Task reopened"
			}
		case tools.UpdateTask:
			notice.Heading = "Task updated"
		}
	case tools.DeletePayload:
		notice.Heading = "Task deleted"
		notice.Detail = p.Message
	}
	return notice
}
