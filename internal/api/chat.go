package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/user/tasktalk/internal/gateway"
	"github.com/user/tasktalk/internal/types"
)

// ChatRequest is the body of a chat turn.
type ChatRequest struct {
	ConversationID string `json:"conversation_id,omitempty" doc:"Continue this conversation; omit to start a new one"`
	Message        string `json:"message" doc:"The user's message"`
}

// ChatResponse reports the assistant reply and what it did.
type ChatResponse struct {
	Success            bool      `json:"success"`
	ConversationID     string    `json:"conversation_id"`
	UserMessageID      string    `json:"user_message_id"`
	AssistantMessageID string    `json:"assistant_message_id"`
	Response           string    `json:"response"`
	ToolUsed           *string   `json:"tool_used"`
	ActionTaken        *string   `json:"action_taken"`
	Timestamp          time.Time `json:"timestamp"`
}

type ConversationSummary struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int64     `json:"message_count"`
}

type Message struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ToolUsed    *string   `json:"tool_used"`
	ActionTaken *string   `json:"action_taken"`
	CreatedAt   time.Time `json:"created_at"`
}

// nullable maps an empty string to JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func chatResponse(res *gateway.Result) ChatResponse {
	return ChatResponse{
		Success:            true,
		ConversationID:     string(res.ConversationID),
		UserMessageID:      string(res.UserTurn.ID),
		AssistantMessageID: string(res.AssistantTurn.ID),
		Response:           res.Reply.Text,
		ToolUsed:           nullable(res.Reply.ToolUsed),
		ActionTaken:        nullable(res.Reply.ActionTaken),
		Timestamp:          res.AssistantTurn.CreatedAt,
	}
}

// chat runs one turn for user through the gateway.
func (s *server) chat(ctx context.Context, user string, req ChatRequest) (ChatResponse, error) {
	res, err := s.cfg.Gateway.Submit(ctx, gateway.Request{
		ConversationID: types.ConversationID(req.ConversationID),
		Owner:          user,
		Message:        req.Message,
		Source:         Source,
	})
	if err != nil {
		return ChatResponse{}, err
	}
	return chatResponse(res), nil
}

func (s *server) registerChat(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/api/{user_id}/chat",
		Summary:     "Send a chat message",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID string      `path:"user_id"`
		Body   ChatRequest `json:"body"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		resp, err := s.chat(ctx, user, input.Body)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/api/{user_id}/chat/conversations",
		Summary:     "List conversations",
	}, func(ctx context.Context, input *struct {
		UserID string `path:"user_id"`
	}) (*struct {
		Body struct {
			Conversations []ConversationSummary `json:"conversations"`
		} `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		store := s.cfg.Gateway.Sessions.Store()
		convs, err := store.ListConversations(ctx, user)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Conversations []ConversationSummary `json:"conversations"`
			} `json:"body"`
		}{}
		out.Body.Conversations = make([]ConversationSummary, 0, len(convs))
		for _, c := range convs {
			n, err := store.CountTurns(ctx, c.ID)
			if err != nil {
				return nil, handleError(err)
			}
			out.Body.Conversations = append(out.Body.Conversations, ConversationSummary{
				ID:           string(c.ID),
				UserID:       c.Owner,
				CreatedAt:    c.CreatedAt,
				UpdatedAt:    c.UpdatedAt,
				MessageCount: n,
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-conversation",
		Method:      http.MethodGet,
		Path:        "/api/{user_id}/chat/conversations/{conversation_id}",
		Summary:     "Get conversation messages",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UserID         string `path:"user_id"`
		ConversationID string `path:"conversation_id"`
	}) (*struct {
		Body struct {
			ConversationID string    `json:"conversation_id"`
			Messages       []Message `json:"messages"`
		} `json:"body"`
	}, error) {
		user, authErr := authorize(ctx, input.UserID)
		if authErr != nil {
			return nil, authErr
		}
		conv, err := s.cfg.Gateway.Sessions.Get(ctx, types.ConversationID(input.ConversationID), user)
		if err != nil {
			return nil, handleError(err)
		}
		turns, err := s.cfg.Gateway.Sessions.Store().RecentTurns(ctx, conv.ID, 0)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				ConversationID string    `json:"conversation_id"`
				Messages       []Message `json:"messages"`
			} `json:"body"`
		}{}
		out.Body.ConversationID = string(conv.ID)
		out.Body.Messages = make([]Message, 0, len(turns))
		for _, t := range turns {
			out.Body.Messages = append(out.Body.Messages, Message{
				ID:          string(t.ID),
				Role:        string(t.Role),
				Content:     t.Content,
				ToolUsed:    nullable(t.ToolUsed),
				ActionTaken: nullable(t.ActionTaken),
				CreatedAt:   t.CreatedAt,
			})
		}
		return out, nil
	})
}
