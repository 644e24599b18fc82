package driving

import (
	"context"

	"github.com/custodia-labs/emma/internal/core/domain"
)

// ChatService processes one user turn end to end: safety gate, history,
// retrieval, generation and the safety check on the reply.
type ChatService interface {
	ProcessMessage(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}
