package usecase

import (
	"github.com/secmon-lab/companion/pkg/domain/model"
)

// BoundMemory is exported for testing
var BoundMemory = boundMemory

// RenderConversationPrompt is exported for testing
var RenderConversationPrompt = renderConversationPrompt

// BuildTurns is exported for testing
var BuildTurns = (*ConversationUseCase).buildTurns

// ErrorReplyMessage is the content committed when an exchange fails
const ErrorReplyMessage = errorReplyMessage

// TimeoutReplyMessage is the content committed when an exchange times out
const TimeoutReplyMessage = timeoutReplyMessage

// FiredKeys returns the keys marked fired in this process
func (uc *ProactiveUseCase) FiredKeys() []string {
	uc.firedMu.Lock()
	defer uc.firedMu.Unlock()
	keys := make([]string, 0, len(uc.fired))
	for k := range uc.fired {
		keys = append(keys, k)
	}
	return keys
}

// AssistantForTest exposes the assistant message held by an exchange
func (ex *Exchange) AssistantForTest() model.Message {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.assistant
}
