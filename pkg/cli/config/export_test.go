package config

import (
	"time"
)

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, sqlitePath, owner string) *Repository {
	return &Repository{
		backend:    backend,
		sqlitePath: sqlitePath,
		owner:      owner,
	}
}

// NewLLMForTest creates an LLM config for testing purposes
func NewLLMForTest(provider, openaiToken, ollamaModel string) *LLM {
	return &LLM{
		provider:    provider,
		openaiToken: openaiToken,
		openaiModel: "gpt-4o-mini",
		ollamaURL:   "http://localhost:11434",
		ollamaModel: ollamaModel,
	}
}

// NewCharacterForTest creates a Character config for testing purposes
func NewCharacterForTest(path string) *Character {
	return &Character{path: path}
}

// NewLifeForTest creates a Life config for testing purposes
func NewLifeForTest(seedPath string) *Life {
	return &Life{seedPath: seedPath}
}

// NewProactiveForTest creates a Proactive config for testing purposes
func NewProactiveForTest(interval time.Duration, startHour int, persistDedup bool) *Proactive {
	return &Proactive{
		interval:     interval,
		startHour:    startHour,
		lookahead:    90 * time.Minute,
		persistDedup: persistDedup,
	}
}

// NewConversationForTest creates a Conversation config for testing purposes
func NewConversationForTest(storageCap, contextCap, memoryLimit int) *Conversation {
	return &Conversation{
		storageCap:     storageCap,
		contextCap:     contextCap,
		memoryLimit:    memoryLimit,
		persistTimeout: time.Second,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}
