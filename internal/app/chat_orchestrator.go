package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/cache"
	"knowledgehub/internal/model"
)

const contextSnippetMaxLen = 300

// ChatOrchestrator drives one WebSocket chat session: it resolves the
// caller's conversation, grounds the reply in a hybrid search over
// their own and shared documents, streams the model's response back
// chunk by chunk, and watches for the stream to go quiet before
// declaring it complete. Grounded on manshu's ChatHandler and
// ChatWebSocketHandler; the teacher's deleted chat_service.go
// contributes buildPromptMessages/maskSecret-style helpers, adapted
// here to work from search context instead of a stored session.
type ChatOrchestrator struct {
	conversations *cache.ConversationStore
	search        *HybridSearchService
	chatClient    *ai.OpenAICompatibleClient
	chatCfg       ai.ChatConfig

	// stopToken is minted once per process boot and handed to every
	// client in its connection ack frame; a stop control frame is only
	// honored if it echoes this token back, mirroring
	// ChatWebSocketHandler.INTERNAL_CMD_TOKEN.
	stopToken string
	idSeq     uint64
	idMu      sync.Mutex
}

func NewChatOrchestrator(conversations *cache.ConversationStore, search *HybridSearchService, chatClient *ai.OpenAICompatibleClient, chatCfg ai.ChatConfig, stopToken string) *ChatOrchestrator {
	return &ChatOrchestrator{
		conversations: conversations,
		search:        search,
		chatClient:    chatClient,
		chatCfg:       chatCfg,
		stopToken:     stopToken,
	}
}

func (o *ChatOrchestrator) StopToken() string {
	return o.stopToken
}

type controlFrame struct {
	Type             string `json:"type"`
	InternalCmdToken string `json:"_internal_cmd_token"`
}

// chatSession holds the mutable state of one live connection: the
// in-flight response builder the watchdog polls, and a write mutex
// because gorilla/websocket connections aren't safe for concurrent
// writers.
type chatSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	builder strings.Builder
	stopped bool
}

func (s *chatSession) writeJSON(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(v); err != nil {
		log.Printf("chat orchestrator: write failed: %v", err)
	}
}

func (s *chatSession) appendChunk(chunk string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.builder.WriteString(chunk)
	return true
}

func (s *chatSession) snapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builder.String()
}

func (s *chatSession) setStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *chatSession) clearStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}

// Serve reads control and chat frames off conn until the connection
// closes; ctx is handed to each message's processing and does not by
// itself end the read loop. userID/username have already been
// resolved from the JWT carried in the connection's final path
// segment by the caller (transport/http/handler.ChatHandler).
func (o *ChatOrchestrator) Serve(ctx context.Context, conn *websocket.Conn, userID uint, username string) {
	session := &chatSession{conn: conn}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		payload := strings.TrimSpace(string(raw))
		if payload == "" {
			continue
		}

		if strings.HasPrefix(payload, "{") {
			var frame controlFrame
			if err := json.Unmarshal(raw, &frame); err == nil && frame.Type == "stop" && frame.InternalCmdToken == o.stopToken {
				o.handleStop(session)
				continue
			}
		}

		go o.processMessage(ctx, session, userID, payload)
	}
}

// handleStop discards further chunks on session for 2s, then lifts
// the flag so a later message on the same connection isn't silently
// dropped too — matching ChatHandler.stopResponse's
// Thread.sleep(2000); stopFlags.remove(sessionId) cleanup.
func (o *ChatOrchestrator) handleStop(session *chatSession) {
	session.setStopped()
	session.writeJSON(map[string]any{
		"type":      "stop",
		"message":   "response stopped",
		"timestamp": time.Now().UnixMilli(),
	})
	go func() {
		time.Sleep(2 * time.Second)
		session.clearStopped()
	}()
}

func (o *ChatOrchestrator) processMessage(ctx context.Context, session *chatSession, userID uint, userMessage string) {
	conversationID, err := o.conversations.GetOrCreateConversationID(ctx, userID, o.newConversationID)
	if err != nil {
		o.sendError(session, err)
		return
	}

	history, err := o.conversations.History(ctx, conversationID)
	if err != nil {
		o.sendError(session, err)
		return
	}

	results, err := o.search.SearchWithPermission(ctx, userID, userMessage, 5)
	if err != nil {
		log.Printf("chat orchestrator: search failed: %v", err)
	}
	promptContext := buildSearchContext(results)
	promptMessages := buildPromptMessages(history, promptContext, userMessage)

	_, err = o.chatClient.StreamComplete(ctx, o.chatCfg, promptMessages, func(chunk string) error {
		if !session.appendChunk(chunk) {
			return nil
		}
		session.writeJSON(map[string]string{"chunk": chunk})
		return nil
	})
	if err != nil {
		o.sendError(session, err)
		o.sendCompletion(session)
		return
	}

	final := o.awaitQuiet(session)
	o.sendCompletion(session)

	if err := o.conversations.Append(ctx, conversationID, model.ConversationMessage{Role: "user", Content: userMessage, Timestamp: time.Now()}); err != nil {
		log.Printf("chat orchestrator: append user message failed: %v", err)
	}
	if err := o.conversations.Append(ctx, conversationID, model.ConversationMessage{Role: "assistant", Content: final, Timestamp: time.Now()}); err != nil {
		log.Printf("chat orchestrator: append assistant message failed: %v", err)
	}
}

// awaitQuiet polls the response builder for growth to decide the
// stream has gone idle: 3s, then up to five 5s windows, each a 2s
// stability check followed by a 3s pause (~28s total), matching
// ChatHandler.processMessage's watchdog thread.
func (o *ChatOrchestrator) awaitQuiet(session *chatSession) string {
	time.Sleep(3 * time.Second)
	for i := 0; i < 5; i++ {
		if settled, text := o.stable(session, 2*time.Second); settled {
			return text
		}
		time.Sleep(3 * time.Second)
	}
	return session.snapshot()
}

func (o *ChatOrchestrator) stable(session *chatSession, wait time.Duration) (bool, string) {
	before := session.snapshot()
	time.Sleep(wait)
	after := session.snapshot()
	return before == after, after
}

func (o *ChatOrchestrator) sendCompletion(session *chatSession) {
	now := time.Now()
	session.writeJSON(map[string]any{
		"type":      "completion",
		"status":    "finished",
		"message":   "response complete",
		"timestamp": now.UnixMilli(),
		"date":      now.Format(time.RFC3339),
	})
}

func (o *ChatOrchestrator) sendError(session *chatSession, err error) {
	log.Printf("chat orchestrator: %v", err)
	session.writeJSON(map[string]string{"error": "failed to generate a response"})
}

func (o *ChatOrchestrator) newConversationID() string {
	o.idMu.Lock()
	o.idSeq++
	seq := o.idSeq
	o.idMu.Unlock()
	return fmt.Sprintf("conv_%d_%d", time.Now().UnixNano(), seq)
}

// noReferencesMessage is the line substituted inside the <<REF>>
// wrapper when a search turns up nothing, matching
// DeepSeekClient.buildMessages's configured fallback rather than
// omitting the reference block entirely.
const noReferencesMessage = "(No references were retrieved this round)"

// buildSearchContext renders search hits into a single numbered
// <<REF>>...<<END>> block — "[i] (file) snippet" per line, each
// snippet truncated to contextSnippetMaxLen runes — so the model can
// cite sources by index without the delimiters leaking into its
// answer. The wrapper is always present, even with no hits, so the
// prompt's shape doesn't change turn to turn.
func buildSearchContext(results []SearchResult) string {
	var b strings.Builder
	b.WriteString("<<REF>>\n")
	if len(results) == 0 {
		b.WriteString(noReferencesMessage + "\n")
	} else {
		for i, r := range results {
			snippet := truncateRunes(r.Document.Content, contextSnippetMaxLen)
			fileName := r.FileName
			if fileName == "" {
				fileName = "unknown"
			}
			fmt.Fprintf(&b, "[%d] (%s) %s\n", i+1, fileName, snippet)
		}
	}
	b.WriteString("<<END>>")
	return b.String()
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// buildPromptMessages assembles the system/history/context/user
// message sequence sent to the chat model. Grounded on the teacher's
// deleted chat_service.go buildPromptMessages, adapted to prepend
// search-grounded context instead of reading from a stored session.
func buildPromptMessages(history []model.ConversationMessage, searchContext, userMessage string) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, len(history)+2)
	system := "You are a concise and helpful AI assistant. Use the provided reference snippets when relevant, and say so when nothing relevant was found."
	system += "\n\nReference snippets:\n" + searchContext
	messages = append(messages, ai.ChatMessage{Role: "system", Content: system})
	for _, item := range history {
		role := item.Role
		if role == "" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: item.Content})
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: userMessage})
	return messages
}
