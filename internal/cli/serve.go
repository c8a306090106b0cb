package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conversa-ai/conversa/internal/bus"
	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Run:   runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", ":8080", "Listen address")
}

// server routes requests through the message bus: the HTTP handler publishes
// inbound and waits for the matching outbound, while a worker goroutine
// drains inbound through the orchestrator. Other transports can feed the
// same bus.
type server struct {
	eng     *engine
	bus     *bus.MessageBus
	mu      sync.Mutex
	waiters map[string]chan *bus.OutboundMessage
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🌐 Conversa Server")

	eng, err := buildEngine()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	srv := &server{
		eng:     eng,
		bus:     bus.NewMessageBus(),
		waiters: make(map[string]chan *bus.OutboundMessage),
	}
	srv.bus.Subscribe("", srv.deliver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go srv.bus.DispatchOutbound(ctx)
	go srv.work(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chats", srv.handleCreateChat)
	mux.HandleFunc("POST /v1/chat", srv.handleChat)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{Addr: serveAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	slog.Info("Server listening", "addr", serveAddr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

// work drains inbound messages through the orchestrator.
func (s *server) work(ctx context.Context) {
	for {
		msg, err := s.bus.ConsumeInbound(ctx)
		if err != nil {
			return
		}
		go s.process(ctx, msg)
	}
}

func (s *server) process(ctx context.Context, msg *bus.InboundMessage) {
	actor := orchestrator.Actor{ID: msg.UserID, Type: "user"}

	out := &bus.OutboundMessage{
		UserID:    msg.UserID,
		ChatID:    msg.ChatID,
		RequestID: msg.RequestID,
	}

	result, err := s.eng.orch.Run(ctx, orchestrator.RunInput{
		Actor:       actor,
		UserID:      msg.UserID,
		ChatID:      msg.ChatID,
		UserMessage: msg.Content,
	})
	if err != nil {
		out.Content = "error: " + err.Error()
		s.bus.PublishOutbound(out)
		return
	}

	out.Content = result.Content
	out.MessageID = result.MessageID
	s.bus.PublishOutbound(out)
}

// deliver routes an outbound message to the waiting HTTP handler, if any.
func (s *server) deliver(msg *bus.OutboundMessage) {
	s.mu.Lock()
	ch, ok := s.waiters[msg.RequestID]
	if ok {
		delete(s.waiters, msg.RequestID)
	}
	s.mu.Unlock()
	if ok {
		ch <- msg
	}
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id,omitempty"`
	Content   string `json:"content"`
}

func (s *server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.ChatID == "" || req.Message == "" {
		http.Error(w, "user_id, chat_id and message are required", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	ch := make(chan *bus.OutboundMessage, 1)
	s.mu.Lock()
	s.waiters[requestID] = ch
	s.mu.Unlock()

	s.bus.PublishInbound(&bus.InboundMessage{
		UserID:    req.UserID,
		ChatID:    req.ChatID,
		RequestID: requestID,
		Content:   req.Message,
	})

	select {
	case out := <-ch:
		if strings.HasPrefix(out.Content, "error: ") {
			writeBusError(w, strings.TrimPrefix(out.Content, "error: "))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse{
			ChatID:    out.ChatID,
			MessageID: out.MessageID,
			Content:   out.Content,
		})
	case <-r.Context().Done():
		s.mu.Lock()
		delete(s.waiters, requestID)
		s.mu.Unlock()
	}
}

func (s *server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Title  string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	actor := orchestrator.Actor{ID: req.UserID, Type: "user"}
	id, err := s.eng.chats.CreateChat(r.Context(), actor, req.UserID, req.Title)
	if err != nil {
		writeBusError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"chat_id": id})
}

// writeBusError maps error text carrying known sentinel phrasing to HTTP
// statuses.
func writeBusError(w http.ResponseWriter, msg string) {
	status := http.StatusInternalServerError
	switch {
	case strings.Contains(msg, fault.ErrNotFound.Error()):
		status = http.StatusNotFound
	case strings.Contains(msg, fault.ErrPermissionDenied.Error()):
		status = http.StatusForbidden
	case strings.Contains(msg, fault.ErrInvalidInput.Error()):
		status = http.StatusBadRequest
	case strings.Contains(msg, fault.ErrTimeout.Error()):
		status = http.StatusGatewayTimeout
	}
	http.Error(w, msg, status)
}
