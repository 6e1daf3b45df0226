package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hirelane/proctor-backend/internal/exam"
	"github.com/hirelane/proctor-backend/internal/middleware"
	"github.com/hirelane/proctor-backend/internal/model"
	"github.com/hirelane/proctor-backend/internal/service"
	ws "github.com/hirelane/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// examClient serializes writes to one candidate's socket: the read loop and
// the timer goroutine both push frames.
type examClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *examClient) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ws.WriteTyped(c.conn, v)
}

func (c *examClient) sendError(code, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ws.WriteError(c.conn, code, errMsg)
}

// WSHandler streams the live exam session: answer writes, navigation,
// integrity signals, and the submit trigger all arrive on one socket.
// Server-initiated frames (expiry, auto-submit ack) go out through a
// per-invitation client registry.
type WSHandler struct {
	sessionService    *service.SessionService
	submissionService *service.SubmissionService
	log               zerolog.Logger
	upgrader          websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*examClient
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, submissionService *service.SubmissionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService:    sessionService,
		submissionService: submissionService,
		log:               log.With().Str("component", "ws_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
		clients:           make(map[uuid.UUID]*examClient),
	}
}

// register makes a connection reachable for server pushes. A reconnect
// replaces the previous socket.
func (h *WSHandler) register(invitationID uuid.UUID, client *examClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[invitationID] = client
}

// unregister drops the connection, unless a reconnect already replaced it.
func (h *WSHandler) unregister(invitationID uuid.UUID, client *examClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[invitationID] == client {
		delete(h.clients, invitationID)
	}
}

func (h *WSHandler) client(invitationID uuid.UUID) (*examClient, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.clients[invitationID]
	return client, ok
}

// NotifyExpired pushes the countdown-expiry notice to the invitation's open
// stream, if any. Called from the timer goroutine.
func (h *WSHandler) NotifyExpired(invitationID uuid.UUID, autoSubmit bool) {
	if client, ok := h.client(invitationID); ok {
		client.send(ws.ExpiredResponse{Event: ws.EventExpired, AutoSubmit: autoSubmit})
	}
}

// NotifySubmitted pushes the acknowledgement for a server-side (timeout)
// submission, so a connected candidate sees the same ack a manual submit
// would have produced.
func (h *WSHandler) NotifySubmitted(invitationID uuid.UUID, ack *service.SubmissionAck) {
	if client, ok := h.client(invitationID); ok {
		client.send(ws.SubmittedResponse{
			Event:       ws.EventSubmitted,
			Status:      ack.Status,
			Message:     ack.Message,
			SubmittedAt: ack.SubmittedAt.Unix(),
		})
	}
}

// ExamStream godoc
// WS /ws/v1/candidate/exam/stream?token=...
// Upgrades to WebSocket. Requires an active exam session: the socket is the
// exam view's channel, not a way into it.
func (h *WSHandler) ExamStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	invID := claims.InvitationID

	sess, err := h.sessionService.Get(invID)
	if err != nil {
		ws.WriteError(conn, "NO_ACTIVE_SESSION", "no active exam session")
		return
	}

	client := &examClient{conn: conn}
	h.register(invID, client)
	defer h.unregister(invID, client)

	wsLog := h.log.With().Str("invitation_id", invID.String()).Logger()
	wsLog.Info().Msg("Candidate connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			client.sendError("INVALID_PAYLOAD", "malformed message")
			continue
		}

		switch envelope.Action {
		case ws.ActionAnswer:
			h.handleAnswer(client, wsLog, invID, sess, raw)
		case ws.ActionNavigate:
			h.handleNavigate(client, sess, raw)
		case ws.ActionIntegrity:
			h.handleIntegrity(client, wsLog, invID, raw)
		case ws.ActionSubmit:
			h.handleSubmit(client, wsLog, invID)
		case ws.ActionPing:
			client.send(ws.PongResponse{
				Event:            ws.EventPong,
				RemainingSeconds: sess.Timer.Remaining(),
			})
		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			client.sendError("INVALID_PAYLOAD", "unknown action: "+string(envelope.Action))
		}
	}
}

// handleAnswer records one answer on the session and its Redis mirror.
func (h *WSHandler) handleAnswer(client *examClient, wsLog zerolog.Logger, invID uuid.UUID, sess *exam.Session, raw []byte) {
	var req ws.AnswerRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		client.sendError("INVALID_PAYLOAD", "malformed answer message")
		return
	}

	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil {
		client.sendError("INVALID_ID", "invalid question_id format")
		return
	}

	var ans model.Answer
	if err := json.Unmarshal(req.Answer, &ans); err != nil {
		client.sendError("INVALID_PAYLOAD", "malformed answer value")
		return
	}

	if err := h.sessionService.SetAnswer(context.Background(), invID, questionID, ans); err != nil {
		switch {
		case errors.Is(err, exam.ErrUnknownQuestion):
			client.sendError("INVALID_ID", "question not part of this test")
		case errors.Is(err, exam.ErrSessionFinished):
			client.sendError("ALREADY_COMPLETED", "session already submitted")
		case errors.Is(err, model.ErrAnswerShape):
			client.sendError("INVALID_PAYLOAD", err.Error())
		default:
			wsLog.Error().Err(err).Msg("Answer save error")
			client.sendError("INTERNAL_ERROR", "save failed")
		}
		return
	}

	client.send(ws.SavedResponse{
		Event:             ws.EventSaved,
		Status:            "saved",
		CompletionPercent: sess.CompletionPercent(),
	})
}

// handleNavigate moves the session cursor.
func (h *WSHandler) handleNavigate(client *examClient, sess *exam.Session, raw []byte) {
	var req ws.NavigateRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		client.sendError("INVALID_PAYLOAD", "malformed navigate message")
		return
	}

	switch req.Direction {
	case "next":
		sess.Next()
	case "previous":
		sess.Previous()
	case "jump":
		if err := sess.JumpTo(req.Section, req.Question); err != nil {
			client.sendError("INVALID_PAYLOAD", err.Error())
			return
		}
	default:
		client.sendError("INVALID_PAYLOAD", "unknown direction: "+req.Direction)
		return
	}

	client.send(ws.SavedResponse{
		Event:             ws.EventSaved,
		Status:            "moved",
		CompletionPercent: sess.CompletionPercent(),
	})
}

// handleIntegrity feeds a proctoring signal to the session's monitor,
// warning the candidate when a tab switch is counted.
func (h *WSHandler) handleIntegrity(client *examClient, wsLog zerolog.Logger, invID uuid.UUID, raw []byte) {
	var req ws.IntegrityRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		client.sendError("INVALID_PAYLOAD", "malformed integrity message")
		return
	}

	eventType := model.IntegrityEventType(req.EventType)
	if !eventType.Valid() {
		client.sendError("INVALID_PAYLOAD", "unknown event_type: "+req.EventType)
		return
	}

	at := time.Now()
	if req.Timestamp > 0 {
		at = time.Unix(req.Timestamp, 0)
	}

	count, counted, err := h.sessionService.HandleIntegrity(invID, eventType, at)
	if err != nil {
		wsLog.Error().Err(err).Msg("Integrity handling error")
		client.sendError("NO_ACTIVE_SESSION", "no active exam session")
		return
	}

	if counted {
		client.send(ws.WarningResponse{
			Event:          ws.EventWarning,
			Message:        "Leaving the exam tab is recorded.",
			TabSwitchCount: count,
		})
		return
	}

	client.send(ws.SavedResponse{Event: ws.EventSaved, Status: "recorded"})
}

// handleSubmit runs the manual submission trigger over the socket.
func (h *WSHandler) handleSubmit(client *examClient, wsLog zerolog.Logger, invID uuid.UUID) {
	inv, err := h.sessionService.Invitation(invID)
	if err != nil {
		client.sendError("NO_ACTIVE_SESSION", "no active exam session")
		return
	}

	ack, err := h.submissionService.Submit(context.Background(), inv, service.SubmitTriggerManual)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSubmitInFlight):
			client.sendError("SUBMISSION_ERROR", "submission already in progress")
		case errors.Is(err, service.ErrSubmitFailed):
			client.sendError("SUBMISSION_ERROR", "submission failed, please retry")
		case errors.Is(err, exam.ErrDegenerateTest):
			client.sendError("DEGENERATE_TEST", err.Error())
		default:
			wsLog.Error().Err(err).Msg("Submit error")
			client.sendError("INTERNAL_ERROR", "submission failed")
		}
		return
	}

	client.send(ws.SubmittedResponse{
		Event:       ws.EventSubmitted,
		Status:      ack.Status,
		Message:     ack.Message,
		SubmittedAt: ack.SubmittedAt.Unix(),
	})
}
