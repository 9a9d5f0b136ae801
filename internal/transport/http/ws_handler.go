package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"quiz-arena-service/internal/auth"
	"quiz-arena-service/internal/domain"
	"quiz-arena-service/internal/match"
)

// WSHandler is the connection gateway: it authenticates each websocket and
// routes typed inbound events to the match service with the caller's
// identity attached.
type WSHandler struct {
	service  *match.Service
	verifier auth.Verifier
	upgrader websocket.Upgrader
}

func NewWSHandler(service *match.Service, verifier auth.Verifier) *WSHandler {
	return &WSHandler{
		service:  service,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// wsConn adapts one websocket to match.Conn. Send is a non-blocking enqueue
// that drops the oldest pending event under pressure, so slow clients never
// block a match loop.
type wsConn struct {
	send chan match.Event
}

func newWSConn() *wsConn {
	return &wsConn{send: make(chan match.Event, 32)}
}

func (c *wsConn) Send(event match.Event) {
	select {
	case c.send <- event:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- event:
		default:
		}
	}
}

// ServeWS upgrades the request and runs the connection protocol: the first
// message must be authenticate; everything after routes to the match service.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	out := newWSConn()
	writerDone := make(chan struct{})
	closeWriter := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case event := <-out.send:
				if err := conn.WriteJSON(event); err != nil {
					log.Debug().Err(err).Msg("ws write error")
					return
				}
			case <-closeWriter:
				// Flush whatever is already queued, auth errors included.
				for {
					select {
					case event := <-out.send:
						if err := conn.WriteJSON(event); err != nil {
							return
						}
					default:
						return
					}
				}
			}
		}
	}()

	identity, ok := h.authenticate(conn, out)
	if ok {
		h.readLoop(r.Context(), conn, out, identity)
		h.service.Disconnect(identity.UserID)
	}

	close(closeWriter)
	<-writerDone
}

// authenticate enforces the authenticate-first protocol. Unauthenticated
// attempts fail locally with no match-side effects.
func (h *WSHandler) authenticate(conn *websocket.Conn, out *wsConn) (domain.Identity, bool) {
	var inbound inboundMessage
	if err := conn.ReadJSON(&inbound); err != nil {
		return domain.Identity{}, false
	}
	if inbound.Type != "authenticate" {
		out.Send(match.Event{Type: "auth_error", Payload: errorPayload{Message: domain.ErrNotAuthenticated.Error()}})
		return domain.Identity{}, false
	}

	var payload authenticatePayload
	if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
		out.Send(match.Event{Type: "auth_error", Payload: errorPayload{Message: "invalid authenticate payload"}})
		return domain.Identity{}, false
	}

	identity, err := h.verifier.Verify(payload.Token)
	if err != nil {
		out.Send(match.Event{Type: "auth_error", Payload: errorPayload{Message: err.Error()}})
		return domain.Identity{}, false
	}

	out.Send(match.Event{Type: "authenticated", Payload: authenticatedPayload{
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
	}})
	return identity, true
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, out *wsConn, identity domain.Identity) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}

		switch inbound.Type {
		case "create_match":
			var payload createMatchPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: "invalid create_match payload"}})
				continue
			}
			info, err := h.service.CreateMatch(ctx, identity, payload.QuizID, payload.MaxPlayers)
			if err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			out.Send(match.Event{Type: "match_created", Payload: matchCreatedPayload{
				MatchID:   info.ID,
				MatchCode: info.JoinCode,
			}})

		case "join_match":
			var payload joinMatchPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: "invalid join_match payload"}})
				continue
			}
			info, err := h.service.JoinByCode(payload.MatchCode, identity, out)
			if err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			out.Send(match.Event{Type: "match_joined", Payload: info})

		case "player_ready":
			if err := h.service.MarkReady(identity.UserID); err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
			}

		case "submit_answer":
			var payload submitAnswerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: "invalid submit_answer payload"}})
				continue
			}
			result, err := h.service.SubmitAnswer(identity.UserID, domain.AnswerSubmission{
				QuestionID:      payload.QuestionID,
				SelectedOptions: payload.SelectedOptions,
				TimeSpentSec:    payload.TimeSpentSec,
			})
			if err != nil {
				out.Send(match.Event{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			out.Send(match.Event{Type: "answer_result", Payload: result})

		default:
			out.Send(match.Event{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}
}
