package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/p2p-bet-engine/internal/bet-service/domain"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/dto"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/engine"
	"github.com/radieske/p2p-bet-engine/internal/bet-service/identity"
)

// HeaderUserID é preenchido pelo gateway de autenticação
const HeaderUserID = "X-User-ID"

// Bets é o subconjunto do engine exposto via HTTP
type Bets interface {
	Create(ctx context.Context, in engine.CreateInput) (engine.View, error)
	Get(ctx context.Context, betID string) (engine.View, error)
	List(ctx context.Context) ([]engine.View, error)
	Delete(ctx context.Context, betID string) error
	Accept(ctx context.Context, betID string) (engine.View, error)
	Reject(ctx context.Context, betID string) (engine.View, error)
	Claim(ctx context.Context, betID string, outcome domain.Outcome) (engine.View, error)
	Confirm(ctx context.Context, betID, recipientID string) (engine.Resolution, error)
	Dispute(ctx context.Context, betID, recipientID string) (engine.View, error)
	Concede(ctx context.Context, betID string) (engine.Resolution, error)
	Cancel(ctx context.Context, betID string) (engine.View, error)
	Stats(ctx context.Context, userID string) (engine.Stats, error)
	SetPaymentHandle(ctx context.Context, in engine.ProfileInput) error
}

type Server struct {
	log  *zap.Logger
	bets Bets
	ws   http.Handler // opcional
}

func NewServer(log *zap.Logger, bets Bets, ws http.Handler) *Server {
	return &Server{log: log, bets: bets, ws: ws}
}

// Router retorna o roteador HTTP com os endpoints REST e o WebSocket
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.logRequests, withActor)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/bets", s.createBet)
		r.Get("/bets", s.listBets)
		r.Get("/bets/{id}", s.getBet)
		r.Delete("/bets/{id}", s.deleteBet)

		r.Post("/bets/{id}/accept", s.viewOp(s.bets.Accept))
		r.Post("/bets/{id}/reject", s.viewOp(s.bets.Reject))
		r.Post("/bets/{id}/cancel", s.viewOp(s.bets.Cancel))
		r.Post("/bets/{id}/concede", s.concede)
		r.Post("/bets/{id}/claim", s.claim)
		r.Post("/bets/{id}/confirm", s.confirm)
		r.Post("/bets/{id}/dispute", s.dispute)

		r.Get("/users/{id}/stats", s.stats)
		r.Put("/profiles/me", s.putProfile)
	})
	if s.ws != nil {
		r.Get("/ws", s.ws.ServeHTTP)
	}
	return r
}

// withActor anexa ao contexto o usuário autenticado pelo gateway
func withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing " + HeaderUserID})
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithActor(r.Context(), id)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	v, err := s.bets.Create(r.Context(), engine.CreateInput{
		Description:  req.Description,
		Stake:        req.Stake,
		DueDate:      req.DueDate,
		Visibility:   domain.Visibility(req.Visibility),
		RecipientIDs: req.RecipientIDs,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	vs, err := s.bets.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vs)
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	v, err := s.bets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) deleteBet(w http.ResponseWriter, r *http.Request) {
	if err := s.bets.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// viewOp adapta as operações sem corpo que devolvem a View
func (s *Server) viewOp(op func(context.Context, string) (engine.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := op(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) claim(w http.ResponseWriter, r *http.Request) {
	var req dto.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	v, err := s.bets.Claim(r.Context(), chi.URLParam(r, "id"), domain.Outcome(strings.ToLower(req.Outcome)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) concede(w http.ResponseWriter, r *http.Request) {
	res, err := s.bets.Concede(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResolve(w, r)
	if !ok {
		return
	}
	res, err := s.bets.Confirm(r.Context(), chi.URLParam(r, "id"), req.RecipientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) dispute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeResolve(w, r)
	if !ok {
		return
	}
	v, err := s.bets.Dispute(r.Context(), chi.URLParam(r, "id"), req.RecipientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// decodeResolve aceita corpo vazio (recipientId é opcional)
func decodeResolve(w http.ResponseWriter, r *http.Request) (dto.ResolveRequest, bool) {
	var req dto.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return req, false
	}
	return req, true
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.bets.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.StatsResponse{
		UserID:    st.UserID,
		Wins:      st.Wins,
		Losses:    st.Losses,
		Open:      st.Open,
		Pending:   st.Pending,
		Cancelled: st.Cancelled,
		Net:       st.Net.StringFixed(2),
		WinRate:   st.WinRate(),
	})
}

func (s *Server) putProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "bad json"})
		return
	}
	if err := s.bets.SetPaymentHandle(r.Context(), engine.ProfileInput{PaymentHandle: req.PaymentHandle}); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError traduz as categorias do domínio para status HTTP
func (s *Server) writeError(w http.ResponseWriter, err error) {
	resp := dto.ErrorResponse{Error: err.Error()}
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		resp.Field = verr.Field
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, domain.ErrNotPermitted):
		writeJSON(w, http.StatusForbidden, resp)
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, domain.ErrUnavailable):
		s.log.Error("store unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "temporarily unavailable"})
	default:
		s.log.Error("unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
