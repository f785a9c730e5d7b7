package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aegis-otc/aegis-core/params"
	"github.com/aegis-otc/aegis-core/pkg/rfq"
)

// Server maps the REST and WebSocket surfaces onto the RFQ core.
type Server struct {
	store   *rfq.Store
	engine  *rfq.Engine
	bus     *rfq.Bus
	router  *mux.Router
	cfg     params.Server
	log     *zap.Logger
	httpSrv *http.Server
	wsConns atomic.Int64
}

func NewServer(store *rfq.Store, engine *rfq.Engine, bus *rfq.Bus, cfg params.Server, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  store,
		engine: engine,
		bus:    bus,
		router: mux.NewRouter(),
		cfg:    cfg,
		log:    logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/rfq", s.handleSubmitRFQ).Methods("POST")
	s.router.HandleFunc("/orders", s.handleGetOrders).Methods("GET")
	s.router.HandleFunc("/orders/{orderHash}", s.handleGetOrder).Methods("GET")
	s.router.HandleFunc("/orders/{orderHash}/fill", s.handleFillOrder).Methods("POST")
	s.router.HandleFunc("/orders/{orderHash}/cancel", s.handleCancelOrder).Methods("POST")
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the fully-wrapped HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{Addr: addr, Handler: s.Handler()}
	s.log.Info("api server starting", zap.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitRFQ(w http.ResponseWriter, r *http.Request) {
	var req rfq.RFQRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	quote, err := s.engine.SubmitRFQ(req)
	if err != nil {
		s.log.Warn("rfq rejected", zap.Error(err))
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, quote)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("wallet")
	if wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet address required", "")
		return
	}
	orders := s.store.ListByWallet(wallet)
	if orders == nil {
		orders = []rfq.Order{}
	}
	respondJSON(w, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["orderHash"]
	order, err := s.store.Get(hash)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	respondJSON(w, order)
}

func (s *Server) handleFillOrder(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["orderHash"]
	order, err := s.store.Fill(hash)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.log.Info("order filled", zap.String("orderHash", hash))
	respondJSON(w, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["orderHash"]

	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Wallet == "" {
		respondError(w, http.StatusBadRequest, "wallet address required", "")
		return
	}

	order, err := s.store.Cancel(hash, req.Wallet)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}
	s.log.Info("order cancelled", zap.String("orderHash", hash), zap.String("wallet", req.Wallet))
	respondJSON(w, order)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{
		Status:        "ok",
		Timestamp:     time.Now().UnixMilli(),
		WSConnections: int(s.wsConns.Load()),
		TotalOrders:   len(s.store.ListAll()),
	})
}

// ==============================
// Helpers
// ==============================

// respondDomainError maps the core error taxonomy onto HTTP statuses:
// validation 400, unknown order 404, closed order 409, invariant breach 500.
func (s *Server) respondDomainError(w http.ResponseWriter, err error) {
	var verr *rfq.ValidationError
	var terr *rfq.InvalidTransitionError
	switch {
	case errors.As(err, &verr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{
			Error:  "invalid RFQ data",
			Fields: verr.Fields,
		})
	case errors.Is(err, rfq.ErrNotFound):
		respondError(w, http.StatusNotFound, "order does not exist", "")
	case errors.As(err, &terr):
		respondError(w, http.StatusConflict, "order is no longer open", terr.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errMsg,
		Message: message,
	})
}
