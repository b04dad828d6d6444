package engine

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/predix/prediction-engine/internal/asset"
	"github.com/predix/prediction-engine/internal/model"
)

// --- Request types ---

// GenesisRequest is the JSON body for POST /api/v1/genesis.
type GenesisRequest struct {
	Sender string `json:"sender"`
}

// BetRequest is the JSON body for POST /api/v1/bets. Funds carries the
// attached native coins; TokenContract identifies the invoking token
// contract for token-receive bets.
type BetRequest struct {
	Sender        string          `json:"sender"`
	Position      model.Position  `json:"position"`
	Amount        decimal.Decimal `json:"amount"`
	Funds         []asset.Coin    `json:"funds,omitempty"`
	TokenContract string          `json:"token_contract,omitempty"`
}

// ExecuteRequest is the JSON body for POST /api/v1/rounds/execute.
type ExecuteRequest struct {
	Sender string `json:"sender"`
}

// ClaimRequest is the JSON body for POST /api/v1/claims.
type ClaimRequest struct {
	Sender string `json:"sender"`
	Epoch  uint64 `json:"epoch"`
}

// WithdrawRequest is the JSON body for POST /api/v1/withdraw.
type WithdrawRequest struct {
	Sender string `json:"sender"`
}

// PauseRequest is the JSON body for POST /api/v1/pause.
type PauseRequest struct {
	Sender string `json:"sender"`
}

// UpdateConfigRequest is the JSON body for PATCH /api/v1/config.
type UpdateConfigRequest struct {
	Sender string `json:"sender"`
	ConfigUpdate
}

// --- HTTP Handlers ---

// HandleGenesis handles POST /api/v1/genesis.
func (s *Service) HandleGenesis(w http.ResponseWriter, r *http.Request) {
	var req GenesisRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	st, err := s.StartGenesisRound(r.Context(), req.Sender, s.clock())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleBet handles POST /api/v1/bets.
func (s *Service) HandleBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	if req.Sender == "" {
		writeMessage(w, http.StatusBadRequest, "sender is required")
		return
	}
	in := asset.Inbound{
		Amount:        req.Amount,
		Funds:         req.Funds,
		TokenContract: req.TokenContract,
	}
	bet, err := s.Bet(r.Context(), req.Sender, req.Position, in, s.clock())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// HandleExecute handles POST /api/v1/rounds/execute.
func (s *Service) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	res, err := s.ExecuteRound(r.Context(), req.Sender, s.clock())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleClaim handles POST /api/v1/claims.
func (s *Service) HandleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	res, err := s.Claim(r.Context(), req.Sender, req.Epoch, s.clock())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleWithdraw handles POST /api/v1/withdraw.
func (s *Service) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	res, err := s.Withdraw(r.Context(), req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandlePause handles POST /api/v1/pause.
func (s *Service) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	st, err := s.Pause(r.Context(), req.Sender)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleUpdateConfig handles PATCH /api/v1/config.
func (s *Service) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UpdateConfigRequest
	if err := decode(w, r, &req); err != nil {
		return
	}
	cfg, err := s.UpdateConfig(r.Context(), req.Sender, req.ConfigUpdate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleConfig handles GET /api/v1/config.
func (s *Service) HandleConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.Config(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// HandleState handles GET /api/v1/state.
func (s *Service) HandleState(w http.ResponseWriter, r *http.Request) {
	st, err := s.State(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRound handles GET /api/v1/rounds/{epoch}.
func (s *Service) HandleRound(w http.ResponseWriter, r *http.Request) {
	epoch, err := strconv.ParseUint(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid epoch")
		return
	}
	rnd, err := s.Round(r.Context(), epoch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rnd)
}

// HandleBetQuery handles GET /api/v1/rounds/{epoch}/bets/{user}.
func (s *Service) HandleBetQuery(w http.ResponseWriter, r *http.Request) {
	epoch, err := strconv.ParseUint(chi.URLParam(r, "epoch"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid epoch")
		return
	}
	bet, err := s.BetOf(r.Context(), epoch, chi.URLParam(r, "user"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// Routes mounts all engine endpoints on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Post("/genesis", s.HandleGenesis)
	r.Post("/bets", s.HandleBet)
	r.Post("/rounds/execute", s.HandleExecute)
	r.Post("/claims", s.HandleClaim)
	r.Post("/withdraw", s.HandleWithdraw)
	r.Post("/pause", s.HandlePause)
	r.Patch("/config", s.HandleUpdateConfig)

	r.Get("/config", s.HandleConfig)
	r.Get("/state", s.HandleState)
	r.Get("/rounds/{epoch}", s.HandleRound)
	r.Get("/rounds/{epoch}/bets/{user}", s.HandleBetQuery)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// --- JSON helpers ---

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the mapped status code.
func writeError(w http.ResponseWriter, err error) {
	writeMessage(w, statusForError(err), err.Error())
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
