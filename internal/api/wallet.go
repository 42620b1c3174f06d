package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/auth"
)

// handleIssueToken issues a bearer token for a self-declared principal.
//
// The marketplace has no account enrolment: a principal is any
// identifier a caller claims, the way a ledger address is simply held.
// The token binds subsequent mutations to that identity.
//
//	POST /auth/token
//	{"principal": "alice"}
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Principal string `json:"principal"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Principal == "" {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must set principal")
		return
	}

	ttl := time.Duration(s.cfg.Security.JWT.TokenTTL) * time.Minute
	token, err := auth.GenerateToken(s.cfg.Security.JWT.Secret, body.Principal, ttl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"principal":  body.Principal,
		"expires_in": int(ttl.Seconds()),
	})
}

// handleGetWallet returns the caller's account.
//
//	GET /wallet
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	caller := auth.PrincipalFromContext(r.Context())
	account, err := s.wallets.Get(r.Context(), caller)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// handleDeposit credits the caller's account.
//
//	POST /wallet/deposit
//	{"amount": 5000}
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount *int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Amount == nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "body must set amount")
		return
	}

	caller := auth.PrincipalFromContext(r.Context())
	balance, err := s.wallets.Deposit(r.Context(), caller, *body.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"principal": caller, "balance": balance})
}
