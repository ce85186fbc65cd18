// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.version)
}

// CheckRequest is the body of POST /v1/throttle/check.
type CheckRequest struct {
	Category   throttle.Category `json:"category"`
	Identifier string            `json:"identifier,omitempty"`
}

// DecisionResponse is the JSON form of a throttle.Decision.
type DecisionResponse struct {
	Category   throttle.Category `json:"category"`
	Identifier string            `json:"identifier"`
	Allowed    bool              `json:"allowed"`
	Limit      int               `json:"limit"`
	Remaining  int               `json:"remaining"`
	ResetInMs  int64             `json:"reset_in_ms"`
}

// StatusResponse is the JSON form of a throttle.Status.
type StatusResponse struct {
	Category          throttle.Category `json:"category"`
	Identifier        string            `json:"identifier"`
	IsBlocked         bool              `json:"is_blocked"`
	RequestsRemaining int               `json:"requests_remaining"`
	ResetInMs         int64             `json:"reset_in_ms"`
}

// RuleResponse is the JSON form of a throttle.Rule.
type RuleResponse struct {
	Category    throttle.Category `json:"category"`
	MaxRequests int               `json:"max_requests"`
	Window      string            `json:"window"`
	Policy      throttle.Policy   `json:"policy"`
	Lockout     string            `json:"lockout,omitempty"`
}

// handleThrottleCheck consumes one unit of quota. Callers may only check
// their own identifier unless they are administrators.
func (s *Server) handleThrottleCheck(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	if req.Category == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "category is required")
		return
	}

	caller := s.userID(r)
	if req.Identifier == "" {
		req.Identifier = caller
	}
	if req.Identifier != caller && !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "forbidden", "cannot check another identifier")
		return
	}

	if _, err := s.throttle.Lookup(req.Category); err != nil {
		writeServiceError(w, r, err)
		return
	}

	d := s.throttle.Check(req.Category, req.Identifier)
	if !d.Allowed {
		throttle.WriteLimited(w, r, d)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse(d))
}

func (s *Server) handleThrottleStatus(w http.ResponseWriter, r *http.Request) {
	key := throttle.Key{
		Category:   throttle.Category(chi.URLParam(r, "category")),
		Identifier: chi.URLParam(r, "identifier"),
	}
	if _, err := s.throttle.Lookup(key.Category); err != nil {
		writeServiceError(w, r, err)
		return
	}

	st := s.throttle.Status(key)
	writeJSON(w, http.StatusOK, StatusResponse{
		Category:          key.Category,
		Identifier:        key.Identifier,
		IsBlocked:         st.IsBlocked,
		RequestsRemaining: st.RequestsRemaining,
		ResetInMs:         st.ResetIn.Milliseconds(),
	})
}

func (s *Server) handleThrottleRules(w http.ResponseWriter, _ *http.Request) {
	rules := s.throttle.Rules()
	resp := make([]RuleResponse, 0, len(rules))
	for _, c := range throttle.SortedCategories(rules) {
		rule := rules[c]
		rr := RuleResponse{
			Category:    c,
			MaxRequests: rule.MaxRequests,
			Window:      rule.Window.String(),
			Policy:      rule.Policy,
		}
		if rr.Policy == "" {
			rr.Policy = throttle.PolicyFixedWindow
		}
		if rule.Lockout > 0 {
			rr.Lockout = rule.Lockout.String()
		}
		resp = append(resp, rr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThrottleSweep(w http.ResponseWriter, _ *http.Request) {
	evicted := s.throttle.Sweep()
	writeJSON(w, http.StatusOK, map[string]int{"evicted": evicted, "remaining": s.throttle.Len()})
}

func (s *Server) handleThrottleReset(w http.ResponseWriter, _ *http.Request) {
	s.throttle.Reset()
	w.WriteHeader(http.StatusNoContent)
}

// FeesResponse is the body of GET /v1/payments/fees.
type FeesResponse struct {
	Kind      payments.Kind `json:"kind"`
	Amount    int64         `json:"amount"`
	Fee       int64         `json:"fee"`
	Net       int64         `json:"net"`
	Currency  string        `json:"currency"`
	Formatted FormattedFees `json:"formatted"`
	Valid     bool          `json:"valid"`
	Error     string        `json:"error,omitempty"`
}

// FormattedFees holds display strings for FeesResponse.
type FormattedFees struct {
	Amount string `json:"amount"`
	Fee    string `json:"fee"`
	Net    string `json:"net"`
}

// handleFees quotes the fee split of an amount. Out-of-bounds amounts are
// still quoted, with valid set to false.
func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "amount must be an integer number of cents")
		return
	}

	kindParam := q.Get("kind")
	if kindParam == "" {
		kindParam = string(payments.KindTip)
	}
	kind, err := payments.ParseKind(kindParam)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp, err := Quote(s.payments.Calculator(), amount, kind)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Quote computes the fee split of amount under calc. Out-of-bounds amounts
// are quoted with Valid set to false; negative amounts are an error.
func Quote(calc *payments.Calculator, amount int64, kind payments.Kind) (FeesResponse, error) {
	fees, err := calc.CalculateFees(amount, kind)
	if err != nil {
		return FeesResponse{}, err
	}
	v := calc.ValidateAmount(amount, kind)

	return FeesResponse{
		Kind:     kind,
		Amount:   fees.Amount,
		Fee:      fees.Fee,
		Net:      fees.Net,
		Currency: calc.Currency(),
		Formatted: FormattedFees{
			Amount: calc.FormatAmount(fees.Amount),
			Fee:    calc.FormatAmount(fees.Fee),
			Net:    calc.FormatAmount(fees.Net),
		},
		Valid: v.Valid,
		Error: v.Error,
	}, nil
}

func (s *Server) handleCreateTip(w http.ResponseWriter, r *http.Request) {
	var req payments.TipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.UserID = s.userID(r)

	tx, err := s.payments.CreateTip(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/payments/transactions/%s", tx.ID))
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handlePurchaseGoldenBoost(w http.ResponseWriter, r *http.Request) {
	var req payments.BoostRequest
	if err := decodeJSON(r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	req.UserID = s.userID(r)

	tx, err := s.payments.PurchaseGoldenBoost(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/payments/transactions/%s", tx.ID))
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	txs, err := s.payments.ListByUser(r.Context(), s.userID(r), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if txs == nil {
		txs = []*payments.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

// handleGetTransaction returns a transaction to its sender, its recipient
// or an administrator. Anyone else gets 404.
func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.payments.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	caller := s.userID(r)
	if tx.UserID != caller && tx.RecipientID != caller && !s.isAdmin(r) {
		writeServiceError(w, r, payments.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func decisionResponse(d throttle.Decision) DecisionResponse {
	return DecisionResponse{
		Category:   d.Category,
		Identifier: d.Identifier,
		Allowed:    d.Allowed,
		Limit:      d.Limit,
		Remaining:  d.Remaining,
		ResetInMs:  d.ResetIn.Milliseconds(),
	}
}
