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

package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kadirpekel/whatssound/pkg/throttle"
)

// Limiter admits or denies a request for (category, identifier).
// *throttle.Throttle satisfies it.
type Limiter interface {
	Allow(category throttle.Category, identifier string) error
}

// Recorder receives payment outcomes.
type Recorder interface {
	RecordPayment(kind Kind, status string)
}

// Outcome labels passed to Recorder.
const (
	OutcomeCreated   = "created"
	OutcomeThrottled = "throttled"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// TipRequest initiates a tip.
type TipRequest struct {
	UserID      string `json:"-"`
	RecipientID string `json:"recipient_id"`
	SessionID   string `json:"session_id,omitempty"`
	Amount      int64  `json:"amount"`
	Message     string `json:"message,omitempty"`
}

// BoostRequest initiates a Golden Boost purchase.
type BoostRequest struct {
	UserID    string `json:"-"`
	SessionID string `json:"session_id"`
	Amount    int64  `json:"amount"`
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceClock overrides the time source for CreatedAt.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides transaction ID generation.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithPaymentRecorder sets the outcome recorder.
func WithPaymentRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithCalculator overrides the fee calculator.
func WithCalculator(c *Calculator) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.calc = c
		}
	}
}

// Service initiates payments.
type Service struct {
	store    Store
	limiter  Limiter
	calc     *Calculator
	recorder Recorder
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewService creates a payment service.
func NewService(store Store, limiter Limiter, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("limiter is required")
	}

	s := &Service{
		store:    store,
		limiter:  limiter,
		calc:     defaultCalculator,
		recorder: nopRecorder{},
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default().With("component", "payments"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type nopRecorder struct{}

func (nopRecorder) RecordPayment(Kind, string) {}

// Calculator returns the fee calculator of the service.
func (s *Service) Calculator() *Calculator {
	return s.calc
}

// CreateTip throttles, validates and records a pending tip.
func (s *Service) CreateTip(ctx context.Context, req TipRequest) (*Transaction, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, s.reject(KindTip, requestError("user_id"))
	}

	if err := s.limiter.Allow(throttle.CategoryPayments, req.UserID); err != nil {
		return nil, s.throttled(KindTip, req.UserID, err)
	}

	if strings.TrimSpace(req.RecipientID) == "" {
		return nil, s.reject(KindTip, requestError("recipient_id"))
	}
	if req.RecipientID == req.UserID {
		return nil, s.reject(KindTip, ErrSelfTip)
	}

	return s.create(ctx, &Transaction{
		Kind:        KindTip,
		UserID:      req.UserID,
		RecipientID: req.RecipientID,
		SessionID:   req.SessionID,
		Amount:      req.Amount,
		Message:     req.Message,
	})
}

// PurchaseGoldenBoost throttles, validates and records a pending Golden
// Boost. Both the payments and goldenBoost categories must admit it.
func (s *Service) PurchaseGoldenBoost(ctx context.Context, req BoostRequest) (*Transaction, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, s.reject(KindGoldenBoost, requestError("user_id"))
	}

	if err := s.limiter.Allow(throttle.CategoryPayments, req.UserID); err != nil {
		return nil, s.throttled(KindGoldenBoost, req.UserID, err)
	}
	if err := s.limiter.Allow(throttle.CategoryGoldenBoost, req.UserID); err != nil {
		return nil, s.throttled(KindGoldenBoost, req.UserID, err)
	}

	if strings.TrimSpace(req.SessionID) == "" {
		return nil, s.reject(KindGoldenBoost, requestError("session_id"))
	}

	return s.create(ctx, &Transaction{
		Kind:      KindGoldenBoost,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Amount:    req.Amount,
	})
}

func (s *Service) create(ctx context.Context, tx *Transaction) (*Transaction, error) {
	if err := s.calc.Validate(tx.Amount, tx.Kind); err != nil {
		return nil, s.reject(tx.Kind, err)
	}

	fees, err := s.calc.CalculateFees(tx.Amount, tx.Kind)
	if err != nil {
		return nil, s.reject(tx.Kind, err)
	}

	tx.ID = s.newID()
	tx.Fee = fees.Fee
	tx.Net = fees.Net
	tx.Currency = s.calc.Currency()
	tx.Status = StatusPending
	tx.CreatedAt = s.now().UTC()

	if err := s.store.Create(ctx, tx); err != nil {
		s.recorder.RecordPayment(tx.Kind, OutcomeFailed)
		s.logger.Error("Failed to store transaction", "kind", tx.Kind, "user_id", tx.UserID, "error", err)
		return nil, fmt.Errorf("failed to create %s: %w", tx.Kind, err)
	}

	s.recorder.RecordPayment(tx.Kind, OutcomeCreated)
	s.logger.Info("Payment created",
		"id", tx.ID,
		"kind", tx.Kind,
		"user_id", tx.UserID,
		"amount", s.calc.FormatAmount(tx.Amount),
		"fee", tx.Fee)
	return tx, nil
}

func (s *Service) throttled(kind Kind, userID string, err error) error {
	s.recorder.RecordPayment(kind, OutcomeThrottled)
	if d, ok := throttle.DecisionFromError(err); ok {
		s.logger.Warn("Payment throttled",
			"kind", kind,
			"user_id", userID,
			"category", d.Category,
			"retry_after_seconds", d.RetryAfterSeconds())
	}
	return err
}

func (s *Service) reject(kind Kind, err error) error {
	s.recorder.RecordPayment(kind, OutcomeRejected)
	return err
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListByUser returns the latest transactions of a user.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	txs, err := s.store.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return txs, nil
}
