package service

import (
	"context"
	"log"
	"strings"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/timerange"
)

// CashCut computes a reconciliation report for the requested window
// without persisting it.
func (s *Service) CashCut(ctx context.Context, req domain.CashCutRequest) (domain.CashCutReport, error) {
	return s.buildCashCut(ctx, req)
}

// SaveCashCut computes the report and stores it. The saved report keeps
// the resolved interval, so re-reading it later always describes the
// same slice of time regardless of when it is read.
func (s *Service) SaveCashCut(ctx context.Context, req domain.CashCutRequest) (domain.CashCutReport, error) {
	report, err := s.buildCashCut(ctx, req)
	if err != nil {
		return domain.CashCutReport{}, err
	}

	saved, err := s.repo.SaveCashCut(ctx, report)
	if err != nil {
		return domain.CashCutReport{}, err
	}

	log.Printf("[cashcut] report saved id=%s window=%s sales=%d variance=%d by=%s",
		saved.ID, saved.Window, saved.SalesCents, saved.VarianceCents, saved.GeneratedBy)
	return *saved, nil
}

func (s *Service) GetCashCut(ctx context.Context, id string) (domain.CashCutReport, error) {
	report, err := s.repo.GetCashCut(ctx, id)
	if err != nil {
		return domain.CashCutReport{}, err
	}
	return *report, nil
}

func (s *Service) ListCashCuts(ctx context.Context, limit int) ([]domain.CashCutReport, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ListCashCuts(ctx, limit)
}

func (s *Service) buildCashCut(ctx context.Context, req domain.CashCutRequest) (domain.CashCutReport, error) {
	if req.OpeningCents < 0 || req.ClosingCents < 0 {
		return domain.CashCutReport{}, store.ErrInvalidRequest
	}

	expensesCents := int64(0)
	expenses := make([]domain.Expense, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		e.Label = strings.TrimSpace(e.Label)
		if e.Label == "" || e.AmountCents < 0 {
			return domain.CashCutReport{}, store.ErrInvalidRequest
		}
		expensesCents += e.AmountCents
		expenses = append(expenses, e)
	}

	anchor := time.Now()
	if req.Anchor != nil {
		anchor = *req.Anchor
	}
	start, end, err := timerange.Resolve(req.Window, anchor, s.loc)
	if err != nil {
		return domain.CashCutReport{}, store.ErrInvalidRequest
	}

	tickets, err := s.repo.ListTicketsBetween(ctx, start, end)
	if err != nil {
		return domain.CashCutReport{}, err
	}

	salesCents := int64(0)
	ticketCount := 0
	for _, t := range tickets {
		if t.Status != domain.TicketStatusActive {
			continue
		}
		salesCents += t.TotalCents
		ticketCount++
	}

	expectedCents := req.OpeningCents + salesCents - expensesCents

	return domain.CashCutReport{
		Window:         req.Window,
		Start:          start,
		End:            end,
		OpeningCents:   req.OpeningCents,
		ClosingCents:   req.ClosingCents,
		SalesCents:     salesCents,
		TicketCount:    ticketCount,
		ExpensesCents:  expensesCents,
		ExpectedCents:  expectedCents,
		VarianceCents:  req.ClosingCents - expectedCents,
		NetProfitCents: salesCents - expensesCents,
		Expenses:       expenses,
		GeneratedBy:    actorUsername(ctx),
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
