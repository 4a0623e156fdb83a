package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/timerange"
)

const trendDays = 7

// GetAnalytics aggregates the ticket ledger into the dashboard read
// model: window totals, the seller ranking for the requested window and
// the seven-day trend. Responses are cached per window and local date.
func (s *Service) GetAnalytics(ctx context.Context, window string) (domain.AnalyticsResponse, error) {
	if window == "" {
		window = domain.WindowWeek
	}

	now := time.Now()
	if _, _, err := timerange.Resolve(window, now, s.loc); err != nil {
		return domain.AnalyticsResponse{}, store.ErrInvalidRequest
	}

	key := fmt.Sprintf("analytics:%s:%s", window, now.In(s.loc).Format("2006-01-02"))
	if cached, ok, err := s.analyticsCache.Get(ctx, key); err != nil {
		log.Printf("[analytics] WARN: cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	resp, err := s.computeAnalytics(ctx, window, now)
	if err != nil {
		return domain.AnalyticsResponse{}, err
	}

	if err := s.analyticsCache.Set(ctx, key, &resp, s.analyticsTTL); err != nil {
		log.Printf("[analytics] WARN: cache write failed key=%s: %v", key, err)
	}
	return resp, nil
}

func (s *Service) computeAnalytics(ctx context.Context, window string, now time.Time) (domain.AnalyticsResponse, error) {
	tickets, err := s.repo.ListTickets(ctx, 0)
	if err != nil {
		return domain.AnalyticsResponse{}, err
	}

	dayStart, dayEnd, _ := timerange.Resolve(timerange.Day, now, s.loc)
	weekStart, weekEnd, _ := timerange.Resolve(timerange.Week, now, s.loc)
	monthStart, monthEnd, _ := timerange.Resolve(timerange.Month, now, s.loc)
	rankStart, rankEnd, _ := timerange.Resolve(window, now, s.loc)

	resp := domain.AnalyticsResponse{
		Window:      window,
		GeneratedAt: now.UTC().Format(time.RFC3339),
	}

	// ListTickets returns newest first; the ranking wants first-seen
	// order, so walk the ledger chronologically.
	bySeller := make(map[string]*domain.SellerStat)
	sellerOrder := make([]string, 0, 8)

	for i := len(tickets) - 1; i >= 0; i-- {
		t := tickets[i]
		if t.Status != domain.TicketStatusActive {
			continue
		}
		if timerange.Contains(t.CreatedAt, dayStart, dayEnd) {
			resp.TotalTodayCents += t.TotalCents
			resp.CountToday++
		}
		if timerange.Contains(t.CreatedAt, weekStart, weekEnd) {
			resp.TotalWeekCents += t.TotalCents
		}
		if timerange.Contains(t.CreatedAt, monthStart, monthEnd) {
			resp.TotalMonthCents += t.TotalCents
		}

		if !timerange.Contains(t.CreatedAt, rankStart, rankEnd) {
			continue
		}
		seller := t.Seller
		if seller == "" {
			seller = "desconocido"
		}
		stat, exists := bySeller[seller]
		if !exists {
			stat = &domain.SellerStat{Name: seller}
			bySeller[seller] = stat
			sellerOrder = append(sellerOrder, seller)
		}
		stat.TotalCents += t.TotalCents
		stat.TicketCount++
	}

	ranking := make([]domain.SellerStat, 0, len(sellerOrder))
	for _, name := range sellerOrder {
		ranking = append(ranking, *bySeller[name])
	}
	// Stable sort keeps first-seen order between equal totals.
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].TotalCents > ranking[j].TotalCents
	})
	resp.Ranking = ranking

	resp.Trend = s.buildTrend(tickets, now)
	return resp, nil
}

// buildTrend produces the last seven local days, oldest first. Bar
// heights are percentages of the busiest day; the divisor is floored at
// one so an empty week still renders flat bars instead of dividing by
// zero.
func (s *Service) buildTrend(tickets []domain.Ticket, now time.Time) []domain.TrendPoint {
	trend := make([]domain.TrendPoint, 0, trendDays)
	for i := trendDays - 1; i >= 0; i-- {
		day := timerange.StartOfDay(now.In(s.loc).AddDate(0, 0, -i), s.loc)
		next := day.AddDate(0, 0, 1)

		total := int64(0)
		for _, t := range tickets {
			if t.Status != domain.TicketStatusActive {
				continue
			}
			if timerange.Contains(t.CreatedAt, day, next) {
				total += t.TotalCents
			}
		}

		trend = append(trend, domain.TrendPoint{
			Label:      day.Weekday().String()[:3],
			Date:       day.Format("2006-01-02"),
			TotalCents: total,
		})
	}

	maxTotal := int64(1)
	for _, p := range trend {
		if p.TotalCents > maxTotal {
			maxTotal = p.TotalCents
		}
	}
	for i := range trend {
		trend[i].Height = int(trend[i].TotalCents * 100 / maxTotal)
	}
	return trend
}
