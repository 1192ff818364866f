package kopkar

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kopkar/kopkar-client/pkg/pagination"
)

// DefaultPageSize is the number of history rows requested per page.
const DefaultPageSize = 10

// Total returns the ledger total for typ. A missing total is zero.
func (s *Service) Total(ctx context.Context, typ HistoryType) (decimal.Decimal, error) {
	query := totalQuery{Type: typ}
	if err := s.validate.Struct(query); err != nil {
		return decimal.Zero, fmt.Errorf("invalid total query: %w", err)
	}

	result, err := s.requester.PostJSON(ctx, EndpointTotal, query)
	if err != nil {
		return decimal.Zero, err
	}
	if err := checkResult(result); err != nil {
		return decimal.Zero, err
	}

	var total decimal.Decimal
	found, err := result.Field("data", &total)
	if err != nil {
		return decimal.Zero, err
	}
	if !found {
		return decimal.Zero, nil
	}
	return total, nil
}

// Histories fetches up to limit rows of typ starting at offset start.
// The returned page's Next is an offset; it equals start when there is
// nothing more.
func (s *Service) Histories(ctx context.Context, typ HistoryType, start, limit int) (pagination.Page[HistoryEntry], error) {
	query := historyQuery{Start: start, NextDraw: limit, Type: typ}
	if err := s.validate.Struct(query); err != nil {
		return pagination.Page[HistoryEntry]{}, fmt.Errorf("invalid history query: %w", err)
	}

	result, err := s.requester.PostJSON(ctx, EndpointHistories, query)
	if err != nil {
		return pagination.Page[HistoryEntry]{}, err
	}
	if err := checkResult(result); err != nil {
		return pagination.Page[HistoryEntry]{}, err
	}

	var page historyPage
	if err := result.Decode(&page); err != nil {
		return pagination.Page[HistoryEntry]{}, err
	}

	s.logger.Debug().
		Str("type", string(typ)).
		Int("cursor", start).
		Int("items", len(page.Data)).
		Msg("History page fetched")

	return pagination.Page[HistoryEntry]{
		Items: page.Data,
		Next:  page.nextOffset(start),
	}, nil
}

// HistoryFetcher adapts Histories to a pagination.FetchFunc.
func (s *Service) HistoryFetcher(typ HistoryType, limit int) pagination.FetchFunc[HistoryEntry] {
	return func(ctx context.Context, cursor int) (pagination.Page[HistoryEntry], error) {
		return s.Histories(ctx, typ, cursor, limit)
	}
}

// Overview fetches the total and the first history page of typ
// concurrently.
func (s *Service) Overview(ctx context.Context, typ HistoryType, limit int) (*Overview, error) {
	g, gctx := errgroup.WithContext(ctx)

	var total decimal.Decimal
	g.Go(func() error {
		var err error
		total, err = s.Total(gctx, typ)
		if err != nil {
			return fmt.Errorf("total: %w", err)
		}
		return nil
	})

	var first pagination.Page[HistoryEntry]
	g.Go(func() error {
		var err error
		first, err = s.Histories(gctx, typ, 0, limit)
		if err != nil {
			return fmt.Errorf("histories: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Overview{
		Type:    typ,
		Total:   total,
		Entries: first.Items,
		Next:    first.Next,
		HasMore: len(first.Items) > 0 && first.Next > 0,
	}, nil
}
