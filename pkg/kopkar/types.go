package kopkar

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrSessionExpired is returned when the backend rejects the stored
	// token. The session has been signed out when it is returned.
	ErrSessionExpired = errors.New("kopkar: session expired")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("kopkar: amount must be positive")

	// ErrNoToken is returned when a sign-in answer carries no token.
	ErrNoToken = errors.New("kopkar: sign-in response has no token")
)

// HistoryType selects the ledger a history or total refers to.
type HistoryType string

const (
	HistoryLoans   HistoryType = "pinjaman"
	HistorySavings HistoryType = "simpanan"
)

// ParseHistoryType accepts the wire values and their English names.
func ParseHistoryType(s string) (HistoryType, error) {
	switch s {
	case string(HistoryLoans), "loans", "loan":
		return HistoryLoans, nil
	case string(HistorySavings), "savings", "saving":
		return HistorySavings, nil
	default:
		return "", fmt.Errorf("unknown history type %q (want %s or %s)", s, HistoryLoans, HistorySavings)
	}
}

// Profile is the signed-in member.
type Profile struct {
	Nama       string `json:"nama"`
	KoperasiID string `json:"koperasi_id"`
	AnggotaID  string `json:"anggota_id"`
	Bank       string `json:"bank"`
	NoRek      string `json:"no_rek"`
}

// MemberID is the cooperative id followed by the member id, as printed
// on the member card.
func (p Profile) MemberID() string {
	return p.KoperasiID + p.AnggotaID
}

// HistoryEntry is one row of a loan or savings history.
type HistoryEntry struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// Overview is a ledger total with the first page of its history.
type Overview struct {
	Type    HistoryType     `json:"type"`
	Total   decimal.Decimal `json:"total"`
	Entries []HistoryEntry  `json:"entries"`
	Next    int             `json:"next"`
	HasMore bool            `json:"has_more"`
}

// APIError is a request the backend answered with a statusCode other
// than 200 (or none at all), or that never got an answer. StatusCode is
// the HTTP status when the body carried no statusCode.
type APIError struct {
	StatusCode int
	Message    string

	// Err is the request error behind a failure result, nil when the
	// backend answered with a non-200 statusCode in a 2xx response.
	Err error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("kopkar: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

type credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type historyQuery struct {
	Start    int         `json:"start" validate:"min=0"`
	NextDraw int         `json:"nextDraw" validate:"min=1"`
	Type     HistoryType `json:"type" validate:"oneof=pinjaman simpanan"`
}

type totalQuery struct {
	Type HistoryType `json:"type" validate:"oneof=pinjaman simpanan"`
}

type amountRequest struct {
	Amount string `json:"simpanan_sukarela" validate:"required"`
}

// historyPage is the wire shape of trx/histories. Servers report the
// continuation either as an offset (next) or as the number of rows still
// to draw (nextDraw).
type historyPage struct {
	Data     []HistoryEntry `json:"data"`
	Next     *int           `json:"next"`
	NextDraw *int           `json:"nextDraw"`
}

// nextOffset converts the continuation to an offset cursor. An explicit
// next wins when it advances past start; otherwise rows still to draw
// continue after this page. A cursor that does not advance ends the list.
func (p historyPage) nextOffset(start int) int {
	switch {
	case p.Next != nil && *p.Next > start:
		return *p.Next
	case p.NextDraw != nil && *p.NextDraw > 0:
		return start + len(p.Data)
	default:
		return start
	}
}
