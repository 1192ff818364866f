package kopkar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kopkar/kopkar-client/pkg/client"
)

const (
	fieldAmount = "simpanan_sukarela"
	fieldProof  = "bukti_transfer"

	defaultProofType = "image/jpeg"
	defaultProofExt  = "jpg"
)

// DepositRequest is a voluntary savings deposit with its transfer proof.
type DepositRequest struct {
	Amount decimal.Decimal

	// Proof is the transfer receipt image.
	Proof io.Reader `validate:"required"`

	// FileName is the local name of the proof; only its extension is
	// sent.
	FileName string `validate:"required"`
}

// RequestLoan submits a loan request for amount and returns the
// backend's confirmation message.
func (s *Service) RequestLoan(ctx context.Context, amount decimal.Decimal) (string, error) {
	if amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	body := amountRequest{Amount: amount.String()}
	if err := s.validate.Struct(body); err != nil {
		return "", fmt.Errorf("invalid loan request: %w", err)
	}

	result, err := s.requester.PostJSON(ctx, EndpointLoan, body)
	if err != nil {
		return "", err
	}
	if err := checkResult(result); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("amount", amount.String()).
		Msg("Loan requested")
	return result.Message, nil
}

// Deposit uploads a savings deposit as a multipart form and returns the
// backend's confirmation message.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (string, error) {
	if req.Amount.Sign() <= 0 {
		return "", ErrInvalidAmount
	}
	if err := s.validate.Struct(req); err != nil {
		return "", fmt.Errorf("invalid deposit request: %w", err)
	}

	body, contentType, err := encodeDeposit(req)
	if err != nil {
		return "", err
	}

	header := make(http.Header)
	header.Set("Accept", "application/json")
	header.Set("Content-Type", contentType)

	result, err := s.requester.Do(ctx, EndpointDeposit, client.RequestOptions{
		Method: http.MethodPost,
		Header: header,
		Body:   body,
	})
	if err != nil {
		return "", err
	}
	if err := checkResult(result); err != nil {
		return "", err
	}

	s.logger.Info().
		Str("amount", req.Amount.String()).
		Int("form_bytes", len(body)).
		Msg("Deposit submitted")
	return result.Message, nil
}

// encodeDeposit renders the form once so every retry replays the same
// bytes.
func encodeDeposit(req DepositRequest) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField(fieldAmount, req.Amount.String()); err != nil {
		return nil, "", fmt.Errorf("write amount field: %w", err)
	}

	ext, mimeType := proofType(req.FileName)
	part := make(textproto.MIMEHeader)
	part.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`,
		fieldProof, "photo_"+uuid.NewString()+"."+ext))
	part.Set("Content-Type", mimeType)

	pw, err := w.CreatePart(part)
	if err != nil {
		return nil, "", fmt.Errorf("create proof part: %w", err)
	}
	if _, err := io.Copy(pw, req.Proof); err != nil {
		return nil, "", fmt.Errorf("read proof: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

// proofType derives the upload extension and MIME type from name,
// falling back to JPEG.
func proofType(name string) (string, string) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return defaultProofExt, defaultProofType
	}
	mimeType := mime.TypeByExtension("." + ext)
	if mimeType == "" {
		return ext, defaultProofType
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return ext, mimeType
}
