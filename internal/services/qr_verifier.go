package services

import (
	"encoding/json"
	"strings"

	"shuttle/internal/domain"
	"shuttle/internal/domain/models"
)

// QRVerifier turns raw scanned QR content into a payload and checks it against
// the expected sum and recipient.
type QRVerifier interface {
	Verify(raw string, expected models.QRPayload) (models.QRPayload, error)
}

// QRVerifierFunc adapts a function to QRVerifier.
type QRVerifierFunc func(raw string, expected models.QRPayload) (models.QRPayload, error)

func (f QRVerifierFunc) Verify(raw string, expected models.QRPayload) (models.QRPayload, error) {
	return f(raw, expected)
}

// PayloadVerifier reads the JSON payload printed into payment QRs:
// {"sum": 640, "recipient": "Driver Ivanov", "created_at": "..."}.
type PayloadVerifier struct{}

func (PayloadVerifier) Verify(raw string, expected models.QRPayload) (models.QRPayload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.QRPayload{}, domain.NewQRNotFound("")
	}
	var p models.QRPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.QRPayload{}, domain.NewQRNotFound("qr content is not a payment code")
	}
	if err := CheckQR(&p, expected); err != nil {
		return p, err
	}
	return p, nil
}

// AcceptingVerifier treats every scan as the expected payload. It backs the
// demo mode where no camera is attached.
type AcceptingVerifier struct{}

func (AcceptingVerifier) Verify(_ string, expected models.QRPayload) (models.QRPayload, error) {
	return expected, nil
}

// VerifierByName picks a verifier from configuration.
func VerifierByName(name string) (QRVerifier, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "payload":
		return PayloadVerifier{}, nil
	case "accept", "demo":
		return AcceptingVerifier{}, nil
	default:
		return nil, domain.ValidationError{Field: "qr_verifier", Msg: "unknown verifier " + name}
	}
}
