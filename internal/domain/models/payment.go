package models

type PaymentState string

const (
	PaymentIdle        PaymentState = "idle"
	PaymentScanQR      PaymentState = "scan_qr"
	PaymentEnterAmount PaymentState = "enter_amount"
	PaymentConfirm     PaymentState = "confirm"
	PaymentProcessing  PaymentState = "processing"
	PaymentSuccess     PaymentState = "success"
	PaymentError       PaymentState = "error"
)

type PaymentType string

const (
	PaymentSettlementCredit PaymentType = "settlement_credit"
	PaymentSettlementDebit  PaymentType = "settlement_debit"
	PaymentCashDeposit      PaymentType = "cash_deposit"
	PaymentCashWithdraw     PaymentType = "cash_withdraw"
)

// PaymentContext travels with the payment sub-FSM for one in-flight payment.
type PaymentContext struct {
	PaymentType  PaymentType `json:"payment_type,omitempty"`
	Amount       float64     `json:"amount"`
	PersonID     int64       `json:"person_id,omitempty"`
	PassengerID  int64       `json:"passenger_id,omitempty"`
	Expected     *QRPayload  `json:"expected,omitempty"`
	QRData       *QRPayload  `json:"qr_data,omitempty"`
	ErrorKind    string      `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
}

// PaymentStatus is the observable state of the payment dialog.
type PaymentStatus struct {
	State   PaymentState   `json:"state"`
	Context PaymentContext `json:"context"`
}
