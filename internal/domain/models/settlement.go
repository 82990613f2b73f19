package models

import "time"

// DepositRecordID is reserved for the deposit+commission settlement record.
const DepositRecordID int64 = 999

type PersonType string

const (
	PersonDriver     PersonType = "driver"
	PersonDispatcher PersonType = "dispatcher"
)

type SettlementAction string

const (
	SettleDebit  SettlementAction = "debit"
	SettleCredit SettlementAction = "credit"
)

// SettlementPerson is one obligation line. A positive amount is owed to the
// person ("to accept"), a negative one is owed by the driver ("to debit").
type SettlementPerson struct {
	ID                   int64      `json:"id"`
	Name                 string     `json:"name"`
	Amount               float64    `json:"amount"`
	Type                 PersonType `json:"type"`
	ThroughDispatcher    bool       `json:"through_dispatcher"`
	SelectedDispatcherID string     `json:"selected_dispatcher_id,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	DispatcherName       string     `json:"dispatcher_name,omitempty"`
}

func (p SettlementPerson) Completed() bool {
	return p.CompletedAt != nil
}

// SettlementTotals are derived on demand from the record list.
type SettlementTotals struct {
	ToAccept   float64 `json:"to_accept"`
	ToDebit    float64 `json:"to_debit"`
	NetBalance float64 `json:"net_balance"`
}

// Dispatcher is an intermediary that can take over settlement obligations.
type Dispatcher struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}
