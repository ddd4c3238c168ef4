package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	Credit Direction = "credit"
	Debit  Direction = "debit"
)

func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// EntryKind replaces remark-substring tagging. It is set once, when the row is created.
type EntryKind string

const (
	KindOrdinary   EntryKind = "ordinary"
	KindSettlement EntryKind = "settlement"
	KindVirtual    EntryKind = "virtual"
)

// Category names the virtual bookkeeping bucket of a KindVirtual entry.
type Category string

const (
	CategoryNone       Category = ""
	CategoryCommission Category = "commission"
	CategoryCompany    Category = "company"
	CategoryComp       Category = "comp"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryNone, CategoryCommission, CategoryCompany, CategoryComp:
		return true
	}
	return false
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CompanyName  string    `db:"company_name" json:"company_name"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Party struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	Name           string          `db:"name" json:"name"`
	Status         string          `db:"status" json:"status"`
	CommissionRate decimal.Decimal `db:"commission_rate" json:"commission_rate"`
	Rate           decimal.Decimal `db:"rate" json:"rate"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

const (
	PartyActive   = "active"
	PartyInactive = "inactive"
)

// LedgerEntry is one bookkeeping line against a party. Balance is derived by replay and
// never accepted from a client.
type LedgerEntry struct {
	ID             string          `db:"id" json:"id"`
	UserID         string          `db:"user_id" json:"user_id"`
	PartyName      string          `db:"party_name" json:"party_name"`
	Date           time.Time       `db:"entry_date" json:"date"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	Direction      Direction       `db:"direction" json:"direction"`
	Credit         decimal.Decimal `db:"credit" json:"credit"`
	Debit          decimal.Decimal `db:"debit" json:"debit"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	Remarks        string          `db:"remarks" json:"remarks"`
	Kind           EntryKind       `db:"kind" json:"kind"`
	Category       Category        `db:"category" json:"category,omitempty"`
	IsOldRecord    bool            `db:"is_old_record" json:"is_old_record"`
	SettlementDate *time.Time      `db:"settlement_date" json:"settlement_date,omitempty"`
	SettlementRef  *string         `db:"settlement_ref" json:"settlement_ref,omitempty"`
}

func (e LedgerEntry) IsSettlementMarker() bool {
	return e.Kind == KindSettlement
}

// Signed is +credit for credits and -debit for debits.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Direction == Debit {
		return e.Debit.Neg()
	}
	return e.Credit
}

// Amount is the magnitude on the active side.
func (e LedgerEntry) Amount() decimal.Decimal {
	if e.Direction == Debit {
		return e.Debit
	}
	return e.Credit
}

type AuditLog struct {
	ID          string    `db:"id" json:"id"`
	ActorUserID *string   `db:"actor_user_id" json:"actor_user_id,omitempty"`
	Action      string    `db:"action" json:"action"`
	EntityType  string    `db:"entity_type" json:"entity_type"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Data        string    `db:"data" json:"data"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
