// Package domain holds the transaction journal: an append-only, hash-chained
// record of every monetary and share movement.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Direction of a journal entry.
type Direction string

const (
	DirectionDebit  Direction = "DEBIT"
	DirectionCredit Direction = "CREDIT"
)

// Kind classifies what movement the entry records.
type Kind string

const (
	KindPurchase      Kind = "PURCHASE"
	KindSale          Kind = "SALE"
	KindPaymentFailed Kind = "PAYMENT_FAILED"
	KindReversal      Kind = "REVERSAL"
)

// GenesisHash is the previous-hash value of the first entry in a chain.
var GenesisHash = strings.Repeat("0", 64)

// Entry is one link in the journal chain. Entries are never updated or
// deleted; corrections are new reversing entries. Hash covers the entry's
// own fields plus the previous entry's hash, so any later edit of a stored
// row breaks recomputation from that sequence onward.
type Entry struct {
	gorm.Model
	Sequence     uint64          `gorm:"column:sequence;uniqueIndex;not null" json:"sequence"`
	EntryID      string          `gorm:"column:entry_id;type:varchar(32);uniqueIndex;not null" json:"entry_id"`
	OrderID      string          `gorm:"column:order_id;type:varchar(32);index;not null" json:"order_id"`
	Account      string          `gorm:"column:account;type:varchar(64);index;not null" json:"account"`
	Direction    Direction       `gorm:"column:direction;type:varchar(10);not null" json:"direction"`
	Kind         Kind            `gorm:"column:kind;type:varchar(20);not null" json:"kind"`
	Amount       decimal.Decimal `gorm:"column:amount;type:decimal(20,8);not null" json:"amount"`
	PreviousHash string          `gorm:"column:previous_hash;type:char(64);not null" json:"previous_hash"`
	Hash         string          `gorm:"column:hash;type:char(64);not null" json:"hash"`
}

// TableName implements gorm schema.Tabler.
func (Entry) TableName() string { return "journal_entries" }

// UserAccount formats a user-side account reference.
func UserAccount(userID string) string { return "user:" + userID }

// ListingAccount formats a listing-side account reference.
func ListingAccount(listingID string) string { return "listing:" + listingID }

// CanonicalPayload is the deterministic encoding fed to the digest. Amount
// is rendered at the column scale so recomputation from a stored row
// matches the value hashed at append time.
func (e *Entry) CanonicalPayload() string {
	return fmt.Sprintf("%d|%s|%s|%s|%s|%s",
		e.Sequence,
		e.OrderID,
		e.Account,
		e.Direction,
		e.Kind,
		e.Amount.StringFixed(8),
	)
}

// ComputeHash returns SHA-256(previous_hash || canonical payload).
func (e *Entry) ComputeHash() string {
	h := sha256.Sum256([]byte(e.PreviousHash + "|" + e.CanonicalPayload()))
	return hex.EncodeToString(h[:])
}

// Seal links the entry to its predecessor and stamps its hash.
func (e *Entry) Seal(sequence uint64, previousHash string) {
	e.Sequence = sequence
	e.PreviousHash = previousHash
	e.Hash = e.ComputeHash()
}

// VerificationResult reports the outcome of a chain verification.
type VerificationResult struct {
	OK bool `json:"ok"`
	// FirstMismatchSeq is the sequence of the first entry whose stored hash
	// disagrees with the recomputed one. Only set when OK is false.
	FirstMismatchSeq uint64 `json:"first_mismatch_seq,omitempty"`
	// EntriesChecked is how many entries the verification covered.
	EntriesChecked int `json:"entries_checked"`
}

// Err returns ErrTamperDetected when the verification failed, nil otherwise.
func (r *VerificationResult) Err() error {
	if r.OK {
		return nil
	}
	return ErrTamperDetected
}
