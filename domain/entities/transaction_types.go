package entities

// TransactionReason is the reason code recorded on every ledger entry
type TransactionReason string

// All reason codes written by the ledger
const (
	// Roster-related
	ReasonRegistration       TransactionReason = "registration"
	ReasonGuestRegistration  TransactionReason = "guest_registration"
	ReasonSessionSettlement  TransactionReason = "session_settlement"
	ReasonCancellationRefund TransactionReason = "cancellation_refund"

	// Compensation
	ReasonRegistrationRefund TransactionReason = "registration_refund"
	ReasonRollback           TransactionReason = "rollback"

	// Transfers
	ReasonTransferOut TransactionReason = "transfer_out"
	ReasonTransferIn  TransactionReason = "transfer_in"

	// Administrative
	ReasonTopUp           TransactionReason = "top_up"
	ReasonAdminAdjustment TransactionReason = "admin_adjustment"
)

// IsCompensation returns true for entries that undo an earlier entry
func (r TransactionReason) IsCompensation() bool {
	return r == ReasonRegistrationRefund || r == ReasonRollback
}

// IsRosterRelated returns true for entries tied to a session roster
func (r TransactionReason) IsRosterRelated() bool {
	switch r {
	case ReasonRegistration, ReasonGuestRegistration, ReasonSessionSettlement,
		ReasonCancellationRefund, ReasonRegistrationRefund:
		return true
	}
	return false
}

// IsTransfer returns true for both legs of a transfer
func (r TransactionReason) IsTransfer() bool {
	return r == ReasonTransferOut || r == ReasonTransferIn
}

// Description returns a human-readable label
func (r TransactionReason) Description() string {
	switch r {
	case ReasonRegistration:
		return "Session registration"
	case ReasonGuestRegistration:
		return "Guest registration"
	case ReasonSessionSettlement:
		return "Session settlement"
	case ReasonCancellationRefund:
		return "Cancellation refund"
	case ReasonRegistrationRefund:
		return "refund: failed registration"
	case ReasonRollback:
		return "rollback"
	case ReasonTransferOut:
		return "Gift sent"
	case ReasonTransferIn:
		return "Gift received"
	case ReasonTopUp:
		return "Top-up"
	case ReasonAdminAdjustment:
		return "Admin adjustment"
	default:
		return string(r)
	}
}

// String returns the string representation of the reason
func (r TransactionReason) String() string {
	return string(r)
}
