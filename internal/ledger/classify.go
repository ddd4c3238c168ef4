package ledger

import (
	"regexp"
	"strings"

	"bookkeeping/internal/models"
)

const (
	CommissionKey = "Commission"
	CompKey       = "Comp"

	// SettlementTag is the remark prefix written on every settlement marker. It is display
	// text only; markers are recognised by their kind.
	SettlementTag = "Monday Final Settlement"
)

// Classify assigns the kind of a new entry. An explicit category wins; otherwise only an
// exact, case-insensitive party-name match against a virtual category makes the entry
// virtual. Party names that merely contain "comp" or "commission" stay ordinary.
func Classify(party, companyName string, requested models.Category) (models.EntryKind, models.Category) {
	if requested != models.CategoryNone {
		return models.KindVirtual, requested
	}
	if category := VirtualCategory(party, companyName); category != models.CategoryNone {
		return models.KindVirtual, category
	}
	return models.KindOrdinary, models.CategoryNone
}

// VirtualCategory reports which virtual bucket a party name denotes exactly, if any.
func VirtualCategory(party, companyName string) models.Category {
	name := normalize(party)
	switch {
	case name == "":
		return models.CategoryNone
	case companyName != "" && name == normalize(companyName):
		return models.CategoryCompany
	case name == normalize(CommissionKey):
		return models.CategoryCommission
	case name == normalize(CompKey):
		return models.CategoryComp
	}
	return models.CategoryNone
}

// GroupKey is the trial-balance bucket an entry is reported under.
func GroupKey(entry models.LedgerEntry, companyName string) string {
	if entry.Kind != models.KindVirtual {
		return strings.TrimSpace(entry.PartyName)
	}
	switch entry.Category {
	case models.CategoryCommission:
		return CommissionKey
	case models.CategoryComp:
		return CompKey
	case models.CategoryCompany:
		if companyName != "" {
			return companyName
		}
	}
	return strings.TrimSpace(entry.PartyName)
}

var (
	commissionPattern = regexp.MustCompile(`(?i)commission`)
	compWordPattern   = regexp.MustCompile(`(?i)\bcomp\b`)
)

// ClassifyLegacy recovers kinds for rows written before kinds existed, when the only
// signal was free text in the remarks. It is used by the one-time backfill and nowhere
// else. "comp" must appear as a whole word so that names like "Compton" are left alone.
func ClassifyLegacy(party, remarks, companyName string) (models.EntryKind, models.Category) {
	if strings.Contains(strings.ToLower(remarks), strings.ToLower(SettlementTag)) {
		return models.KindSettlement, models.CategoryNone
	}
	if companyName != "" && normalize(party) == normalize(companyName) {
		return models.KindVirtual, models.CategoryCompany
	}
	if commissionPattern.MatchString(party) || commissionPattern.MatchString(remarks) {
		return models.KindVirtual, models.CategoryCommission
	}
	if compWordPattern.MatchString(party) {
		return models.KindVirtual, models.CategoryComp
	}
	return models.KindOrdinary, models.CategoryNone
}

// IsInternalTransfer reports rows whose remarks exactly name the company or the
// commission bucket. Those mirror a movement recorded elsewhere and are left out of the
// trial balance.
func IsInternalTransfer(entry models.LedgerEntry, companyName string) bool {
	remarks := normalize(entry.Remarks)
	if remarks == "" {
		return false
	}
	if companyName != "" && remarks == normalize(companyName) {
		return true
	}
	return remarks == normalize(CommissionKey)
}

func normalize(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// NormalizeName is the comparison form used for party names across the registry.
func NormalizeName(value string) string {
	return normalize(value)
}
