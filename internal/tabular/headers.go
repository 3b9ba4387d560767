package tabular

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical column names.
const (
	ColID             = "id"
	ColName           = "name"
	ColFollowers      = "followers"
	ColUnitFee        = "unit_fee"
	ColSecUsage       = "sec_usage"
	ColSecPeriod      = "sec_period"
	ColContractSeason = "contract_season"
	ColTotalQty       = "total_qty"
	ColSeason         = "season"
	ColMonth          = "month"
	ColBrand          = "brand"
	ColExecuted       = "executed"
	ColPlanned        = "planned"
	ColURL            = "url"
	ColStatus         = "status"
	ColTarget         = "target"
	ColBrandContract  = "brand_contract"
	ColBrandExecuted  = "brand_executed"
	ColBrandRemaining = "brand_remaining"
	ColTotalContract  = "total_contract"
	ColTotalExecuted  = "total_executed"
	ColTotalRemaining = "total_remaining"
	ColSource         = "source"
	ColBatchID        = "batch_id"
	ColAssignedAt     = "assigned_at"
	ColUpdatedAt      = "updated_at"
)

var aliases = map[string]string{
	"sns_id":          ColID,
	"인플루언서id":         ColID,
	"이름":              ColName,
	"인플루언서_이름":        ColName,
	"follower":        ColFollowers,
	"flw":             ColFollowers,
	"팔로워":             ColFollowers,
	"1회계약단가":          ColUnitFee,
	"unit fee":        ColUnitFee,
	"2차활용":            ColSecUsage,
	"2차기간":            ColSecPeriod,
	"contract_sesn":   ColContractSeason,
	"시즌":              ColSeason,
	"계절":              ColSeason,
	"배정월":             ColMonth,
	"배정_월":            ColMonth,
	"실행_월":            ColMonth,
	"월":               ColMonth,
	"브랜드":             ColBrand,
	"실제집행수":           ColExecuted,
	"executed_count":  ColExecuted,
	"집행수":             ColExecuted,
	"계획수":             ColPlanned,
	"집행url":           ColURL,
	"상태":              ColStatus,
	"집행상태":            ColStatus,
	"목표":              ColTarget,
	"target_quantity": ColTarget,
	"배정수량":            ColTarget,
	"브랜드_계약수":         ColBrandContract,
	"브랜드_실집행수":        ColBrandExecuted,
	"브랜드_집행수":         ColBrandExecuted,
	"브랜드_잔여수":         ColBrandRemaining,
	"전체_계약수":          ColTotalContract,
	"전체_실집행수":         ColTotalExecuted,
	"전체_집행수":          ColTotalExecuted,
	"전체_잔여수":          ColTotalRemaining,
	"배정방식":            ColSource,
	"배치id":            ColBatchID,
	"배정일시":            ColAssignedAt,
	"수정일시":            ColUpdatedAt,
}

// Canonical maps a header cell to its canonical column name. Cells are
// trimmed, NFC normalised and lower-cased; unknown names come back in that
// normalised form.
func Canonical(h string) string {
	key := strings.ToLower(strings.TrimSpace(norm.NFC.String(strings.TrimPrefix(h, "\ufeff"))))
	if c, ok := aliases[key]; ok {
		return c
	}
	// quota columns exported as "mlb_cnt" use the roster's "_qty" form
	if strings.HasSuffix(key, "_cnt") {
		return strings.TrimSuffix(key, "_cnt") + "_qty"
	}
	return key
}
