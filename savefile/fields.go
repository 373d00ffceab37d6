/*
fields.go - Versioned field table

PURPOSE:
  Every field that appeared, widened or changed meaning across file versions
  is listed once here with the first version that carries it. The codec asks
  has(field, version) instead of comparing version numbers inline, so adding
  a version means adding a row.

VERSION HISTORY:
  <21  single money value, no history
   21  budget history and estimate ledgers
   23  money values widen from float32 to float64
   28  tax rates and loan repayment time
   50  ledger years stored as offsets from the start year
   51  spending controls and the next-year estimate
  <=58 files loaded outside game mode are reset after load
   59  current
*/
package savefile

const (
	VersionHistory      = 21
	VersionDoubleMoney  = 23
	VersionTaxRates     = 28
	VersionYearOffset   = 50
	VersionControls     = 51
	VersionLegacyReset  = 58
	CurrentVersion      = 59
	MinSupportedVersion = 1
)

type field int

const (
	fieldHistory field = iota
	fieldDoubleMoney
	fieldTaxRates
	fieldYearOffset
	fieldControls
	fieldEstimateNext
)

var fieldSince = map[field]int{
	fieldHistory:      VersionHistory,
	fieldDoubleMoney:  VersionDoubleMoney,
	fieldTaxRates:     VersionTaxRates,
	fieldYearOffset:   VersionYearOffset,
	fieldControls:     VersionControls,
	fieldEstimateNext: VersionControls,
}

func has(f field, version int) bool { return version >= fieldSince[f] }

func supported(version int) bool {
	return version >= MinSupportedVersion && version <= CurrentVersion
}
