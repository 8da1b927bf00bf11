package stock_movement

import "kardex/pkg/numerator"

// NumeratorStrategy defines the numbering strategy for movement references.
// References appear on kardex lines, so numbering is gapless.
const NumeratorStrategy = numerator.StrategyStrict

// NumberPrefix maps a movement kind to its reference prefix.
func NumberPrefix(kind Kind) string {
	switch kind {
	case KindReceipt:
		return "RCV"
	case KindIssue:
		return "ISS"
	case KindTransfer:
		return "TRF"
	case KindAdjustment:
		return "ADJ"
	default:
		return "MOV"
	}
}
