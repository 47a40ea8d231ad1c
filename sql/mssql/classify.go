// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

// ColumnTypeChange is the verdict returned by the risk classifier for a
// column type change. The zero value is SafeCast so that an accidentally
// unset verdict is never mistaken for the riskiest outcome.
type ColumnTypeChange uint8

const (
	// SafeCast means the in-place ALTER cannot lose information for any
	// value the source type can hold.
	SafeCast ColumnTypeChange = iota
	// RiskyCast means the ALTER may silently truncate or overflow.
	RiskyCast
	// NotCastable means no in-place ALTER is possible; the column (and
	// usually its table) must be recreated.
	NotCastable
)

func (c ColumnTypeChange) String() string {
	switch c {
	case SafeCast:
		return "SafeCast"
	case RiskyCast:
		return "RiskyCast"
	case NotCastable:
		return "NotCastable"
	default:
		return "Unknown"
	}
}

// worst returns the most severe of the two verdicts, using the ordering
// SafeCast < RiskyCast < NotCastable.
func worst(a, b ColumnTypeChange) ColumnTypeChange {
	if a > b {
		return a
	}
	return b
}

// FamilyClassify is the coarse, family-only classifier. It is used as a
// fallback when either side of a type change has no native type, and as
// the default inside NativeClassify when a case isn't explicitly handled.
//
// Rules are applied in order; the first that matches wins. The ordering is
// significant: rule 1 intentionally takes priority over rule 2, so that,
// e.g., (String, Int) is only NotCastable because rule 2 never gets a
// chance to apply when next is String (it doesn't here, but the ordering
// is preserved verbatim to match the source's documented behavior).
func FamilyClassify(prev, next TypeFamily) ColumnTypeChange {
	if next == FamilyString {
		return SafeCast
	}
	switch {
	case prev == FamilyString && next == FamilyInt:
		return NotCastable
	case prev == FamilyDateTime && next == FamilyFloat:
		return NotCastable
	case prev == FamilyString && next == FamilyFloat:
		return NotCastable
	default:
		return RiskyCast
	}
}

// intWidth is the byte-width of integer types, used for both monotonic
// widening checks and binary-length sufficiency checks.
func intWidth(t NativeType) int {
	switch t.(type) {
	case TinyInt:
		return 1
	case SmallInt:
		return 2
	case Int:
		return 4
	case BigInt:
		return 8
	default:
		return 0
	}
}

// intDigits is the maximum number of decimal digits an integer type's
// values can require (not including a sign).
func intDigits(t NativeType) int {
	switch t.(type) {
	case TinyInt:
		return 3
	case SmallInt:
		return 5
	case Int:
		return 10
	case BigInt:
		return 19
	default:
		return 0
	}
}

// charLen returns the declared length of a character or binary target
// along with whether it was specified at all. Unspecified (nil/absent)
// is reported as ok=false so callers can apply the "absent is risky"
// convention explicitly rather than silently defaulting.
func charLen(t NativeType) (n int, isMax bool, ok bool) {
	switch t := t.(type) {
	case Char:
		if t.Len == nil {
			return 0, false, false
		}
		return *t.Len, false, true
	case NChar:
		if t.Len == nil {
			return 0, false, false
		}
		return *t.Len, false, true
	case Binary:
		if t.Len == nil {
			return 0, false, false
		}
		return *t.Len, false, true
	case VarChar:
		if t.Len == nil {
			return 0, false, false
		}
		if t.Len.IsMax() {
			return 0, true, true
		}
		return t.Len.N(), false, true
	case NVarChar:
		if t.Len == nil {
			return 0, false, false
		}
		if t.Len.IsMax() {
			return 0, true, true
		}
		return t.Len.N(), false, true
	case VarBinary:
		if t.Len == nil {
			return 0, false, false
		}
		if t.Len.IsMax() {
			return 0, true, true
		}
		return t.Len.N(), false, true
	default:
		return 0, false, false
	}
}

// isNVariant reports whether t is a unicode (double-byte) character type.
func isNVariant(t NativeType) bool {
	switch t.(type) {
	case NChar, NVarChar, NText:
		return true
	default:
		return false
	}
}

// isCharTarget reports whether t is any character (string) target type.
func isCharTarget(t NativeType) bool {
	switch t.(type) {
	case Char, NChar, VarChar, NVarChar, Text, NText:
		return true
	default:
		return false
	}
}

// isBinTarget reports whether t is any binary target type.
func isBinTarget(t NativeType) bool {
	switch t.(type) {
	case Binary, VarBinary:
		return true
	default:
		return false
	}
}

// safeIfLenAtLeast classifies a conversion to a character/binary target as
// safe iff the target's declared length (including Max) is at least min.
// An unspecified length is classified as risky, per the spec's "absent is
// indistinguishable from the minimal default" convention.
func safeIfLenAtLeast(next NativeType, min int) ColumnTypeChange {
	n, isMax, ok := charLen(next)
	if !ok {
		return RiskyCast
	}
	if isMax {
		return SafeCast
	}
	if n >= min {
		return SafeCast
	}
	return RiskyCast
}

// NativeClassify is the fine-grained classifier over a pair of optional
// native types. When either side is absent it delegates to FamilyClassify
// using the supplied families.
func NativeClassify(prevFamily, nextFamily TypeFamily, prev, next NativeType) ColumnTypeChange {
	if prev == nil || next == nil {
		return FamilyClassify(prevFamily, nextFamily)
	}
	switch prev := prev.(type) {
	case TinyInt, SmallInt, Int, BigInt:
		return classifyIntSource(prev, next)
	case Decimal:
		return classifyDecimalSource(prev.Params, next)
	case Numeric:
		return classifyDecimalSource(prev.Params, next)
	case Money:
		return classifyMoneySource(true, next)
	case SmallMoney:
		return classifyMoneySource(false, next)
	case Float:
		return classifyFloatSource(floatWidth(prev.N), false, next)
	case Real:
		return classifyFloatSource(4, true, next)
	case Date:
		return classifyDateSource(next)
	case Time:
		return classifyTimeSource(next)
	case DateTime:
		return classifyDateTimeSource(next)
	case DateTime2:
		return classifyDateTime2Source(next)
	case DateTimeOffset:
		return classifyDateTimeOffsetSource(next)
	case SmallDateTime:
		return classifySmallDateTimeSource(next)
	case Char, NChar, VarChar, NVarChar:
		return classifyCharSource(prev, next)
	case Text:
		return classifyTextSource(next)
	case NText:
		return classifyNTextSource(next)
	case Binary, VarBinary:
		return classifyBinarySource(prev, next)
	case Image:
		return classifyImageSource(next)
	case Xml:
		return classifyXMLSource(next)
	case UniqueIdentifier:
		return classifyUniqueIdentifierSource(next)
	default:
		return FamilyClassify(prevFamily, nextFamily)
	}
}

// floatWidth returns the storage width in bytes for a Float(n) declaration,
// where a nil n means the default of 53 (8-byte storage).
func floatWidth(n *int) int {
	if n == nil {
		return 8
	}
	if *n <= 24 {
		return 4
	}
	return 8
}

func classifyIntSource(prev NativeType, next NativeType) ColumnTypeChange {
	d := intDigits(prev)
	switch next := next.(type) {
	case TinyInt, SmallInt, Int, BigInt:
		if intWidth(next) >= intWidth(prev) {
			return SafeCast
		}
		return RiskyCast
	case Bit:
		return RiskyCast
	case Decimal:
		return classifyIntToDecimal(d, next.Params)
	case Numeric:
		return classifyIntToDecimal(d, next.Params)
	case Money, SmallMoney, Float, Real, DateTime, SmallDateTime:
		return SafeCast
	case Char, NChar, VarChar, NVarChar:
		min := d + 1
		if _, ok := prev.(BigInt); ok {
			min = 20
		}
		return safeIfLenAtLeast(next, min)
	case Binary, VarBinary:
		return safeIfBinLenAtLeast(next, intWidth(prev))
	default:
		return NotCastable
	}
}

func classifyIntToDecimal(digits int, params *DecimalParams) ColumnTypeChange {
	p := defaultDecimalParams
	if params != nil {
		p = *params
	}
	if p.Precision-p.Scale >= digits {
		return SafeCast
	}
	return RiskyCast
}

// safeIfBinLenAtLeast classifies a conversion to a binary target as safe
// iff the target's declared byte length (including Max) is at least min.
func safeIfBinLenAtLeast(next NativeType, min int) ColumnTypeChange {
	n, isMax, ok := charLen(next)
	if !ok {
		return RiskyCast
	}
	if isMax {
		return SafeCast
	}
	if n >= min {
		return SafeCast
	}
	return RiskyCast
}

func classifyDecimalSource(params *DecimalParams, next NativeType) ColumnTypeChange {
	p := defaultDecimalParams
	if params != nil {
		p = *params
	}
	switch next.(type) {
	case TinyInt, SmallInt, Int, BigInt, Money, SmallMoney, Bit, Float, Real, DateTime, SmallDateTime, Binary, VarBinary:
		return RiskyCast
	case Date, Time:
		return NotCastable
	case Decimal, Numeric:
		return SafeCast
	case Char, NChar, VarChar, NVarChar:
		min := p.Precision
		if p.Scale > 0 {
			min++
		}
		return safeIfLenAtLeast(next, min)
	default:
		return NotCastable
	}
}

func classifyMoneySource(isMoney bool, next NativeType) ColumnTypeChange {
	switch next := next.(type) {
	case Money:
		return SafeCast
	case SmallMoney:
		if isMoney {
			return RiskyCast
		}
		return SafeCast
	case TinyInt, SmallInt, Int, BigInt, Bit, Float, Real:
		return RiskyCast
	case Decimal:
		return classifyMoneyToDecimal(isMoney, next.Params)
	case Numeric:
		return classifyMoneyToDecimal(isMoney, next.Params)
	case Char, NChar, VarChar, NVarChar:
		min := 21
		if !isMoney {
			min = 12
		}
		return safeIfLenAtLeast(next, min)
	case Binary, VarBinary:
		min := 8
		if !isMoney {
			min = 4
		}
		return safeIfBinLenAtLeast(next, min)
	case UniqueIdentifier:
		return NotCastable
	case DateTime, SmallDateTime:
		return SafeCast
	case Date, Time, DateTime2, DateTimeOffset:
		return RiskyCast
	default:
		return NotCastable
	}
}

func classifyMoneyToDecimal(isMoney bool, params *DecimalParams) ColumnTypeChange {
	if params == nil {
		return RiskyCast
	}
	if isMoney {
		if params.Precision >= 19 && params.Scale >= 4 {
			return SafeCast
		}
		return RiskyCast
	}
	if params.Precision >= 10 && params.Scale >= 4 {
		return SafeCast
	}
	return RiskyCast
}

func classifyFloatSource(srcWidth int, isRealSource bool, next NativeType) ColumnTypeChange {
	switch next := next.(type) {
	case TinyInt, SmallInt, Int, BigInt, Decimal, Numeric, Money, SmallMoney, Bit, DateTime, SmallDateTime:
		return RiskyCast
	case Float:
		if floatWidth(next.N) == srcWidth {
			return SafeCast
		}
		return RiskyCast
	case Real:
		// Real to Real is risky despite being the identity conversion: the
		// source's reference classifier treats it as a distinct declared
		// type pair rather than folding it into the general 4-byte-float
		// case below, so the asymmetry is preserved here intentionally.
		if isRealSource {
			return RiskyCast
		}
		if srcWidth <= 4 {
			return SafeCast
		}
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		min := 317
		if srcWidth <= 4 {
			min = 47
		}
		return safeIfLenAtLeast(next, min)
	case Binary, VarBinary:
		return safeIfBinLenAtLeast(next, srcWidth)
	default:
		return RiskyCast
	}
}

func classifyDateSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case Date, DateTime, DateTime2, DateTimeOffset:
		return SafeCast
	case SmallDateTime:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 10)
	default:
		return NotCastable
	}
}

func classifyTimeSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case Time, DateTime2, DateTimeOffset:
		return SafeCast
	case DateTime, SmallDateTime:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 8)
	default:
		return NotCastable
	}
}

func classifyDateTimeSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case DateTime, DateTime2, DateTimeOffset:
		return SafeCast
	case Date, Time, SmallDateTime:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 23)
	default:
		return NotCastable
	}
}

func classifyDateTime2Source(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case DateTime2, DateTimeOffset:
		return SafeCast
	case Date, Time, DateTime, SmallDateTime:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 27)
	default:
		return NotCastable
	}
}

func classifyDateTimeOffsetSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case DateTimeOffset:
		return SafeCast
	case Date, Time, DateTime, DateTime2, SmallDateTime:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 33)
	default:
		return NotCastable
	}
}

func classifySmallDateTimeSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case Date, DateTime, DateTime2, DateTimeOffset, SmallDateTime:
		return SafeCast
	case Time:
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 19)
	default:
		return NotCastable
	}
}

// charUnits returns the declared length of prev in character units
// (defaulting unspecified lengths to 1, per the spec's character-source
// convention), along with whether prev's length is Max.
func charUnits(prev NativeType) (n int, isMax bool) {
	switch t := prev.(type) {
	case Char:
		if t.Len == nil {
			return 1, false
		}
		return *t.Len, false
	case NChar:
		if t.Len == nil {
			return 1, false
		}
		return *t.Len, false
	case VarChar:
		if t.Len == nil {
			return 1, false
		}
		if t.Len.IsMax() {
			return 0, true
		}
		return t.Len.N(), false
	case NVarChar:
		if t.Len == nil {
			return 1, false
		}
		if t.Len.IsMax() {
			return 0, true
		}
		return t.Len.N(), false
	default:
		return 1, false
	}
}

func classifyCharSource(prev NativeType, next NativeType) ColumnTypeChange {
	switch next.(type) {
	case TinyInt, SmallInt, Int, BigInt, Decimal, Numeric, Money, SmallMoney, Float, Real, Bit,
		Date, Time, DateTime, DateTime2, DateTimeOffset, SmallDateTime:
		return RiskyCast
	}
	if !isCharTarget(next) && !isBinTarget(next) {
		return NotCastable
	}
	// NVarChar source to NVarChar target is special-cased ahead of the
	// generic path below: the source's reference implementation guards the
	// no-explicit-length target arm against the target's own default length
	// rather than the source's declared length. classifyNVarCharToNVarChar
	// compares the source's declared length against that default instead.
	if pv, ok := prev.(NVarChar); ok {
		if nv, ok := next.(NVarChar); ok {
			return classifyNVarCharToNVarChar(pv, nv)
		}
	}
	srcLen, srcMax := charUnits(prev)
	_, prevVarChar := prev.(VarChar)
	if srcMax {
		if nv, ok := next.(NVarChar); ok && nv.Len != nil && nv.Len.IsMax() {
			return SafeCast
		}
		// VarChar(Max) -> Text and NVarChar(Max) -> NText keep every value.
		_, prevNVarChar := prev.(NVarChar)
		switch next.(type) {
		case Text:
			if prevVarChar {
				return SafeCast
			}
		case NText:
			if prevNVarChar {
				return SafeCast
			}
		}
		return RiskyCast
	}
	if isBinTarget(next) {
		width := srcLen
		if isNVariant(prev) {
			width *= 2
		}
		return safeIfBinLenAtLeast(next, width)
	}
	if prevVarChar {
		if nv, ok := next.(NVarChar); ok && nv.Len != nil && nv.Len.IsMax() {
			return SafeCast
		}
	}
	return safeIfLenAtLeast(next, srcLen)
}

// classifyNVarCharToNVarChar classifies an NVarChar-to-NVarChar conversion.
// An absent target length takes SQL Server's default of Len(1); a source
// length of more than 1 against that default is risky, and a source of
// length 1 (declared or absent) is safe.
func classifyNVarCharToNVarChar(prev, next NVarChar) ColumnTypeChange {
	switch {
	case prev.Len != nil && prev.Len.IsMax() && next.Len != nil && next.Len.IsMax():
		return SafeCast
	case prev.Len != nil && prev.Len.IsMax():
		return RiskyCast
	case next.Len != nil && next.Len.IsMax():
		return SafeCast
	case next.Len == nil:
		srcLen := 1
		if prev.Len != nil {
			srcLen = prev.Len.N()
		}
		if srcLen > 1 {
			return RiskyCast
		}
		return SafeCast
	default:
		if prev.Len != nil && prev.Len.N() > next.Len.N() {
			return RiskyCast
		}
		return SafeCast
	}
}

func classifyTextSource(next NativeType) ColumnTypeChange {
	switch n := next.(type) {
	case Text:
		return SafeCast
	case VarChar:
		if n.Len != nil && n.Len.IsMax() {
			return SafeCast
		}
		return RiskyCast
	case NText, NVarChar:
		return RiskyCast
	case Char, NChar:
		return RiskyCast
	default:
		return NotCastable
	}
}

func classifyNTextSource(next NativeType) ColumnTypeChange {
	switch n := next.(type) {
	case NText, Text:
		return SafeCast
	case NVarChar:
		if n.Len != nil && n.Len.IsMax() {
			return SafeCast
		}
		return RiskyCast
	case Char, NChar, VarChar:
		return RiskyCast
	default:
		return NotCastable
	}
}

// decimalStorageBand returns the maximum byte storage the given precision
// occupies as a packed decimal, using the thresholds the classifier uses
// for Binary/VarBinary sources (>4, >8, >12, >16 bytes).
func decimalStorageBand(p int) int {
	switch {
	case p <= 9:
		return 5
	case p <= 19:
		return 9
	case p <= 28:
		return 13
	default:
		return 17
	}
}

func classifyBinarySource(prev NativeType, next NativeType) ColumnTypeChange {
	srcLen, srcMax, ok := charLen(prev)
	if !ok {
		srcLen, srcMax = 1, false
	}
	switch next := next.(type) {
	case TinyInt, SmallInt, Int, BigInt:
		if srcMax {
			return RiskyCast
		}
		if srcLen <= intWidth(next) {
			return SafeCast
		}
		return RiskyCast
	case Decimal:
		return classifyBinToDecimal(srcLen, srcMax, next.Params)
	case Numeric:
		return classifyBinToDecimal(srcLen, srcMax, next.Params)
	case Money:
		if !srcMax && srcLen <= 8 {
			return SafeCast
		}
		return RiskyCast
	case SmallMoney:
		if !srcMax && srcLen <= 4 {
			return SafeCast
		}
		return RiskyCast
	case Float:
		if !srcMax && srcLen <= floatWidth(next.N) {
			return SafeCast
		}
		return RiskyCast
	case Real:
		if !srcMax && srcLen <= 4 {
			return SafeCast
		}
		return RiskyCast
	case Char, NChar, VarChar, NVarChar:
		if srcMax {
			return RiskyCast
		}
		width := srcLen
		if isNVariant(next) {
			width = (srcLen + 1) / 2
		}
		return safeIfLenAtLeast(next, width)
	case Binary, VarBinary:
		if srcMax {
			if isMaxLen(next) {
				return SafeCast
			}
			return RiskyCast
		}
		return safeIfBinLenAtLeast(next, srcLen)
	case Image:
		return SafeCast
	case Xml, UniqueIdentifier, Bit, DateTime, SmallDateTime:
		return RiskyCast
	default:
		return NotCastable
	}
}

func isMaxLen(t NativeType) bool {
	_, isMax, ok := charLen(t)
	return ok && isMax
}

func classifyBinToDecimal(srcLen int, srcMax bool, params *DecimalParams) ColumnTypeChange {
	if srcMax {
		return RiskyCast
	}
	p := defaultDecimalParams
	if params != nil {
		p = *params
	}
	if srcLen <= decimalStorageBand(p.Precision)-1 {
		return SafeCast
	}
	return RiskyCast
}

func classifyImageSource(next NativeType) ColumnTypeChange {
	switch n := next.(type) {
	case Image:
		return SafeCast
	case VarBinary:
		if n.Len != nil && n.Len.IsMax() {
			return SafeCast
		}
		return RiskyCast
	case Binary:
		return RiskyCast
	default:
		return NotCastable
	}
}

func classifyXMLSource(next NativeType) ColumnTypeChange {
	switch n := next.(type) {
	case Xml:
		return SafeCast
	case NVarChar:
		if n.Len != nil && n.Len.IsMax() {
			return SafeCast
		}
		return RiskyCast
	case VarBinary:
		if n.Len != nil && n.Len.IsMax() {
			return SafeCast
		}
		return RiskyCast
	case Char, NChar, VarChar, Binary:
		return RiskyCast
	default:
		return NotCastable
	}
}

func classifyUniqueIdentifierSource(next NativeType) ColumnTypeChange {
	switch next.(type) {
	case UniqueIdentifier:
		return SafeCast
	case Char, NChar, VarChar, NVarChar:
		return safeIfLenAtLeast(next, 36)
	case Binary, VarBinary:
		return safeIfBinLenAtLeast(next, 16)
	default:
		return NotCastable
	}
}

// ColumnDiffer is the abstract input to the classifier: for each side
// (previous, next) it exposes the coarse type family and the optional
// native type. The classifier reads nothing else from it.
type ColumnDiffer interface {
	PrevFamily() TypeFamily
	NextFamily() TypeFamily
	PrevNative() NativeType
	NextNative() NativeType
}

// ColumnTypeChangeOf runs the native classifier over a ColumnDiffer,
// delegating to the family classifier when either native type is absent.
func ColumnTypeChangeOf(d ColumnDiffer) ColumnTypeChange {
	return NativeClassify(d.PrevFamily(), d.NextFamily(), d.PrevNative(), d.NextNative())
}

// ColumnTypeChangeAtFamily implements the §4.4 column_type_change
// operation: it reports a verdict only when the two sides' families
// differ, using the coarse family classifier (not the native one).
func ColumnTypeChangeAtFamily(d ColumnDiffer) (ColumnTypeChange, bool) {
	prev, next := d.PrevFamily(), d.NextFamily()
	if prev == next {
		return 0, false
	}
	return FamilyClassify(prev, next), true
}
