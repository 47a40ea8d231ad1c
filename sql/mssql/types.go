// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

// NativeType is the tagged union of SQL Server native column types used by
// the risk classifier. Unlike the schema.Type values produced by the
// inspector (see convert.go), a NativeType carries only the parameters the
// classifier cares about, and is cheap to construct as a literal for tests.
type NativeType interface {
	nativeType()
}

// LenOrMax is the sum type for a character/binary length that is either a
// bounded number of units or the MAX sentinel (unbounded, up to 2GB).
// It is intentionally not an integer with a magic sentinel value: the MAX
// state must be structurally distinguishable from any bounded length.
type LenOrMax struct {
	max bool
	n   int
}

// Len returns a bounded length of n units.
func Len(n int) LenOrMax { return LenOrMax{n: n} }

// Max returns the MAX length sentinel.
func Max() LenOrMax { return LenOrMax{max: true} }

// IsMax reports whether l is the MAX sentinel.
func (l LenOrMax) IsMax() bool { return l.max }

// N returns the bounded length. Calling N on a MAX value returns 0 and
// should be guarded by IsMax.
func (l LenOrMax) N() int { return l.n }

// DecimalParams holds the precision and scale of a Decimal or Numeric type.
type DecimalParams struct {
	Precision int
	Scale     int
}

// defaultDecimalParams are the SQL Server defaults applied when a Decimal or
// Numeric type omits explicit precision/scale.
var defaultDecimalParams = DecimalParams{Precision: 18, Scale: 0}

// Exact and approximate numerics, date/time, and other fixed-shape types
// that carry no classifier-relevant parameters.
type (
	Bit              struct{}
	TinyInt          struct{}
	SmallInt         struct{}
	Int              struct{}
	BigInt           struct{}
	Money            struct{}
	SmallMoney       struct{}
	Real            struct{}
	Date             struct{}
	Time             struct{}
	DateTime         struct{}
	DateTime2        struct{}
	DateTimeOffset   struct{}
	SmallDateTime    struct{}
	Text             struct{}
	NText            struct{}
	Image            struct{}
	Xml              struct{}
	UniqueIdentifier struct{}
)

// Decimal and Numeric carry an optional (precision, scale) pair; a nil
// Params means the value was declared without explicit parameters.
type (
	Decimal struct{ Params *DecimalParams }
	Numeric struct{ Params *DecimalParams }
)

// Float carries an optional precision in [1, 53]; a nil N means the
// default of 53 (8-byte storage).
type Float struct{ N *int }

// Char, NChar, Binary carry an optional fixed length; a nil Len means the
// SQL Server default length of 1.
type (
	Char   struct{ Len *int }
	NChar  struct{ Len *int }
	Binary struct{ Len *int }
)

// VarChar, NVarChar, VarBinary carry an optional length-or-MAX; a nil Len
// means the default of Len(1).
type (
	VarChar   struct{ Len *LenOrMax }
	NVarChar  struct{ Len *LenOrMax }
	VarBinary struct{ Len *LenOrMax }
)

func (Bit) nativeType()              {}
func (TinyInt) nativeType()          {}
func (SmallInt) nativeType()         {}
func (Int) nativeType()              {}
func (BigInt) nativeType()           {}
func (Decimal) nativeType()          {}
func (Numeric) nativeType()          {}
func (Money) nativeType()            {}
func (SmallMoney) nativeType()       {}
func (Float) nativeType()            {}
func (Real) nativeType()            {}
func (Date) nativeType()             {}
func (Time) nativeType()             {}
func (DateTime) nativeType()         {}
func (DateTime2) nativeType()        {}
func (DateTimeOffset) nativeType()   {}
func (SmallDateTime) nativeType()    {}
func (Char) nativeType()             {}
func (NChar) nativeType()            {}
func (VarChar) nativeType()          {}
func (NVarChar) nativeType()         {}
func (Binary) nativeType()           {}
func (VarBinary) nativeType()        {}
func (Text) nativeType()             {}
func (NText) nativeType()            {}
func (Image) nativeType()            {}
func (Xml) nativeType()              {}
func (UniqueIdentifier) nativeType() {}

// TypeFamily is the coarse classification shared by one or more native
// types that have similar conversion semantics at a high level.
type TypeFamily uint8

const (
	FamilyInt TypeFamily = iota
	FamilyFloat
	FamilyDecimal
	FamilyString
	FamilyBoolean
	FamilyDateTime
	FamilyBinary
	FamilyUUID
	FamilyJSON
	FamilyEnum
)

func (f TypeFamily) String() string {
	switch f {
	case FamilyInt:
		return "Int"
	case FamilyFloat:
		return "Float"
	case FamilyDecimal:
		return "Decimal"
	case FamilyString:
		return "String"
	case FamilyBoolean:
		return "Boolean"
	case FamilyDateTime:
		return "DateTime"
	case FamilyBinary:
		return "Binary"
	case FamilyUUID:
		return "Uuid"
	case FamilyJSON:
		return "Json"
	case FamilyEnum:
		return "Enum"
	default:
		return "Unknown"
	}
}

// Family returns the coarse TypeFamily of a native type. Every native type
// has a known family; Family never returns an error.
func Family(t NativeType) TypeFamily {
	switch t.(type) {
	case Bit:
		return FamilyBoolean
	case TinyInt, SmallInt, Int, BigInt:
		return FamilyInt
	case Decimal, Numeric, Money, SmallMoney:
		return FamilyDecimal
	case Float, Real:
		return FamilyFloat
	case Date, Time, DateTime, DateTime2, DateTimeOffset, SmallDateTime:
		return FamilyDateTime
	case Char, NChar, VarChar, NVarChar, Text, NText, Xml:
		return FamilyString
	case Binary, VarBinary, Image:
		return FamilyBinary
	case UniqueIdentifier:
		return FamilyUUID
	default:
		return FamilyString
	}
}
