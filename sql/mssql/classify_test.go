// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

// identityTypes enumerates every native type the spec requires to be a
// SafeCast identity conversion. Decimal, Numeric, Char and NChar carry
// explicit parameters so the test exercises the parameterized arms rather
// than only the zero value.
func identityTypes() []NativeType {
	return []NativeType{
		TinyInt{}, SmallInt{}, Int{}, BigInt{},
		Decimal{Params: &DecimalParams{Precision: 12, Scale: 3}},
		Numeric{Params: &DecimalParams{Precision: 20, Scale: 0}},
		Money{}, SmallMoney{},
		Date{}, DateTime{}, DateTime2{}, DateTimeOffset{}, SmallDateTime{},
		Text{}, NText{},
		Image{}, Xml{}, UniqueIdentifier{},
		Char{Len: intp(10)},
		NChar{Len: intp(10)},
		VarChar{Len: &LenOrMax{}},
		NVarChar{Len: &LenOrMax{}},
	}
}

// TestNativeClassify_Identity covers the spec's "Identity where specified"
// testable property: every listed type classified against itself (with
// identical params) is SafeCast.
func TestNativeClassify_Identity(t *testing.T) {
	for _, nt := range identityTypes() {
		fam := Family(nt)
		got := NativeClassify(fam, fam, nt, nt)
		require.Equalf(t, SafeCast, got, "%#v -> %#v should be SafeCast", nt, nt)
	}
}

// TestNativeClassify_RealToRealAsymmetry pins the documented Real->Real
// asymmetry: unlike every other identity arm, it is RiskyCast rather than
// SafeCast.
func TestNativeClassify_RealToRealAsymmetry(t *testing.T) {
	got := NativeClassify(FamilyFloat, FamilyFloat, Real{}, Real{})
	require.Equal(t, RiskyCast, got)
}

// TestNativeClassify_FamilyFallback covers the "Family fallback" property:
// when either side's native type is absent, NativeClassify degrades to
// FamilyClassify of the two families, regardless of which side is absent.
func TestNativeClassify_FamilyFallback(t *testing.T) {
	cases := []struct {
		prev, next TypeFamily
	}{
		{FamilyInt, FamilyDecimal},
		{FamilyDecimal, FamilyInt},
		{FamilyString, FamilyInt},
		{FamilyDateTime, FamilyFloat},
		{FamilyInt, FamilyString},
	}
	for _, c := range cases {
		want := FamilyClassify(c.prev, c.next)
		require.Equal(t, want, NativeClassify(c.prev, c.next, nil, Int{}), "next present, prev absent")
		require.Equal(t, want, NativeClassify(c.prev, c.next, Int{}, nil), "prev present, next absent")
		require.Equal(t, want, NativeClassify(c.prev, c.next, nil, nil), "both absent")
	}
}

// TestNativeClassify_IntegerWidening covers the "Monotonicity (integer
// widening)" property: widening or same-width integer targets are always
// SafeCast.
func TestNativeClassify_IntegerWidening(t *testing.T) {
	ints := []NativeType{TinyInt{}, SmallInt{}, Int{}, BigInt{}}
	for _, src := range ints {
		for _, dst := range ints {
			got := NativeClassify(FamilyInt, FamilyInt, src, dst)
			if intWidth(dst) >= intWidth(src) {
				require.Equalf(t, SafeCast, got, "%#v -> %#v", src, dst)
			} else {
				require.Equalf(t, RiskyCast, got, "%#v -> %#v", src, dst)
			}
		}
	}
}

// TestNativeClassify_IntToCharLengthSufficiency covers the "Length
// sufficiency (numeric -> character)" property using BigInt, whose maximum
// textual width (including sign) is 20.
func TestNativeClassify_IntToCharLengthSufficiency(t *testing.T) {
	sufficient := Char{Len: intp(20)}
	insufficient := Char{Len: intp(19)}
	require.Equal(t, SafeCast, NativeClassify(FamilyInt, FamilyString, BigInt{}, sufficient))
	require.Equal(t, RiskyCast, NativeClassify(FamilyInt, FamilyString, BigInt{}, insufficient))
}

// TestNativeClassify_MaxDominance covers the "MAX dominance" property for
// VarChar/NVarChar(Max) against Text/NText in both directions.
func TestNativeClassify_MaxDominance(t *testing.T) {
	max := &LenOrMax{}
	*max = Max()
	bounded := &LenOrMax{}
	*bounded = Len(100)

	require.Equal(t, SafeCast, NativeClassify(FamilyString, FamilyString, VarChar{Len: max}, Text{}))
	require.Equal(t, SafeCast, NativeClassify(FamilyString, FamilyString, NVarChar{Len: max}, NText{}))
	require.Equal(t, SafeCast, NativeClassify(FamilyString, FamilyString, Text{}, VarChar{Len: max}))
	require.Equal(t, SafeCast, NativeClassify(FamilyString, FamilyString, NText{}, NVarChar{Len: max}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyString, FamilyString, Text{}, NVarChar{Len: max}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyString, FamilyString, NText{}, VarChar{Len: bounded}))
}

// TestNativeClassify_ConcreteScenarios pins the six numbered scenarios.
func TestNativeClassify_ConcreteScenarios(t *testing.T) {
	ml := func(n int) *LenOrMax { l := Len(n); return &l }
	mx := func() *LenOrMax { l := Max(); return &l }

	// 1. Int -> SmallInt: RiskyCast.
	require.Equal(t, RiskyCast, NativeClassify(FamilyInt, FamilyInt, Int{}, SmallInt{}))
	// 2. Int -> BigInt: SafeCast.
	require.Equal(t, SafeCast, NativeClassify(FamilyInt, FamilyInt, Int{}, BigInt{}))
	// 3. VarChar(10) -> VarChar(5): RiskyCast.
	require.Equal(t, RiskyCast, NativeClassify(FamilyString, FamilyString, VarChar{Len: ml(10)}, VarChar{Len: ml(5)}))
	// 4. VarChar(Max) -> VarChar(100): RiskyCast.
	require.Equal(t, RiskyCast, NativeClassify(FamilyString, FamilyString, VarChar{Len: mx()}, VarChar{Len: ml(100)}))
	// 5. DateTime -> NVarChar(23): SafeCast; NVarChar(22): RiskyCast.
	require.Equal(t, SafeCast, NativeClassify(FamilyDateTime, FamilyString, DateTime{}, NVarChar{Len: ml(23)}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyDateTime, FamilyString, DateTime{}, NVarChar{Len: ml(22)}))
	// 6. UniqueIdentifier -> Char(36)/Char(35)/Binary(16)/Binary(15).
	require.Equal(t, SafeCast, NativeClassify(FamilyUUID, FamilyString, UniqueIdentifier{}, Char{Len: intp(36)}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyUUID, FamilyString, UniqueIdentifier{}, Char{Len: intp(35)}))
	require.Equal(t, SafeCast, NativeClassify(FamilyUUID, FamilyBinary, UniqueIdentifier{}, Binary{Len: intp(16)}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyUUID, FamilyBinary, UniqueIdentifier{}, Binary{Len: intp(15)}))
}

// TestNativeClassify_BinaryToDecimalStorageBand pins the Binary/VarBinary ->
// Decimal/Numeric threshold at 8 bytes for the default precision of 18
// (decimalStorageBand(18)-1), matching the documented 4/8/12/16 byte bands.
func TestNativeClassify_BinaryToDecimalStorageBand(t *testing.T) {
	require.Equal(t, SafeCast, NativeClassify(FamilyBinary, FamilyDecimal, Binary{Len: intp(8)}, Decimal{}))
	require.Equal(t, RiskyCast, NativeClassify(FamilyBinary, FamilyDecimal, Binary{Len: intp(9)}, Decimal{}))
}

// TestNativeClassify_Totality is a smoke test for the "Totality" property:
// every pair drawn from a representative cross-section of variants (None,
// small bounded, large bounded, Max where applicable) returns a defined
// verdict rather than panicking, and the verdict is always one of the three
// known constants.
func TestNativeClassify_Totality(t *testing.T) {
	ml := func(n int) *LenOrMax { l := Len(n); return &l }
	mx := func() *LenOrMax { l := Max(); return &l }
	reps := []NativeType{
		Bit{}, TinyInt{}, SmallInt{}, Int{}, BigInt{},
		Decimal{}, Decimal{Params: &DecimalParams{Precision: 10, Scale: 2}},
		Numeric{}, Money{}, SmallMoney{},
		Float{}, Float{N: intp(24)}, Real{},
		Date{}, Time{}, DateTime{}, DateTime2{}, DateTimeOffset{}, SmallDateTime{},
		Char{}, Char{Len: intp(10)},
		NChar{}, NChar{Len: intp(10)},
		VarChar{}, VarChar{Len: ml(10)}, VarChar{Len: mx()},
		NVarChar{}, NVarChar{Len: ml(10)}, NVarChar{Len: mx()},
		Text{}, NText{},
		Binary{}, Binary{Len: intp(10)},
		VarBinary{}, VarBinary{Len: ml(10)}, VarBinary{Len: mx()},
		Image{}, Xml{}, UniqueIdentifier{},
	}
	for _, prev := range reps {
		for _, next := range reps {
			got := NativeClassify(Family(prev), Family(next), prev, next)
			require.Containsf(t, []ColumnTypeChange{SafeCast, RiskyCast, NotCastable}, got,
				"%#v -> %#v returned an undefined verdict", prev, next)
		}
	}
}

func TestColumnTypeChangeAtFamily(t *testing.T) {
	d := fakeColumnDiffer{prevFamily: FamilyInt, nextFamily: FamilyInt}
	_, ok := ColumnTypeChangeAtFamily(d)
	require.False(t, ok, "matching families should report absent")

	d2 := fakeColumnDiffer{prevFamily: FamilyString, nextFamily: FamilyInt}
	verdict, ok := ColumnTypeChangeAtFamily(d2)
	require.True(t, ok)
	require.Equal(t, NotCastable, verdict)
}

type fakeColumnDiffer struct {
	prevFamily, nextFamily TypeFamily
	prev, next             NativeType
}

func (d fakeColumnDiffer) PrevFamily() TypeFamily { return d.prevFamily }
func (d fakeColumnDiffer) NextFamily() TypeFamily { return d.nextFamily }
func (d fakeColumnDiffer) PrevNative() NativeType { return d.prev }
func (d fakeColumnDiffer) NextNative() NativeType { return d.next }
