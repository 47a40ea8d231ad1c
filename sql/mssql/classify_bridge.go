// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import "github.com/ariga-labs/mssql-risk/sql/schema"

// nativeTypeOf converts a schema.Type, as produced by the inspector (see
// convert.go) or hand-built by a caller constructing a desired schema, into
// the NativeType value the risk classifier operates on. ok is false for
// schema types the classifier has no parameterized representation for
// (HierarchyIDType, RowVersionType, SpatialType, UserDefinedType); callers
// needing a family for those fall back to typeFamily, which always succeeds.
func nativeTypeOf(t schema.Type) (NativeType, bool) {
	switch t := t.(type) {
	case *BitType:
		return Bit{}, true
	case *schema.IntegerType:
		switch t.T {
		case TypeTinyInt:
			return TinyInt{}, true
		case TypeSmallInt:
			return SmallInt{}, true
		case TypeBigInt:
			return BigInt{}, true
		default:
			return Int{}, true
		}
	case *schema.DecimalType:
		params := &DecimalParams{Precision: t.Precision, Scale: t.Scale}
		if t.Precision == 0 && t.Scale == 0 {
			params = nil
		}
		if t.T == TypeNumeric {
			return Numeric{Params: params}, true
		}
		return Decimal{Params: params}, true
	case *MoneyType:
		if t.T == TypeSmallMoney {
			return SmallMoney{}, true
		}
		return Money{}, true
	case *schema.FloatType:
		if t.T == TypeReal {
			return Real{}, true
		}
		var n *int
		if t.Precision > 0 {
			p := t.Precision
			n = &p
		}
		return Float{N: n}, true
	case *schema.StringType:
		return stringNativeType(t), true
	case *schema.BinaryType:
		return binaryNativeType(t), true
	case *schema.TimeType:
		return timeNativeType(t), true
	case *UniqueIdentifierType:
		return UniqueIdentifier{}, true
	case *XMLType:
		return Xml{}, true
	default:
		return nil, false
	}
}

func stringNativeType(t *schema.StringType) NativeType {
	var lm *LenOrMax
	if t.Size != 0 {
		l := Len(t.Size)
		if t.Size < 0 {
			l = Max()
		}
		lm = &l
	}
	switch t.T {
	case TypeNChar:
		var n *int
		if t.Size != 0 {
			n = &t.Size
		}
		return NChar{Len: n}
	case TypeNVarchar:
		return NVarChar{Len: lm}
	case TypeText:
		return Text{}
	case TypeNText:
		return NText{}
	case TypeChar:
		var n *int
		if t.Size != 0 {
			n = &t.Size
		}
		return Char{Len: n}
	default: // varchar
		return VarChar{Len: lm}
	}
}

func binaryNativeType(t *schema.BinaryType) NativeType {
	if t.T == TypeImage {
		return Image{}
	}
	if t.T == TypeBinary {
		var n *int
		if t.Size != nil && *t.Size != 0 {
			n = t.Size
		}
		return Binary{Len: n}
	}
	var lm *LenOrMax
	if t.Size != nil {
		l := Len(*t.Size)
		if *t.Size == -1 {
			l = Max()
		}
		lm = &l
	}
	return VarBinary{Len: lm}
}

func timeNativeType(t *schema.TimeType) NativeType {
	switch t.T {
	case TypeDate:
		return Date{}
	case TypeTime:
		return Time{}
	case TypeDateTime:
		return DateTime{}
	case TypeDateTime2:
		return DateTime2{}
	case TypeDateTimeOffset:
		return DateTimeOffset{}
	case TypeSmallDateTime:
		return SmallDateTime{}
	default:
		return DateTime2{}
	}
}

// typeFamily returns the TypeFamily of a column's schema.Type. Unlike
// nativeTypeOf it never fails: types the classifier has no parameterized
// representation for are assigned the closest coarse family directly.
func typeFamily(t schema.Type) TypeFamily {
	if nt, ok := nativeTypeOf(t); ok {
		return Family(nt)
	}
	switch t.(type) {
	case *HierarchyIDType, *RowVersionType, *schema.SpatialType:
		return FamilyBinary
	case *UserDefinedType:
		return FamilyString
	default:
		return FamilyString
	}
}
