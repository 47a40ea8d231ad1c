// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import (
	"testing"

	"github.com/ariga-labs/mssql-risk/sql/schema"
	"github.com/stretchr/testify/require"
)

func uniqueIdx() *schema.Index    { return &schema.Index{Name: "u_idx", Unique: true} }
func nonUniqueIdx() *schema.Index { return &schema.Index{Name: "idx", Unique: false} }

// TestTablesToRedefine_AutoincrementChanged covers the first redefine
// branch: any column pair with AutoincrementChanged true forces the
// table's *next* name into the redefine set, regardless of what the
// families/natives say.
func TestTablesToRedefine_AutoincrementChanged(t *testing.T) {
	diffs := []TableDiff{
		{
			PrevName: "users_old",
			NextName: "users",
			Columns: []ColumnPairDiff{
				{PrevFamily: FamilyInt, NextFamily: FamilyInt, AutoincrementChanged: true},
			},
		},
	}
	out := TablesToRedefine(diffs)
	_, ok := out["users"]
	require.True(t, ok, "next name must appear in the redefine set")
	_, ok = out["users_old"]
	require.False(t, ok, "prev name must not appear for the autoincrement branch")
}

// TestTablesToRedefine_AllNotCastableAcrossFamilies covers the second
// redefine branch: every column pair changed family and is NotCastable at
// the family level, so the table's *previous* name appears.
func TestTablesToRedefine_AllNotCastableAcrossFamilies(t *testing.T) {
	diffs := []TableDiff{
		{
			PrevName: "t_old",
			NextName: "t_new",
			Columns: []ColumnPairDiff{
				{PrevFamily: FamilyString, NextFamily: FamilyInt},
			},
		},
	}
	// Sanity: FamilyClassify(String, Int) really is NotCastable, so this
	// diff actually exercises the branch under test.
	require.Equal(t, NotCastable, FamilyClassify(FamilyString, FamilyInt))

	out := TablesToRedefine(diffs)
	_, ok := out["t_old"]
	require.True(t, ok, "prev name must appear when every pair is NotCastable across families")
	_, ok = out["t_new"]
	require.False(t, ok)
}

// TestTablesToRedefine_NotAllNotCastable ensures the second branch requires
// *every* pair to qualify: a single pair that is safely castable, or whose
// families match, must keep the table out of the redefine set.
func TestTablesToRedefine_NotAllNotCastable(t *testing.T) {
	diffs := []TableDiff{
		{
			PrevName: "t_old",
			NextName: "t_new",
			Columns: []ColumnPairDiff{
				{PrevFamily: FamilyString, NextFamily: FamilyInt},
				{PrevFamily: FamilyInt, NextFamily: FamilyInt},
			},
		},
	}
	out := TablesToRedefine(diffs)
	require.Empty(t, out)
}

// TestTablesToRedefine_VacuousEmptyColumns pins the documented vacuous-true
// behavior: a table with zero column pairs satisfies "every pair is
// NotCastable across families" vacuously, so it lands in the redefine set
// under its previous name. This is preserved intentionally (see differ.go),
// not treated as a bug.
func TestTablesToRedefine_VacuousEmptyColumns(t *testing.T) {
	diffs := []TableDiff{
		{PrevName: "empty_old", NextName: "empty_new", Columns: nil},
	}
	out := TablesToRedefine(diffs)
	_, ok := out["empty_old"]
	require.True(t, ok, "zero column pairs vacuously satisfy the all-NotCastable branch")
}

func TestShouldSkipIndexForNewTable(t *testing.T) {
	require.True(t, ShouldSkipIndexForNewTable(uniqueIdx()))
	require.False(t, ShouldSkipIndexForNewTable(nonUniqueIdx()))
}

func TestShouldRecreatePrimaryKeyOnColumnRecreate(t *testing.T) {
	require.True(t, ShouldRecreatePrimaryKeyOnColumnRecreate())
}
