// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import "github.com/ariga-labs/mssql-risk/sql/schema"

// TableDiff exposes the matched column pairs of a single matched table pair,
// plus the table's previous and next names, to TablesToRedefine. It is kept
// minimal and decoupled from sqlx.Diff/schema.Differ so the policy can be
// tested with literal values, independent of a live *schema.Table diff.
type TableDiff struct {
	PrevName string
	NextName string
	Columns  []ColumnPairDiff
}

// ColumnPairDiff exposes, for a single matched column pair, everything
// TablesToRedefine needs: the families on both sides, the native types
// (when known), and whether the column's auto-increment (IDENTITY) flag
// changed.
type ColumnPairDiff struct {
	PrevFamily          TypeFamily
	NextFamily          TypeFamily
	Prev                NativeType
	Next                NativeType
	AutoincrementChanged bool
}

// TablesToRedefine returns the set of table names that must be dropped and
// recreated rather than altered in place, per the two branches documented
// on ColumnPairDiff's callers: any IDENTITY change forces redefinition of
// the table under its new name; a column pair set where every pair changed
// family and is NotCastable at the family level forces redefinition of the
// table under its old name. A table with zero column pairs vacuously
// satisfies the second branch, matching the source's preserved behavior.
func TablesToRedefine(diffs []TableDiff) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range diffs {
		if anyAutoincrementChanged(t.Columns) {
			out[t.NextName] = struct{}{}
			continue
		}
		if allNotCastableAcrossFamilies(t.Columns) {
			out[t.PrevName] = struct{}{}
		}
	}
	return out
}

func anyAutoincrementChanged(cols []ColumnPairDiff) bool {
	for _, c := range cols {
		if c.AutoincrementChanged {
			return true
		}
	}
	return false
}

// allNotCastableAcrossFamilies reports whether every column pair changed
// family and was classified NotCastable at the family level. An empty
// column-pair set vacuously satisfies this (all over empty is true).
func allNotCastableAcrossFamilies(cols []ColumnPairDiff) bool {
	for _, c := range cols {
		if c.PrevFamily == c.NextFamily {
			return false
		}
		if FamilyClassify(c.PrevFamily, c.NextFamily) != NotCastable {
			return false
		}
	}
	return true
}

// ShouldSkipIndexForNewTable reports whether an index should be skipped
// when emitting CREATE TABLE for a redefined table. It returns true exactly
// for unique indexes. The planner in migrate.go does not call it.
func ShouldSkipIndexForNewTable(idx *schema.Index) bool {
	return idx.Unique
}

// ShouldRecreatePrimaryKeyOnColumnRecreate reports whether a column that
// participates in a primary key must have the key dropped and recreated
// alongside it. SQL Server forbids altering such a column in place, so
// this is always true.
func ShouldRecreatePrimaryKeyOnColumnRecreate() bool {
	return true
}
