// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import (
	"fmt"
	"strings"

	"github.com/ariga-labs/mssql-risk/sql/internal/sqlx"
	"github.com/ariga-labs/mssql-risk/sql/schema"
)

// DefaultDiff provides basic diffing capabilities for MS-SQL dialects.
// Note, it is recommended to call Open, create a new Driver and use its
// Differ when a database connection is available.
var DefaultDiff schema.Differ = &sqlx.Diff{DiffDriver: &diff{conn{ExecQuerier: sqlx.NoRows}}}

// A diff provides a MS-SQL implementation for sqlx.DiffDriver.
type diff struct{ conn }

// SchemaAttrDiff returns a changeset for migrating schema attributes from one state to the other.
func (*diff) SchemaAttrDiff(from, to *schema.Schema) []schema.Change {
	var changes []schema.Change
	if change := commentChange(from.Attrs, to.Attrs); change != nil {
		changes = append(changes, change)
	}
	return changes
}

// TableAttrDiff returns a changeset for migrating table attributes from one state to the other.
func (*diff) TableAttrDiff(from, to *schema.Table) []schema.Change {
	var changes []schema.Change
	if change := commentChange(from.Attrs, to.Attrs); change != nil {
		changes = append(changes, change)
	}
	for _, c1 := range checks(from.Attrs) {
		switch c2, ok := checkByName(to.Attrs, c1.Name); {
		case !ok:
			changes = append(changes, &schema.DropCheck{C: c1})
		case c1.Expr != c2.Expr:
			changes = append(changes, &schema.ModifyAttr{From: c1, To: c2})
		}
	}
	for _, c1 := range checks(to.Attrs) {
		if _, ok := checkByName(from.Attrs, c1.Name); !ok {
			changes = append(changes, &schema.AddCheck{C: c1})
		}
	}
	return changes
}

// ColumnTypeChanged reports if the column type was changed.
func (d *diff) ColumnTypeChanged(from, to *schema.Column) (bool, error) {
	if err := generatedChanged(from, to); err != nil {
		return false, err
	}
	changed, err := sqlx.ColumnTypeChanged(from, to)
	if sqlx.IsUnsupportedTypeError(err) {
		return d.typeChanged(from, to)
	}
	return changed, err
}

// ColumnAttrChanged reports if a dialect-specific column attribute, such as
// an IDENTITY specification, was changed.
func (*diff) ColumnAttrChanged(from, to []schema.Attr) bool {
	id1, has1 := identity(from)
	id2, has2 := identity(to)
	switch {
	case has1 != has2:
		return true
	case has1 && has2:
		return id1.Seek != id2.Seek || id1.Increment != id2.Increment
	default:
		return false
	}
}

// IndexAttrChanged reports if the index attributes were changed.
func (*diff) IndexAttrChanged(from, to []schema.Attr) bool {
	if indexType(from).T != indexType(to).T {
		return true
	}
	if normalizePredicate(indexPredicate(from).P) != normalizePredicate(indexPredicate(to).P) {
		return true
	}
	return includeChanged(from, to)
}

// IndexPartAttrChanged reports if the index-part attributes were changed.
// SQL Server index parts carry no collation or other dialect-specific
// attributes, so two parts never differ beyond what partsChange already
// compares (column identity, expression text, sequence).
func (*diff) IndexPartAttrChanged([]schema.Attr, []schema.Attr) bool {
	return false
}

// ReferenceChanged reports if the foreign key referential action was changed.
func (*diff) ReferenceChanged(from, to schema.ReferenceOption) bool {
	if from == "" || from == schema.Restrict {
		from = schema.NoAction
	}
	if to == "" || to == schema.Restrict {
		to = schema.NoAction
	}
	return from != to
}

// generatedChanged reports an error if a generated expression was dropped
// or its expression text changed: SQL Server forbids altering a computed
// column's definition in place; the column (and its table, per the differ
// policy) must be recreated instead.
func generatedChanged(from, to *schema.Column) error {
	var g1, g2 schema.GeneratedExpr
	has1, has2 := sqlx.Has(from.Attrs, &g1), sqlx.Has(to.Attrs, &g2)
	switch {
	case has1 && !has2:
		return fmt.Errorf("mssql: dropping the generated expression of column %q is not supported", from.Name)
	case has1 && has2 && g1.Expr != g2.Expr:
		return fmt.Errorf("mssql: changing the generated expression of column %q is not supported", from.Name)
	}
	return nil
}

// typeChanged reports if the type of the dialect-specific types, not known
// to sqlx.ColumnTypeChanged, was changed.
func (d *diff) typeChanged(from, to *schema.Column) (bool, error) {
	fromT, toT := from.Type.Type, to.Type.Type
	var changed bool
	switch fromT := fromT.(type) {
	case *BitType:
		toT, ok := toT.(*BitType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *MoneyType:
		toT, ok := toT.(*MoneyType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *HierarchyIDType:
		toT, ok := toT.(*HierarchyIDType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *UniqueIdentifierType:
		toT, ok := toT.(*UniqueIdentifierType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *RowVersionType:
		toT, ok := toT.(*RowVersionType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *UserDefinedType:
		toT, ok := toT.(*UserDefinedType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	case *XMLType:
		toT, ok := toT.(*XMLType)
		if !ok {
			return true, nil
		}
		changed = fromT.T != toT.T
	default:
		return false, &sqlx.UnsupportedTypeError{Type: fromT}
	}
	return changed, nil
}

// commentChange returns the schema change for migrating a Comment attribute,
// mirroring the convention already used for table/schema attributes: adding
// a comment where none existed emits AddAttr; removing one emits ModifyAttr
// to an empty Comment rather than DropAttr, since MS-SQL clears a comment's
// extended property by setting it to an empty string rather than dropping it.
func commentChange(from, to []schema.Attr) schema.Change {
	var c1, c2 schema.Comment
	has1, has2 := sqlx.Has(from, &c1), sqlx.Has(to, &c2)
	switch {
	case !has1 && !has2:
		return nil
	case !has1:
		return &schema.AddAttr{A: &c2}
	case !has2:
		return &schema.ModifyAttr{From: &c1, To: &schema.Comment{Text: ""}}
	case c1.Text != c2.Text:
		return &schema.ModifyAttr{From: &c1, To: &c2}
	default:
		return nil
	}
}

func checks(attrs []schema.Attr) (checks []*schema.Check) {
	for i := range attrs {
		if c, ok := attrs[i].(*schema.Check); ok {
			checks = append(checks, c)
		}
	}
	return checks
}

func checkByName(attrs []schema.Attr, name string) (*schema.Check, bool) {
	for i := range attrs {
		if c, ok := attrs[i].(*schema.Check); ok && c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// identity returns the Identity attribute and whether it was present.
func identity(attrs []schema.Attr) (*Identity, bool) {
	id := &Identity{}
	if sqlx.Has(attrs, id) {
		return id, true
	}
	return nil, false
}

func indexType(attrs []schema.Attr) *IndexType {
	t := &IndexType{T: IndexTypeNonClustered}
	sqlx.Has(attrs, t)
	return t
}

func indexPredicate(attrs []schema.Attr) *IndexPredicate {
	p := &IndexPredicate{}
	sqlx.Has(attrs, p)
	return p
}

func indexInclude(attrs []schema.Attr) *IndexInclude {
	in := &IndexInclude{}
	sqlx.Has(attrs, in)
	return in
}

func includeChanged(from, to []schema.Attr) bool {
	c1, c2 := indexInclude(from).Columns, indexInclude(to).Columns
	if len(c1) != len(c2) {
		return true
	}
	for i := range c1 {
		if c1[i].Name != c2[i].Name {
			return true
		}
	}
	return false
}

// normalizePredicate strips the outer parenthesis SQL Server normalizes
// filtered-index predicates with, so a predicate declared with or without
// its enclosing parens does not read as a spurious change.
func normalizePredicate(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "(")
	p = strings.TrimSuffix(p, ")")
	return strings.TrimSpace(p)
}
