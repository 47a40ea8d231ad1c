// Copyright 2021-present The Atlas Authors. All rights reserved.
// This source code is licensed under the Apache 2.0 license found
// in the LICENSE file in the root directory of this source tree.

package mssql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ariga-labs/mssql-risk/sql/internal/sqlx"
	"github.com/ariga-labs/mssql-risk/sql/migrate"
	"github.com/ariga-labs/mssql-risk/sql/schema"
)

// DefaultPlan provides basic planning capabilities for MS-SQL dialects.
// Note, it is recommended to call Open, create a new Driver and use its
// migrate.PlanApplier when a database connection is available.
var DefaultPlan migrate.PlanApplier = &planApply{conn: conn{ExecQuerier: sqlx.NoRows}}

// A planApply provides migration capabilities for schema elements.
type planApply struct{ conn }

// ApplyChanges applies the changes on the database. An error is returned
// if the driver is unable to produce a plan to do so, or one of the statements
// is failed or unsupported.
func (p *planApply) ApplyChanges(ctx context.Context, changes []schema.Change, opts ...migrate.PlanOption) error {
	return sqlx.ApplyChanges(ctx, changes, p, opts...)
}

// PlanChanges returns a migration plan for the given schema changes.
func (p *planApply) PlanChanges(ctx context.Context, name string, changes []schema.Change, opts ...migrate.PlanOption) (*migrate.Plan, error) {
	s := &state{
		conn: p.conn,
		Plan: migrate.Plan{
			Name:          name,
			Transactional: true,
		},
	}
	for _, o := range opts {
		o(&s.PlanOptions)
	}
	if err := s.plan(ctx, changes); err != nil {
		return nil, err
	}
	if err := sqlx.SetReversible(&s.Plan); err != nil {
		return nil, err
	}
	return &s.Plan, nil
}

// state represents the state of a planning. It is not part of
// planApply so that multiple planning/applying can be called
// in parallel.
type state struct {
	conn
	migrate.Plan
	migrate.PlanOptions
}

// Build instantiates a new builder and writes the given phrase to it.
func (s *state) Build(phrases ...string) *sqlx.Builder {
	b := &sqlx.Builder{QuoteOpening: '[', QuoteClosing: ']', Schema: s.SchemaQualifier, Indent: s.Indent}
	return b.P(phrases...)
}

// plan builds the migration plan for applying the
// given changes on the attached connection.
func (s *state) plan(ctx context.Context, changes []schema.Change) error {
	if s.SchemaQualifier != nil {
		if err := sqlx.CheckChangesScope(s.PlanOptions, changes); err != nil {
			return err
		}
	}
	planned := s.topLevel(changes)
	planned, err := sqlx.DetachCycles(planned)
	if err != nil {
		return err
	}
	for _, c := range planned {
		switch c := c.(type) {
		case *schema.RenameTable:
			s.renameTable(c)
		case *schema.AddTable:
			err = s.addTable(ctx, c)
		case *schema.DropTable:
			err = s.dropTable(ctx, c)
		case *schema.ModifyTable:
			err = s.modifyTable(ctx, c)
		default:
			err = fmt.Errorf("unsupported change %T", c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *state) topLevel(changes []schema.Change) []schema.Change {
	planned := make([]schema.Change, 0, len(changes))
	for _, c := range changes {
		switch c := c.(type) {
		case *schema.AddSchema:
			b := s.Build("CREATE SCHEMA")
			b.Ident(c.S.Name)
			s.append(&migrate.Change{
				Cmd:     b.String(),
				Source:  c,
				Reverse: s.Build("DROP SCHEMA").Ident(c.S.Name).String(),
				Comment: fmt.Sprintf("Add new schema named %q", c.S.Name),
			})
		case *schema.DropSchema:
			b := s.Build("DROP SCHEMA")
			if sqlx.Has(c.Extra, &schema.IfExists{}) {
				b.P("IF EXISTS")
			}
			b.Ident(c.S.Name)
			s.append(&migrate.Change{
				Cmd:     b.String(),
				Source:  c,
				Comment: fmt.Sprintf("Drop schema named %q", c.S.Name),
			})
		default:
			planned = append(planned, c)
		}
	}
	return planned
}

func (s *state) addTable(_ context.Context, add *schema.AddTable) error {
	var (
		errs []string
		b    = s.Build("CREATE TABLE")
	)
	b.Table(add.T)
	b.WrapIndent(func(b *sqlx.Builder) {
		b.MapIndent(add.T.Columns, func(i int, b *sqlx.Builder) {
			if err := s.column(b, add.T, add.T.Columns[i]); err != nil {
				errs = append(errs, err.Error())
			}
		})
		if pk := add.T.PrimaryKey; pk != nil {
			b.Comma().NL()
			if pk.Name != "" {
				b.P("CONSTRAINT").Ident(pk.Name)
			}
			b.P("PRIMARY KEY")
			s.indexParts(b, pk.Parts)
		}
		if len(add.T.ForeignKeys) > 0 {
			b.Comma().NL()
			if err := s.fks(b, add.T.ForeignKeys...); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})
	if len(errs) > 0 {
		return fmt.Errorf("create table %q: %s", add.T.Name, strings.Join(errs, ", "))
	}
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  add,
		Comment: fmt.Sprintf("create %q table", add.T.Name),
		Reverse: s.Build("DROP TABLE").Table(add.T).String(),
	})
	return nil
}

// dropTable builds and appends the migrate.Change for dropping a table.
func (s *state) dropTable(_ context.Context, drop *schema.DropTable) error {
	b := s.Build("DROP TABLE")
	if sqlx.Has(drop.Extra, &schema.IfExists{}) {
		b.P("IF EXISTS")
	}
	b.Table(drop.T)
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  drop,
		Comment: fmt.Sprintf("drop %q table", drop.T.Name),
	})
	return nil
}

// modifyTable builds and appends the migrate.Changes for bringing a table
// into its modified state. If any column pair forces the table through the
// redefinition policy (see differ.go's TablesToRedefine), the table is
// dropped and recreated as a whole; otherwise each change is translated into
// its own statement, since SQL Server generally rejects batching structural
// changes like ALTER COLUMN into a single ALTER TABLE.
func (s *state) modifyTable(ctx context.Context, modify *schema.ModifyTable) error {
	pairs := columnPairDiffs(modify.Changes)
	if len(pairs) > 0 {
		redefine := TablesToRedefine([]TableDiff{{PrevName: modify.T.Name, NextName: modify.T.Name, Columns: pairs}})
		if _, ok := redefine[modify.T.Name]; ok {
			return s.redefineTable(ctx, modify)
		}
	}
	for _, change := range modify.Changes {
		if err := s.alterTable(modify.T, change); err != nil {
			return err
		}
	}
	return nil
}

// columnPairDiffs extracts a ColumnPairDiff for every ModifyColumn change,
// bridging the live schema.Column pair to the values TablesToRedefine needs.
func columnPairDiffs(changes []schema.Change) []ColumnPairDiff {
	var pairs []ColumnPairDiff
	for _, c := range changes {
		m, ok := c.(*schema.ModifyColumn)
		if !ok {
			continue
		}
		id1, has1 := identity(m.From.Attrs)
		id2, has2 := identity(m.To.Attrs)
		pairs = append(pairs, ColumnPairDiff{
			PrevFamily:           typeFamily(m.From.Type.Type),
			NextFamily:           typeFamily(m.To.Type.Type),
			AutoincrementChanged: has1 != has2 || (has1 && has2 && (id1.Seek != id2.Seek || id1.Increment != id2.Increment)),
		})
	}
	return pairs
}

// alterTable translates a single table-level change into one migrate.Change.
func (s *state) alterTable(t *schema.Table, change schema.Change) error {
	switch change := change.(type) {
	case *schema.AddColumn:
		b := s.Build("ALTER TABLE").Table(t).P("ADD")
		if err := s.column(b, t, change.C); err != nil {
			return err
		}
		s.append(&migrate.Change{
			Cmd:     b.String(),
			Source:  change,
			Comment: fmt.Sprintf("add column %q to table %q", change.C.Name, t.Name),
			Reverse: s.Build("ALTER TABLE").Table(t).P("DROP COLUMN").Ident(change.C.Name).String(),
		})
	case *schema.DropColumn:
		b := s.Build("ALTER TABLE").Table(t).P("DROP COLUMN").Ident(change.C.Name)
		s.append(&migrate.Change{
			Cmd:     b.String(),
			Source:  change,
			Comment: fmt.Sprintf("drop column %q from table %q", change.C.Name, t.Name),
		})
	case *schema.ModifyColumn:
		return s.modifyColumn(t, change)
	case *schema.AddIndex:
		return s.addIndexDDL(t, change.I)
	case *schema.DropIndex:
		s.dropIndexDDL(t, change.I)
	case *schema.AddForeignKey:
		return s.addForeignKey(t, change.F)
	case *schema.DropForeignKey:
		s.dropConstraint(t, change.F.Symbol, "drop foreign key")
	case *schema.AddPrimaryKey:
		return s.addPrimaryKey(t, change.P)
	case *schema.DropPrimaryKey:
		s.dropConstraint(t, change.P.Name, "drop primary key")
	case *schema.ModifyPrimaryKey:
		s.dropConstraint(t, change.From.Name, "drop primary key")
		return s.addPrimaryKey(t, change.To)
	case *schema.AddAttr, *schema.ModifyAttr, *schema.DropAttr:
		// Table/column level comments are maintained as extended properties
		// outside of plan generation and carry no DDL statement here.
	default:
		return fmt.Errorf("mssql: unsupported table change %T", change)
	}
	return nil
}

// modifyColumn emits an in-place ALTER COLUMN, unless the type change is
// classified NotCastable, in which case the column (and, per
// ShouldRecreatePrimaryKeyOnColumnRecreate, its primary key) is dropped and
// recreated instead.
func (s *state) modifyColumn(t *schema.Table, change *schema.ModifyColumn) error {
	if change.Change.Is(schema.ChangeType) && columnTypeNotCastable(change.From, change.To) {
		return s.recreateColumn(t, change)
	}
	b := s.Build("ALTER TABLE").Table(t).P("ALTER COLUMN")
	if err := s.column(b, t, change.To); err != nil {
		return err
	}
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  change,
		Comment: fmt.Sprintf("modify column %q on table %q", change.To.Name, t.Name),
	})
	return nil
}

// columnTypeNotCastable reports whether the column's type change is a
// NotCastable verdict, preferring the native classifier when both sides
// resolve to a NativeType and falling back to the family-level verdict.
func columnTypeNotCastable(from, to *schema.Column) bool {
	fromFamily, toFamily := typeFamily(from.Type.Type), typeFamily(to.Type.Type)
	fromNative, ok1 := nativeTypeOf(from.Type.Type)
	toNative, ok2 := nativeTypeOf(to.Type.Type)
	if ok1 && ok2 {
		return NativeClassify(fromFamily, toFamily, fromNative, toNative) == NotCastable
	}
	if fromFamily == toFamily {
		return false
	}
	return FamilyClassify(fromFamily, toFamily) == NotCastable
}

func (s *state) recreateColumn(t *schema.Table, change *schema.ModifyColumn) error {
	var recreatePK *schema.Index
	if pk := t.PrimaryKey; pk != nil && ShouldRecreatePrimaryKeyOnColumnRecreate() && columnInIndex(pk, change.From.Name) {
		recreatePK = pk
		s.dropConstraint(t, pk.Name, "drop primary key")
	}
	s.append(&migrate.Change{
		Cmd:     s.Build("ALTER TABLE").Table(t).P("DROP COLUMN").Ident(change.From.Name).String(),
		Source:  change,
		Comment: fmt.Sprintf("drop column %q from table %q to recreate it with its new type", change.From.Name, t.Name),
	})
	b := s.Build("ALTER TABLE").Table(t).P("ADD")
	if err := s.column(b, t, change.To); err != nil {
		return err
	}
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  change,
		Comment: fmt.Sprintf("add column %q back to table %q with its new type", change.To.Name, t.Name),
	})
	if recreatePK != nil {
		return s.addPrimaryKey(t, replacePart(recreatePK, change.From.Name, change.To))
	}
	return nil
}

// columnInIndex reports whether name is one of idx's key parts.
func columnInIndex(idx *schema.Index, name string) bool {
	for _, p := range idx.Parts {
		if p.C != nil && p.C.Name == name {
			return true
		}
	}
	return false
}

// replacePart returns a copy of idx with the key part named from pointed at
// the recreated column instead.
func replacePart(idx *schema.Index, from string, to *schema.Column) *schema.Index {
	parts := make([]*schema.IndexPart, len(idx.Parts))
	for i, p := range idx.Parts {
		if p.C != nil && p.C.Name == from {
			parts[i] = &schema.IndexPart{SeqNo: p.SeqNo, Desc: p.Desc, C: to}
		} else {
			parts[i] = p
		}
	}
	return &schema.Index{Name: idx.Name, Unique: idx.Unique, Parts: parts}
}

func (s *state) addIndexDDL(t *schema.Table, idx *schema.Index) error {
	b := s.Build("CREATE")
	if idx.Unique {
		b.P("UNIQUE")
	}
	b.P(indexType(idx.Attrs).T, "INDEX").Ident(idx.Name).P("ON").Table(t)
	s.indexParts(b, idx.Parts)
	if inc := indexInclude(idx.Attrs); len(inc.Columns) > 0 {
		b.P("INCLUDE")
		b.Wrap(func(b *sqlx.Builder) {
			b.MapComma(inc.Columns, func(i int, b *sqlx.Builder) {
				b.Ident(inc.Columns[i].Name)
			})
		})
	}
	if pred := indexPredicate(idx.Attrs); pred.P != "" {
		b.P("WHERE", pred.P)
	}
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  &schema.AddIndex{I: idx},
		Reverse: s.Build("DROP INDEX").Ident(idx.Name).P("ON").Table(t).String(),
		Comment: fmt.Sprintf("create index %q on table %q", idx.Name, t.Name),
	})
	return nil
}

func (s *state) dropIndexDDL(t *schema.Table, idx *schema.Index) {
	b := s.Build("DROP INDEX").Ident(idx.Name).P("ON").Table(t)
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  &schema.DropIndex{I: idx},
		Comment: fmt.Sprintf("drop index %q from table %q", idx.Name, t.Name),
	})
}

func (s *state) addForeignKey(t *schema.Table, fk *schema.ForeignKey) error {
	b := s.Build("ALTER TABLE").Table(t).P("ADD")
	if err := s.fks(b, fk); err != nil {
		return err
	}
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  &schema.AddForeignKey{F: fk},
		Reverse: s.Build("ALTER TABLE").Table(t).P("DROP CONSTRAINT").Ident(fk.Symbol).String(),
		Comment: fmt.Sprintf("add foreign key constraint %q to table %q", fk.Symbol, t.Name),
	})
	return nil
}

func (s *state) addPrimaryKey(t *schema.Table, pk *schema.Index) error {
	b := s.Build("ALTER TABLE").Table(t).P("ADD CONSTRAINT").Ident(pk.Name).P("PRIMARY KEY")
	s.indexParts(b, pk.Parts)
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Source:  &schema.AddPrimaryKey{P: pk},
		Reverse: s.Build("ALTER TABLE").Table(t).P("DROP CONSTRAINT").Ident(pk.Name).String(),
		Comment: fmt.Sprintf("add primary key constraint %q to table %q", pk.Name, t.Name),
	})
	return nil
}

func (s *state) dropConstraint(t *schema.Table, name, verb string) {
	b := s.Build("ALTER TABLE").Table(t).P("DROP CONSTRAINT").Ident(name)
	s.append(&migrate.Change{
		Cmd:     b.String(),
		Comment: fmt.Sprintf("%s constraint %q on table %q", verb, name, t.Name),
	})
}

// indexParts writes the parenthesized, comma-separated column (or
// expression) list that makes up an index's or constraint's key parts.
func (s *state) indexParts(b *sqlx.Builder, parts []*schema.IndexPart) {
	b.Wrap(func(b *sqlx.Builder) {
		b.MapComma(parts, func(i int, b *sqlx.Builder) {
			p := parts[i]
			switch {
			case p.C != nil:
				b.Ident(p.C.Name)
			case p.X != nil:
				if raw, ok := p.X.(*schema.RawExpr); ok {
					b.WriteString(sqlx.MayWrap(raw.X))
				}
			}
			if p.Desc {
				b.P("DESC")
			}
		})
	})
}

// fks writes one CONSTRAINT ... FOREIGN KEY clause per key, comma separated,
// suitable both for embedding inside a CREATE TABLE and for a standalone
// ALTER TABLE ADD.
func (s *state) fks(b *sqlx.Builder, fks ...*schema.ForeignKey) error {
	b.MapComma(fks, func(i int, b *sqlx.Builder) {
		fk := fks[i]
		b.P("CONSTRAINT").Ident(fk.Symbol).P("FOREIGN KEY")
		s.indexParts(b, colParts(fk.Columns))
		b.P("REFERENCES").Table(fk.RefTable)
		s.indexParts(b, colParts(fk.RefColumns))
		if fk.OnUpdate != "" && fk.OnUpdate != schema.NoAction {
			b.P("ON UPDATE", string(fk.OnUpdate))
		}
		if fk.OnDelete != "" && fk.OnDelete != schema.NoAction {
			b.P("ON DELETE", string(fk.OnDelete))
		}
	})
	return nil
}

func colParts(cols []*schema.Column) []*schema.IndexPart {
	parts := make([]*schema.IndexPart, len(cols))
	for i, c := range cols {
		parts[i] = &schema.IndexPart{C: c}
	}
	return parts
}

// redefineTable drops and recreates modify.T under the same name: at least
// one of its column changes cannot be applied with ALTER COLUMN (see
// differ.go's TablesToRedefine), which SQL Server requires for changes such
// as an IDENTITY flip or a family change with no safe or risky cast. Rows
// surviving in the columns common to both definitions are copied across
// before the previous definition is dropped.
func (s *state) redefineTable(ctx context.Context, modify *schema.ModifyTable) error {
	from := modify.T
	cols := append([]*schema.Column(nil), from.Columns...)
	for _, change := range modify.Changes {
		switch change := change.(type) {
		case *schema.DropColumn:
			cols = removeColumn(cols, change.C.Name)
		case *schema.ModifyColumn:
			cols = replaceColumn(cols, change.From.Name, change.To)
		case *schema.RenameColumn:
			cols = replaceColumn(cols, change.From.Name, change.To)
		case *schema.AddColumn:
			cols = append(cols, change.C)
		}
	}
	tmp := &schema.Table{Name: from.Name + "_atlas_redefine", Schema: from.Schema, Columns: cols}
	if pk := from.PrimaryKey; pk != nil {
		if next := redefinedIndex(pk, cols); next != nil {
			tmp.PrimaryKey = next
		}
	}
	if err := s.addTable(ctx, &schema.AddTable{T: tmp}); err != nil {
		return fmt.Errorf("mssql: redefining table %q: %w", from.Name, err)
	}
	if shared := sharedColumns(from.Columns, cols); len(shared) > 0 {
		ins := s.Build("INSERT INTO").Table(tmp)
		ins.Wrap(func(b *sqlx.Builder) {
			b.MapComma(shared, func(i int, b *sqlx.Builder) { b.Ident(shared[i]) })
		})
		ins.P("SELECT")
		ins.MapComma(shared, func(i int, b *sqlx.Builder) { b.Ident(shared[i]) })
		ins.P("FROM").Table(from)
		s.append(&migrate.Change{
			Cmd:     ins.String(),
			Source:  modify,
			Comment: fmt.Sprintf("copy rows from %q into its redefined form", from.Name),
		})
	}
	s.append(&migrate.Change{
		Cmd:     s.Build("DROP TABLE").Table(from).String(),
		Source:  modify,
		Comment: fmt.Sprintf("drop the previous definition of table %q", from.Name),
	})
	s.renameTable(&schema.RenameTable{From: tmp, To: &schema.Table{Name: from.Name, Schema: from.Schema}})
	return nil
}

func removeColumn(cols []*schema.Column, name string) []*schema.Column {
	out := make([]*schema.Column, 0, len(cols))
	for _, c := range cols {
		if c.Name != name {
			out = append(out, c)
		}
	}
	return out
}

func replaceColumn(cols []*schema.Column, name string, next *schema.Column) []*schema.Column {
	out := make([]*schema.Column, len(cols))
	for i, c := range cols {
		if c.Name == name {
			out[i] = next
		} else {
			out[i] = c
		}
	}
	return out
}

func sharedColumns(from, to []*schema.Column) []string {
	names := make(map[string]bool, len(to))
	for _, c := range to {
		names[c.Name] = true
	}
	var shared []string
	for _, c := range from {
		if names[c.Name] {
			shared = append(shared, c.Name)
		}
	}
	return shared
}

func redefinedIndex(idx *schema.Index, cols []*schema.Column) *schema.Index {
	byName := make(map[string]*schema.Column, len(cols))
	for _, c := range cols {
		byName[c.Name] = c
	}
	parts := make([]*schema.IndexPart, 0, len(idx.Parts))
	for _, p := range idx.Parts {
		if p.C == nil {
			continue
		}
		c, ok := byName[p.C.Name]
		if !ok {
			return nil
		}
		parts = append(parts, &schema.IndexPart{SeqNo: p.SeqNo, Desc: p.Desc, C: c})
	}
	if len(parts) == 0 {
		return nil
	}
	return &schema.Index{Name: idx.Name, Unique: idx.Unique, Parts: parts}
}

func (s *state) renameTable(c *schema.RenameTable) {
	ren := func(old, new *schema.Table) string {
		b := s.Build("EXEC sp_rename")
		b.CommaQuote('\'',
			func() { b.Table(old) },
			func() { b.Ident(new.Name) },
		)
		return b.String()
	}
	s.append(&migrate.Change{
		Source:  c,
		Comment: fmt.Sprintf("rename a table from %q to %q", c.From.Name, c.To.Name),
		Cmd:     ren(c.From, c.To),
		Reverse: ren(c.To, c.From),
	})
}

func (s *state) column(b *sqlx.Builder, t *schema.Table, c *schema.Column) error {
	var (
		computed = &schema.GeneratedExpr{}
		id, hasI = identity(c.Attrs)
	)
	switch hasX := sqlx.Has(c.Attrs, computed); {
	case hasX && hasI:
		return fmt.Errorf("both identity and computed expression specified for column %q", c.Name)
	case hasX:
		b.Ident(c.Name).P("AS", sqlx.MayWrap(computed.Expr), computed.Type)
		if !c.Type.Null {
			b.P("NOT NULL")
		}
	default:
		f, err := s.formatType(t, c)
		if err != nil {
			return err
		}
		b.Ident(c.Name).P(f)
		if !c.Type.Null {
			b.P("NOT")
		}
		b.P("NULL")
		s.columnDefault(b, t, c)
		for _, attr := range c.Attrs {
			switch a := attr.(type) {
			case *schema.Collation:
				b.P("COLLATE").Ident(a.V)
			case *schema.Comment:
			case *schema.GeneratedExpr, *Identity:
				// Handled below.
			default:
				return fmt.Errorf("unexpected column attribute: %T", attr)
			}
		}
		if hasI {
			b.P("IDENTITY").Wrap(func(b *sqlx.Builder) {
				b.P(strconv.FormatInt(id.Seek, 10)).Comma()
				b.P(strconv.FormatInt(id.Increment, 10))
			})
		}
	}
	return nil
}

// columnDefault writes the default value of column to the builder.
func (s *state) columnDefault(b *sqlx.Builder, t *schema.Table, c *schema.Column) {
	if c.Default == nil {
		return
	}
	b.P("CONSTRAINT").Ident(fmt.Sprintf("DEFAULT_%s_%s", t.Name, c.Name))
	switch x := c.Default.(type) {
	case *schema.Literal:
		b.P("DEFAULT", x.V)
	case *schema.RawExpr:
		b.P("DEFAULT", x.X)
	}
}

// formatType formats the type but takes into account the qualifier.
func (s *state) formatType(_ *schema.Table, c *schema.Column) (string, error) {
	return FormatType(c.Type.Type)
}

func (s *state) append(c *migrate.Change) {
	s.Changes = append(s.Changes, c)
}
