package ddl

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/faucetdb/schemer/internal/model"
	"github.com/faucetdb/schemer/internal/sqltype"
)

func sqlOf(stmts []Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.SQL
	}
	return out
}

func TestAddColumn(t *testing.T) {
	g := New("dbo")

	tests := []struct {
		name string
		spec model.ColumnSpec
		want []string
	}{
		{
			name: "nullable decimal",
			spec: model.ColumnSpec{Name: "Price", Type: sqltype.WithPrecision("DECIMAL", 10, 2), IsNullable: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Price] DECIMAL(10,2) NULL"},
		},
		{
			name: "not null varchar",
			spec: model.ColumnSpec{Name: "Status", Type: sqltype.WithLength("VARCHAR", 20)},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Status] VARCHAR(20) NOT NULL"},
		},
		{
			name: "int primary key gets identity and forced not null",
			spec: model.ColumnSpec{Name: "RowID", Type: sqltype.Named("INT"), IsPrimaryKey: true, IsNullable: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [RowID] INT IDENTITY(1,1) PRIMARY KEY NOT NULL"},
		},
		{
			name: "varchar primary key has no identity",
			spec: model.ColumnSpec{Name: "Code", Type: sqltype.WithLength("VARCHAR", 10), IsPrimaryKey: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Code] VARCHAR(10) PRIMARY KEY NOT NULL"},
		},
		{
			name: "computed",
			spec: model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "Price * Qty", IsNullable: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Total] AS Price * Qty"},
		},
		{
			name: "computed ignores key facets",
			spec: model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a+b", IsPrimaryKey: true, IsForeignKey: true, RefTable: "X", RefColumn: "Y"},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Total] AS a+b"},
		},
		{
			name: "foreign key adds constraint",
			spec: model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "Customers", RefColumn: "ID"},
			want: []string{
				"ALTER TABLE [dbo].[T] ADD [CustomerID] INT NULL",
				"ALTER TABLE [dbo].[T] ADD CONSTRAINT [FK_T_CustomerID] FOREIGN KEY ([CustomerID]) REFERENCES [dbo].[Customers] ([ID])",
			},
		},
		{
			name: "max length",
			spec: model.ColumnSpec{Name: "Notes", Type: sqltype.WithLength("NVARCHAR", sqltype.MaxLength), IsNullable: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [Notes] NVARCHAR(MAX) NULL"},
		},
		{
			name: "bracket in name is escaped",
			spec: model.ColumnSpec{Name: "a]b", Type: sqltype.Named("BIT"), IsNullable: true},
			want: []string{"ALTER TABLE [dbo].[T] ADD [a]]b] BIT NULL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := g.AddColumn("T", tt.spec)
			if err != nil {
				t.Fatalf("AddColumn: %v", err)
			}
			if got := sqlOf(stmts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AddColumn SQL =\n%q\nwant\n%q", got, tt.want)
			}
			for i, s := range stmts {
				if s.Table != "T" {
					t.Errorf("stmt %d Table = %q, want T", i, s.Table)
				}
				if want := i == len(stmts)-1; s.Commit != want {
					t.Errorf("stmt %d Commit = %v, want %v", i, s.Commit, want)
				}
				if strings.Contains(s.SQL, "  ") {
					t.Errorf("stmt %d has a double space: %q", i, s.SQL)
				}
			}
		})
	}
}

func TestAddColumnValidation(t *testing.T) {
	g := New("")

	tests := []struct {
		name   string
		table  string
		spec   model.ColumnSpec
		reason string
	}{
		{"missing name", "T", model.ColumnSpec{Type: sqltype.Named("INT")}, "missing column name"},
		{"missing formula", "T", model.ColumnSpec{Name: "Total", IsComputed: true}, "missing formula"},
		{"foreign key without ref table", "T", model.ColumnSpec{Name: "C", Type: sqltype.Named("INT"), IsForeignKey: true, RefColumn: "ID"}, "incomplete foreign key"},
		{"missing type", "T", model.ColumnSpec{Name: "C"}, "missing data type"},
		{"injected type", "T", model.ColumnSpec{Name: "C", Type: sqltype.ColumnType{Base: "INT; DROP TABLE T"}}, "invalid data type"},
		{"control char in table", "T\n", model.ColumnSpec{Name: "C", Type: sqltype.Named("INT")}, "control character"},
		{"empty table", "", model.ColumnSpec{Name: "C", Type: sqltype.Named("INT")}, "cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := g.AddColumn(tt.table, tt.spec)
			if stmts != nil {
				t.Errorf("expected no statements, got %q", sqlOf(stmts))
			}
			var ve *model.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !strings.Contains(ve.Error(), tt.reason) {
				t.Errorf("error %q does not contain %q", ve.Error(), tt.reason)
			}
		})
	}
}

func TestEditColumn(t *testing.T) {
	g := New("dbo")

	tests := []struct {
		name  string
		prior model.ColumnSpec
		spec  model.ColumnSpec
		want  []string
	}{
		{
			name:  "retype only",
			prior: model.ColumnSpec{Name: "Qty", Type: sqltype.Named("INT")},
			spec:  model.ColumnSpec{Name: "Qty", Type: sqltype.Named("BIGINT"), IsNullable: true},
			want:  []string{"ALTER TABLE [dbo].[Orders] ALTER COLUMN [Qty] BIGINT NULL"},
		},
		{
			name:  "rename comes first",
			prior: model.ColumnSpec{Name: "Qty", Type: sqltype.Named("INT")},
			spec:  model.ColumnSpec{Name: "Quantity", Type: sqltype.Named("BIGINT")},
			want: []string{
				"EXEC sp_rename @objname = @p1, @newname = @p2, @objtype = 'COLUMN'",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [Quantity] BIGINT NOT NULL",
			},
		},
		{
			name:  "convert to computed drops then adds",
			prior: model.ColumnSpec{Name: "Total", Type: sqltype.WithPrecision("DECIMAL", 10, 2), IsNullable: true},
			spec:  model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "Price * Qty"},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP COLUMN [Total]",
				"ALTER TABLE [dbo].[Orders] ADD [Total] AS Price * Qty",
			},
		},
		{
			name:  "changed formula recreates",
			prior: model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a+b"},
			spec:  model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a*b"},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP COLUMN [Total]",
				"ALTER TABLE [dbo].[Orders] ADD [Total] AS a*b",
			},
		},
		{
			name:  "unchanged computed column emits nothing",
			prior: model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a+b"},
			spec:  model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a+b"},
			want:  []string{},
		},
		{
			name:  "computed back to plain",
			prior: model.ColumnSpec{Name: "Total", IsComputed: true, ComputedFormula: "a+b"},
			spec:  model.ColumnSpec{Name: "Total", Type: sqltype.WithPrecision("DECIMAL", 12, 2), IsNullable: true},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP COLUMN [Total]",
				"ALTER TABLE [dbo].[Orders] ADD [Total] DECIMAL(12,2) NULL",
			},
		},
		{
			name:  "primary key flips on",
			prior: model.ColumnSpec{Name: "Code", Type: sqltype.WithLength("VARCHAR", 10)},
			spec:  model.ColumnSpec{Name: "Code", Type: sqltype.WithLength("VARCHAR", 10), IsPrimaryKey: true, IsNullable: true},
			want: []string{
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [Code] VARCHAR(10) NOT NULL",
				"ALTER TABLE [dbo].[Orders] ADD CONSTRAINT [PK_Code] PRIMARY KEY ([Code])",
			},
		},
		{
			name:  "primary key flips off under the old name",
			prior: model.ColumnSpec{Name: "OldID", Type: sqltype.Named("INT"), IsPrimaryKey: true},
			spec:  model.ColumnSpec{Name: "NewID", Type: sqltype.Named("INT")},
			want: []string{
				"EXEC sp_rename @objname = @p1, @newname = @p2, @objtype = 'COLUMN'",
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [PK_OldID]",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [NewID] INT NOT NULL",
			},
		},
		{
			name:  "foreign key target changes",
			prior: model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsForeignKey: true, RefTable: "Customers", RefColumn: "ID"},
			spec:  model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsForeignKey: true, RefTable: "Clients", RefColumn: "ID"},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [FK_Orders_CustomerID]",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [CustomerID] INT NOT NULL",
				"ALTER TABLE [dbo].[Orders] ADD CONSTRAINT [FK_Orders_CustomerID] FOREIGN KEY ([CustomerID]) REFERENCES [dbo].[Clients] ([ID])",
			},
		},
		{
			name:  "unchanged keyed column is left alone",
			prior: model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsForeignKey: true, RefTable: "Customers", RefColumn: "ID"},
			spec:  model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("int"), IsForeignKey: true, RefTable: "customers", RefColumn: "id"},
			want:  []string{},
		},
		{
			name:  "kept foreign key wraps a nullability change",
			prior: model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsForeignKey: true, RefTable: "Customers", RefColumn: "ID", ForeignKeyConstraint: "FK_Orders_CustomerID"},
			spec:  model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "Customers", RefColumn: "ID"},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [FK_Orders_CustomerID]",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [CustomerID] INT NULL",
				"ALTER TABLE [dbo].[Orders] ADD CONSTRAINT [FK_Orders_CustomerID] FOREIGN KEY ([CustomerID]) REFERENCES [dbo].[Customers] ([ID])",
			},
		},
		{
			name:  "renamed foreign key column drops the stored constraint",
			prior: model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "Customers", RefColumn: "ID", ForeignKeyConstraint: "FK_Orders_Cust"},
			spec:  model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [FK_Orders_Cust]",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [CustomerID] INT NULL",
			},
		},
		{
			name:  "rename of a keyed column only renames",
			prior: model.ColumnSpec{Name: "ID", Type: sqltype.Named("INT"), IsPrimaryKey: true, PrimaryKeyConstraint: "PK__Orders__3214EC27"},
			spec:  model.ColumnSpec{Name: "OrderID", Type: sqltype.Named("INT"), IsPrimaryKey: true},
			want:  []string{"EXEC sp_rename @objname = @p1, @newname = @p2, @objtype = 'COLUMN'"},
		},
		{
			name:  "kept primary key wraps a retype",
			prior: model.ColumnSpec{Name: "ID", Type: sqltype.Named("INT"), IsPrimaryKey: true, PrimaryKeyConstraint: "PK__Orders__3214EC27"},
			spec:  model.ColumnSpec{Name: "ID", Type: sqltype.Named("BIGINT"), IsPrimaryKey: true},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [PK__Orders__3214EC27]",
				"ALTER TABLE [dbo].[Orders] ALTER COLUMN [ID] BIGINT NOT NULL",
				"ALTER TABLE [dbo].[Orders] ADD CONSTRAINT [PK_ID] PRIMARY KEY ([ID])",
			},
		},
		{
			name:  "plain with keys becomes computed",
			prior: model.ColumnSpec{Name: "Ref", Type: sqltype.Named("INT"), IsPrimaryKey: true, IsForeignKey: true, RefTable: "Other", RefColumn: "ID"},
			spec:  model.ColumnSpec{Name: "Ref", IsComputed: true, ComputedFormula: "ID * 2"},
			want: []string{
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [FK_Orders_Ref]",
				"ALTER TABLE [dbo].[Orders] DROP CONSTRAINT [PK_Ref]",
				"ALTER TABLE [dbo].[Orders] DROP COLUMN [Ref]",
				"ALTER TABLE [dbo].[Orders] ADD [Ref] AS ID * 2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmts, err := g.EditColumn("Orders", tt.prior, tt.spec)
			if err != nil {
				t.Fatalf("EditColumn: %v", err)
			}
			got := sqlOf(stmts)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EditColumn SQL =\n%q\nwant\n%q", got, tt.want)
			}
			for i, s := range stmts {
				if want := i == len(stmts)-1; s.Commit != want {
					t.Errorf("stmt %d Commit = %v, want %v", i, s.Commit, want)
				}
			}
		})
	}
}

func TestEditColumnRenameArgs(t *testing.T) {
	g := New("sales")
	stmts, err := g.EditColumn("Orders",
		model.ColumnSpec{Name: "Qty", Type: sqltype.Named("INT")},
		model.ColumnSpec{Name: "Quantity", Type: sqltype.Named("INT")},
	)
	if err != nil {
		t.Fatalf("EditColumn: %v", err)
	}
	want := []interface{}{"[sales].[Orders].[Qty]", "Quantity"}
	if !reflect.DeepEqual(stmts[0].Args, want) {
		t.Errorf("rename args = %v, want %v", stmts[0].Args, want)
	}
	if stmts[0].Commit {
		t.Error("rename should not carry the commit boundary when more statements follow")
	}
}

func TestEditColumnAfterRenameThenForeignKeyRemoval(t *testing.T) {
	g := New("dbo")

	added, err := g.AddColumn("O", model.ColumnSpec{Name: "Cust", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "C", RefColumn: "ID"})
	if err != nil {
		t.Fatalf("AddColumn: %v", err)
	}
	if !strings.Contains(added[1].SQL, "[FK_O_Cust]") {
		t.Fatalf("unexpected constraint statement %q", added[1].SQL)
	}

	// The catalog reports the constraint under its original name after the rename.
	renamed := model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true, IsForeignKey: true, RefTable: "C", RefColumn: "ID", ForeignKeyConstraint: "FK_O_Cust"}
	stmts, err := g.EditColumn("O", renamed, model.ColumnSpec{Name: "CustomerID", Type: sqltype.Named("INT"), IsNullable: true})
	if err != nil {
		t.Fatalf("EditColumn: %v", err)
	}
	want := []string{
		"ALTER TABLE [dbo].[O] DROP CONSTRAINT [FK_O_Cust]",
		"ALTER TABLE [dbo].[O] ALTER COLUMN [CustomerID] INT NULL",
	}
	if got := sqlOf(stmts); !reflect.DeepEqual(got, want) {
		t.Errorf("EditColumn SQL =\n%q\nwant\n%q", got, want)
	}
}

func TestEditColumnValidation(t *testing.T) {
	g := New("dbo")
	_, err := g.EditColumn("Orders",
		model.ColumnSpec{Name: "C", Type: sqltype.Named("INT")},
		model.ColumnSpec{Name: "C", Type: sqltype.Named("INT"), IsForeignKey: true},
	)
	var ve *model.ValidationError
	if !errors.As(err, &ve) || ve.Reason != "incomplete foreign key" {
		t.Errorf("expected incomplete foreign key, got %v", err)
	}
}

func TestDropColumn(t *testing.T) {
	g := New("dbo")
	stmts, err := g.DropColumn("Orders", "Status")
	if err != nil {
		t.Fatalf("DropColumn: %v", err)
	}
	if len(stmts) != 1 || stmts[0].SQL != "ALTER TABLE [dbo].[Orders] DROP COLUMN [Status]" || !stmts[0].Commit {
		t.Errorf("DropColumn = %+v", stmts)
	}

	if _, err := g.DropColumn("Orders", " "); err == nil {
		t.Error("expected error for empty column name")
	}
}

func TestCreateDatabase(t *testing.T) {
	stmts, err := New("").CreateDatabase("Shop")
	if err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if len(stmts) != 1 {
		t.Fatalf("got %d statements", len(stmts))
	}
	s := stmts[0]
	if s.SQL != "CREATE DATABASE [Shop]" || !s.Standalone || !s.Commit || s.Table != "" {
		t.Errorf("CreateDatabase = %+v", s)
	}
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		idType  string
		want    string
		wantErr bool
	}{
		{"", "CREATE TABLE [dbo].[Orders] ([ID] INT IDENTITY(1,1) PRIMARY KEY)", false},
		{"bigint", "CREATE TABLE [dbo].[Orders] ([ID] BIGINT IDENTITY(1,1) PRIMARY KEY)", false},
		{"VARCHAR", "", true},
	}
	for _, tt := range tests {
		t.Run("id="+tt.idType, func(t *testing.T) {
			stmts, err := New("dbo").CreateTable("Orders", tt.idType)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", sqlOf(stmts))
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateTable: %v", err)
			}
			if stmts[0].SQL != tt.want {
				t.Errorf("CreateTable = %q, want %q", stmts[0].SQL, tt.want)
			}
		})
	}
}

func TestDropTable(t *testing.T) {
	stmts, err := New("dbo").DropTable("Orders")
	if err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if stmts[0].SQL != "DROP TABLE [dbo].[Orders]" {
		t.Errorf("DropTable = %q", stmts[0].SQL)
	}
	if _, err := New("dbo").DropTable(""); err == nil {
		t.Error("expected error for empty table name")
	}
}
