package schema

// ColumnDef describes one column of an expected table.
type ColumnDef struct {
	Name       string
	Type       string
	NotNull    bool
	PrimaryKey bool
	Unique     bool
	// Default is a raw SQL expression (now(), gen_random_uuid()).
	Default string
	// DefaultLiteral is a string default that must be quoted.
	DefaultLiteral string
}

// TableDef describes one expected table.
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnChange is a column added to an existing table after its first release.
type ColumnChange struct {
	Table  string
	Column ColumnDef
}

// Catalog is the fixed, ordered set of tables the application expects.
type Catalog struct {
	Tables []TableDef
	Delta  []ColumnChange
}

// Names returns the table names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.Tables))
	for i, t := range c.Tables {
		names[i] = t.Name
	}
	return names
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (TableDef, bool) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableDef{}, false
}

// DeltaFor returns the delta columns of one table.
func (c *Catalog) DeltaFor(table string) []ColumnDef {
	var cols []ColumnDef
	for _, d := range c.Delta {
		if d.Table == table {
			cols = append(cols, d.Column)
		}
	}
	return cols
}

func commonColumns() []ColumnDef {
	return []ColumnDef{
		{Name: "id", Type: "bigint GENERATED ALWAYS AS IDENTITY", PrimaryKey: true},
		{Name: "local_id", Type: "uuid", NotNull: true, Unique: true},
		{Name: "created_at", Type: "timestamptz", NotNull: true, Default: "now()"},
		{Name: "updated_at", Type: "timestamptz", NotNull: true, Default: "now()"},
	}
}

func table(name string, cols ...ColumnDef) TableDef {
	return TableDef{Name: name, Columns: append(commonColumns(), cols...)}
}

// DefaultCatalog returns the kitchen catalog: articles, recipes, suppliers.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Tables: []TableDef{
			table("articles",
				ColumnDef{Name: "name", Type: "text", NotNull: true},
				ColumnDef{Name: "unit", Type: "text", NotNull: true, DefaultLiteral: "kg"},
				ColumnDef{Name: "price", Type: "numeric(12,2)"},
				ColumnDef{Name: "supplier_local_id", Type: "uuid"},
				ColumnDef{Name: "image_path", Type: "text"},
			),
			table("recipes",
				ColumnDef{Name: "name", Type: "text", NotNull: true},
				ColumnDef{Name: "portions", Type: "integer", NotNull: true, Default: "1"},
				ColumnDef{Name: "instructions", Type: "text"},
				ColumnDef{Name: "ingredients", Type: "jsonb", NotNull: true, Default: "'[]'::jsonb"},
				ColumnDef{Name: "image_path", Type: "text"},
			),
			table("suppliers",
				ColumnDef{Name: "name", Type: "text", NotNull: true},
				ColumnDef{Name: "email", Type: "text"},
				ColumnDef{Name: "phone", Type: "text"},
				ColumnDef{Name: "notes", Type: "text"},
			),
		},
		Delta: []ColumnChange{
			{Table: "articles", Column: ColumnDef{Name: "nutrition", Type: "jsonb"}},
			{Table: "recipes", Column: ColumnDef{Name: "allergens", Type: "text[]"}},
			{Table: "suppliers", Column: ColumnDef{Name: "order_day", Type: "text", DefaultLiteral: "monday"}},
		},
	}
}
