package models

// Config is the on-disk configuration, stored as YAML under ~/.mallard.
type Config struct {
	Mongo    Mongo    `yaml:"mongo"`
	Sink     Sink     `yaml:"sink"`
	Pipeline Pipeline `yaml:"pipeline"`
}

// Mongo holds document-source connection settings. Either URI carries a full
// connection string (mongodb:// or mongodb+srv://, possibly with a <password>
// placeholder), or Host/Username/Password are assembled into one.
type Mongo struct {
	URI      string `yaml:"uri,omitempty"`
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Sink holds tabular-sink connection settings. Driver selects the engine:
// "duckdb" (embedded, Path points at the database file) or "snowflake"
// (remote warehouse, the remaining fields build the DSN).
type Sink struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path,omitempty"`
	Account   string `yaml:"account,omitempty"`
	Username  string `yaml:"username,omitempty"`
	Password  string `yaml:"password,omitempty"`
	Database  string `yaml:"database,omitempty"`
	Schema    string `yaml:"schema,omitempty"`
	Warehouse string `yaml:"warehouse,omitempty"`
	Role      string `yaml:"role,omitempty"`
}

// Pipeline names the source collection and the target tables of each layer.
type Pipeline struct {
	Database       string `yaml:"database"`
	Collection     string `yaml:"collection"`
	RawTable       string `yaml:"raw_table"`
	IntTable       string `yaml:"int_table"`
	ExpCountsTable string `yaml:"exp_counts_table"`
	ExpScoresView  string `yaml:"exp_scores_view"`
	Strict         bool   `yaml:"strict"`
}

// Defaults used when a pipeline field is left empty. The table names are a
// fixed contract with downstream consumers and must not drift.
const (
	DefaultDatabase       = "sample_restaurants"
	DefaultCollection     = "restaurants"
	DefaultRawTable       = "raw_restaurantes"
	DefaultIntTable       = "int_restaurantes_notas"
	DefaultExpCountsTable = "exp_restaurantes_tipos_e_bairros"
	DefaultExpScoresView  = "exp_restaurantes_media_notas"
)

// ApplyDefaults fills empty pipeline fields with the standard layer names.
func (p *Pipeline) ApplyDefaults() {
	if p.Database == "" {
		p.Database = DefaultDatabase
	}
	if p.Collection == "" {
		p.Collection = DefaultCollection
	}
	if p.RawTable == "" {
		p.RawTable = DefaultRawTable
	}
	if p.IntTable == "" {
		p.IntTable = DefaultIntTable
	}
	if p.ExpCountsTable == "" {
		p.ExpCountsTable = DefaultExpCountsTable
	}
	if p.ExpScoresView == "" {
		p.ExpScoresView = DefaultExpScoresView
	}
}
