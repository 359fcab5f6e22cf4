package store

import "gorm.io/datatypes"

// fileRow is the gorm-mapped "files" relation of spec.md §4.6.
type fileRow struct {
	ID         string `gorm:"primaryKey"`
	Path       string `gorm:"uniqueIndex;not null"`
	ContentSHA string `gorm:"column:content_sha256;not null"`
	Grammar    string
	ParsedAt   int64
}

func (fileRow) TableName() string { return "files" }

// entityRow is the gorm-mapped "entities" relation. LayersTried and other
// slice-valued columns elsewhere use datatypes.JSON; entities need none,
// but the import keeps this package symmetric with unresolvedRow below.
type entityRow struct {
	ID            string `gorm:"primaryKey"`
	FileID        string `gorm:"column:file_id;index;not null"`
	Kind          string `gorm:"index"`
	SimpleName    string `gorm:"column:simple_name;index"`
	QualifiedName string `gorm:"column:qualified_name;index"`
	StartLine     int
	EndLine       int
	StartByte     int
	EndByte       int
	Signature     string
	Exported      bool
	Doc           string
}

func (entityRow) TableName() string { return "entities" }

// referenceRow is the gorm-mapped "references" relation.
type referenceRow struct {
	ID         string `gorm:"primaryKey"`
	SourceID   string `gorm:"column:source_entity_id;index;not null"`
	TargetID   string `gorm:"column:target_entity_id;index;not null"`
	Kind       string `gorm:"index"`
	SiteStartL int
	SiteEndL   int
	SiteStartB int
	SiteEndB   int
}

func (referenceRow) TableName() string { return "references" }

// unresolvedRow is the gorm-mapped "unresolved" relation, indexed by
// attempted name. Refresh does not consult it: every refresh reruns
// Pass 2 over all raw_references and rewrites this relation.
type unresolvedRow struct {
	ID            string `gorm:"primaryKey"`
	SourceID      string `gorm:"column:source_entity_id;index;not null"`
	AttemptedName string `gorm:"column:attempted_name;index;not null"`
	Hint          string
	SiteStartL    int
	SiteEndL      int
	SiteStartB    int
	SiteEndB      int
	LayersTried   datatypes.JSON `gorm:"column:layers_tried"`
}

func (unresolvedRow) TableName() string { return "unresolved" }

// rawReferenceRow persists one pre-resolution reference site per file.
// This is the durable form of parser.RawReference: keeping it lets
// incremental refresh re-run Pass 2 over the project's full reference
// set without re-parsing clean files, since entities (and therefore
// SourceID) are stable across refreshes for unchanged files.
type rawReferenceRow struct {
	ID          string `gorm:"primaryKey"`
	FileID      string `gorm:"column:file_id;index;not null"`
	SourceID    string `gorm:"column:source_entity_id;index;not null"`
	TargetName  string `gorm:"column:target_name;index;not null"`
	Hint        string
	Kind        string
	Qualifier   string
	SiteStartL  int
	SiteEndL    int
	SiteStartB  int
	SiteEndB    int
	Speculative bool `gorm:"column:speculative"`
}

func (rawReferenceRow) TableName() string { return "raw_references" }

// importBindingRow persists one file's locally-bound import name, the
// durable form of the Pass 1 import table (spec.md §4.3).
type importBindingRow struct {
	ID        string `gorm:"primaryKey"`
	FileID    string `gorm:"column:file_id;index;not null"`
	LocalName string `gorm:"column:local_name"`
	Path      string
}

func (importBindingRow) TableName() string { return "import_bindings" }
