// Package graph defines the typed code-graph: files, entities, references,
// and the closed enumerations that classify them. It has no storage or
// parsing logic of its own; the store persists these types and every other
// component operates on in-memory projections of them.
package graph

import "fmt"

// EntityKind is the closed set of declaration kinds the graph recognizes.
type EntityKind string

const (
	KindFunction  EntityKind = "function"
	KindMethod    EntityKind = "method"
	KindClass     EntityKind = "class"
	KindInterface EntityKind = "interface"
	KindTypeAlias EntityKind = "type-alias"
	KindModule    EntityKind = "module"
)

// ReferenceKind is the closed set of edge kinds a reference may carry.
type ReferenceKind string

const (
	RefCalls        ReferenceKind = "CALLS"
	RefReferences   ReferenceKind = "REFERENCES"
	RefInstantiates ReferenceKind = "INSTANTIATES"
	RefImports      ReferenceKind = "IMPORTS"
	RefExtends      ReferenceKind = "EXTENDS"
	RefImplements   ReferenceKind = "IMPLEMENTS"
	RefContains     ReferenceKind = "CONTAINS"
)

// ReferenceHint is the category the grammar adapter assigns a reference
// site, consulted by the resolver's tie-break policy.
type ReferenceHint string

const (
	HintUnqualifiedCall ReferenceHint = "unqualified_call"
	HintQualifiedCall   ReferenceHint = "qualified_call"
	HintTypePosition    ReferenceHint = "type_position"
	HintImportTarget    ReferenceHint = "import_target"
)

// SafetyTier grades the deletion risk of a non-live entity.
type SafetyTier string

const (
	DefinitelySafe SafetyTier = "DEFINITELY_SAFE"
	ProbablySafe   SafetyTier = "PROBABLY_SAFE"
	NeedsReview    SafetyTier = "NEEDS_REVIEW"
)

// OracleCategory is the closed set an external oracle may return when
// refining a non-live entity's classification.
type OracleCategory string

const (
	OracleSafeToDelete     OracleCategory = "SAFE_TO_DELETE"
	OracleKeepForFuture    OracleCategory = "KEEP_FOR_FUTURE"
	OracleExperimental     OracleCategory = "EXPERIMENTAL"
	OracleWorkInProgress   OracleCategory = "WORK_IN_PROGRESS"
	OracleNeedsReview      OracleCategory = "NEEDS_REVIEW"
)

// ScopeType is the hierarchical scope an AST node belongs to.
type ScopeType string

const (
	ScopeFile      ScopeType = "file"
	ScopeClass     ScopeType = "class"
	ScopeFunction  ScopeType = "function"
	ScopeBlock     ScopeType = "block"
	ScopeNamespace ScopeType = "namespace"
)

// Span is a byte-and-line range within a single file's current content.
type Span struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
}

// File is a scanned source file: its path, content hash, detected
// grammar, and when it was last parsed.
type File struct {
	ID         string `json:"id"`
	Path       string `json:"path"`
	ContentSHA string `json:"content_sha256"`
	Grammar    string `json:"grammar"`
	ParsedAt   int64  `json:"parsed_at"`
}

// Entity is a named, spanned declaration extracted from a file.
type Entity struct {
	ID            string     `json:"id"`
	FileID        string     `json:"file_id"`
	FilePath      string     `json:"file_path"`
	Kind          EntityKind `json:"kind"`
	SimpleName    string     `json:"simple_name"`
	QualifiedName string     `json:"qualified_name"`
	Span          Span       `json:"span"`
	Signature     string     `json:"signature"`
	Exported      bool       `json:"exported"`
	Doc           string     `json:"doc,omitempty"`
}

// Identity is the stable key an entity is re-identified by across
// reparses: file + fully-qualified local name + kind.
func (e Entity) Identity() string {
	return fmt.Sprintf("%s::%s::%s", e.FileID, e.Kind, e.QualifiedName)
}

// Reference is a directed, resolved edge from one entity to another.
type Reference struct {
	ID       string        `json:"id"`
	SourceID string        `json:"source_id"`
	TargetID string        `json:"target_id"`
	Kind     ReferenceKind `json:"kind"`
	Site     Span          `json:"site"`
}

// Unresolved records a reference site whose target name did not resolve
// against any scoping layer. Retained as a diagnostic, not an error.
type Unresolved struct {
	ID           string   `json:"id"`
	SourceID     string   `json:"source_id"`
	AttemptedName string  `json:"attempted_name"`
	Hint         ReferenceHint `json:"hint"`
	Site         Span     `json:"site"`
	LayersTried  []string `json:"layers_tried"`
}
