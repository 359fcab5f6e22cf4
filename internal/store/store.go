// Package store persists files, entities, references, and unresolved
// diagnostics in a project-local SQLite database, and serves the
// incremental refresh algorithm of spec.md §4.6. A Store is a
// process-scoped, lifecycle-managed resource with an explicit Open/Close,
// per spec.md §9's "avoid singletons" design note; every component that
// needs storage is handed a *Store explicitly.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oxhq/indexchan/internal/config"
	"github.com/oxhq/indexchan/internal/graph"
	"github.com/oxhq/indexchan/internal/ignore"
	"github.com/oxhq/indexchan/internal/lang"
	"github.com/oxhq/indexchan/internal/model"
	"github.com/oxhq/indexchan/internal/parser"
	"github.com/oxhq/indexchan/internal/resolver"
	"github.com/oxhq/indexchan/internal/scanner"
)

// Store is a single project's persistent code-graph index, backed by a
// SQLite database at <root>/.index-chan/index.db.
type Store struct {
	root string
	db   *gorm.DB
	txl  *txLog

	// mu serializes refresh (exclusive) against queries (shared), per
	// spec.md §5's "exactly one writer at a time" store contract.
	mu sync.RWMutex
}

// Dir returns the .index-chan directory path for root.
func Dir(root string) string { return filepath.Join(root, ".index-chan") }

// Open opens (creating if absent) the store rooted at root.
func Open(root string) (*Store, error) {
	dir := Dir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.Wrap(model.ECIO, fmt.Errorf("create %s: %w", dir, err))
	}
	dsn := filepath.Join(dir, "index.db") +
		"?_busy_timeout=5000&_foreign_keys=ON&_journal_mode=WAL&_synchronous=NORMAL"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, model.Wrap(model.ECIO, fmt.Errorf("open store: %w", err))
	}
	if err := db.AutoMigrate(
		&fileRow{}, &entityRow{}, &referenceRow{}, &unresolvedRow{},
		&rawReferenceRow{}, &importBindingRow{},
	); err != nil {
		return nil, model.Wrap(model.ECInvariant, fmt.Errorf("migrate store: %w", err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, model.Wrap(model.ECIO, err)
	}
	txl, err := openTxLog(sqlDB)
	if err != nil {
		return nil, model.Wrap(model.ECInvariant, fmt.Errorf("open transaction log: %w", err))
	}

	return &Store{root: root, db: db, txl: txl}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RefreshReport summarizes one Refresh invocation for CLI/RPC reporting.
type RefreshReport struct {
	FilesScanned int
	FilesDirty   int
	FilesDeleted int
	Entities     int
	References   int
	Unresolved   int
	Duration     time.Duration
}

// Refresh implements spec.md §4.6's incremental refresh algorithm. Only
// dirty files are re-parsed; reference resolution (Pass 2) always
// recomputes over the project's complete raw reference set, which is
// inexpensive relative to parsing and keeps resolution trivially
// equivalent between incremental and from-scratch refreshes (see
// DESIGN.md).
func (s *Store) Refresh(registry *lang.Registry, policy *ignore.Policy, cfg *config.Config) (RefreshReport, error) {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	scanned, err := scanner.Scan(s.root, policy, registry.Extensions())
	if err != nil {
		return RefreshReport{}, model.Wrap(model.ECIO, err)
	}

	var existing []fileRow
	if err := s.db.Find(&existing).Error; err != nil {
		return RefreshReport{}, model.Wrap(model.ECInvariant, err)
	}
	existingByPath := make(map[string]fileRow, len(existing))
	for _, f := range existing {
		existingByPath[f.Path] = f
	}
	scannedByPath := make(map[string]scanner.ScannedFile, len(scanned))
	for _, f := range scanned {
		scannedByPath[f.Path] = f
	}

	var dirty []scanner.ScannedFile
	for _, f := range scanned {
		if old, ok := existingByPath[f.Path]; !ok || old.ContentSHA != f.ContentSHA {
			dirty = append(dirty, f)
		}
	}
	var deletedFileIDs []string
	for path, old := range existingByPath {
		if _, ok := scannedByPath[path]; !ok {
			deletedFileIDs = append(deletedFileIDs, old.ID)
		}
	}

	report := RefreshReport{FilesScanned: len(scanned), FilesDirty: len(dirty), FilesDeleted: len(deletedFileIDs)}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if len(deletedFileIDs) > 0 {
			if err := cascadeDeleteFiles(tx, deletedFileIDs); err != nil {
				return err
			}
		}
		for _, f := range dirty {
			fileID, err := s.upsertFile(tx, f, existingByPath, registry)
			if err != nil {
				return err
			}
			if err := cascadeDeleteFiles(tx, []string{fileID}); err != nil {
				return err
			}
			if err := s.reparseFile(tx, fileID, f, registry, cfg); err != nil {
				return err
			}
		}
		return s.recomputeResolution(tx, cfg)
	})
	if err != nil {
		return RefreshReport{}, model.Wrap(model.ECParse, err)
	}

	var entityCount, refCount, unresolvedCount int64
	s.db.Model(&entityRow{}).Count(&entityCount)
	s.db.Model(&referenceRow{}).Count(&refCount)
	s.db.Model(&unresolvedRow{}).Count(&unresolvedCount)
	report.Entities = int(entityCount)
	report.References = int(refCount)
	report.Unresolved = int(unresolvedCount)
	report.Duration = time.Since(start)

	s.txl.record("refresh", fmt.Sprintf(
		"scanned=%d dirty=%d deleted=%d entities=%d refs=%d unresolved=%d",
		report.FilesScanned, report.FilesDirty, report.FilesDeleted,
		report.Entities, report.References, report.Unresolved,
	))
	return report, nil
}

// upsertFile writes or updates f's fileRow and returns its ID, reusing
// the existing ID when the path was already known so entity/reference
// foreign keys need no renumbering.
func (s *Store) upsertFile(tx *gorm.DB, f scanner.ScannedFile, existingByPath map[string]fileRow, registry *lang.Registry) (string, error) {
	id := uuid.NewString()
	grammar := ""
	if p := registry.For(filepath.Ext(f.Path)); p != nil {
		grammar = p.Lang()
	}
	if old, ok := existingByPath[f.Path]; ok {
		id = old.ID
	}
	row := fileRow{ID: id, Path: f.Path, ContentSHA: f.ContentSHA, Grammar: grammar, ParsedAt: time.Now().Unix()}
	return id, tx.Save(&row).Error
}

// cascadeDeleteFiles removes fileIDs and everything keyed to their
// entities: entities themselves, any reference/raw-reference/unresolved
// row sourced OR targeted at one of those entities, and their import
// bindings. This is the manual cascade spec.md §3's "deleting a file
// cascades to its entities and every reference with that file as source
// or target" calls for.
func cascadeDeleteFiles(tx *gorm.DB, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	var entityIDs []string
	if err := tx.Model(&entityRow{}).Where("file_id IN ?", fileIDs).Pluck("id", &entityIDs).Error; err != nil {
		return err
	}
	if err := tx.Where("id IN ?", fileIDs).Delete(&fileRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&entityRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&rawReferenceRow{}).Error; err != nil {
		return err
	}
	if err := tx.Where("file_id IN ?", fileIDs).Delete(&importBindingRow{}).Error; err != nil {
		return err
	}
	if len(entityIDs) > 0 {
		if err := tx.Where("source_entity_id IN ? OR target_entity_id IN ?", entityIDs, entityIDs).Delete(&referenceRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("source_entity_id IN ?", entityIDs).Delete(&unresolvedRow{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// reparseFile parses f with the provider registered for its extension
// and persists its entities, raw reference sites, and import bindings.
func (s *Store) reparseFile(tx *gorm.DB, fileID string, f scanner.ScannedFile, registry *lang.Registry, cfg *config.Config) error {
	provider := registry.For(filepath.Ext(f.Path))
	if provider == nil {
		return nil
	}
	p := parser.New(provider, cfg)
	file := graph.File{ID: fileID, Path: f.Path, ContentSHA: f.ContentSHA, Grammar: provider.Lang()}
	batch, err := p.Parse(file, f.Content)
	if err != nil {
		// PARSE failures are diagnostics, not refresh-aborting errors
		// (spec.md §7): the file's entities are simply absent.
		return nil
	}

	rows := make([]entityRow, 0, len(batch.Entities))
	for _, e := range batch.Entities {
		rows = append(rows, entityRow{
			ID: e.ID, FileID: e.FileID, Kind: string(e.Kind),
			SimpleName: e.SimpleName, QualifiedName: e.QualifiedName,
			StartLine: e.Span.StartLine, EndLine: e.Span.EndLine,
			StartByte: e.Span.StartByte, EndByte: e.Span.EndByte,
			Signature: e.Signature, Exported: e.Exported, Doc: e.Doc,
		})
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
	}

	var rawRows []rawReferenceRow
	var bindingRows []importBindingRow
	for _, rr := range batch.References {
		if rr.Kind == graph.RefImports {
			bindingRows = append(bindingRows, importBindingRow{
				ID: uuid.NewString(), FileID: fileID, LocalName: rr.Qualifier, Path: rr.TargetName,
			})
			continue
		}
		rawRows = append(rawRows, rawReferenceRow{
			ID: uuid.NewString(), FileID: fileID, SourceID: rr.SourceEntityID,
			TargetName: rr.TargetName, Hint: string(rr.Hint), Kind: string(rr.Kind), Qualifier: rr.Qualifier,
			SiteStartL: rr.SiteSpan.StartLine, SiteEndL: rr.SiteSpan.EndLine,
			SiteStartB: rr.SiteSpan.StartByte, SiteEndB: rr.SiteSpan.EndByte,
			Speculative: rr.Speculative,
		})
	}
	if len(rawRows) > 0 {
		if err := tx.Create(&rawRows).Error; err != nil {
			return err
		}
	}
	if len(bindingRows) > 0 {
		if err := tx.Create(&bindingRows).Error; err != nil {
			return err
		}
	}
	return nil
}

// recomputeResolution rebuilds the references/unresolved relations from
// the project's complete, currently-stored entities/raw_references/
// import_bindings.
func (s *Store) recomputeResolution(tx *gorm.DB, cfg *config.Config) error {
	var entities []entityRow
	if err := tx.Find(&entities).Error; err != nil {
		return err
	}
	var rawRefs []rawReferenceRow
	if err := tx.Find(&rawRefs).Error; err != nil {
		return err
	}
	var bindings []importBindingRow
	if err := tx.Find(&bindings).Error; err != nil {
		return err
	}
	var files []fileRow
	if err := tx.Find(&files).Error; err != nil {
		return err
	}

	batches := buildBatches(files, entities, rawRefs, bindings)
	result := resolver.New(cfg, batches).Resolve()

	if err := tx.Exec("DELETE FROM " + (referenceRow{}).TableName()).Error; err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM " + (unresolvedRow{}).TableName()).Error; err != nil {
		return err
	}

	refRows := make([]referenceRow, 0, len(result.References))
	for _, r := range result.References {
		refRows = append(refRows, referenceRow{
			ID: r.ID, SourceID: r.SourceID, TargetID: r.TargetID, Kind: string(r.Kind),
			SiteStartL: r.Site.StartLine, SiteEndL: r.Site.EndLine,
			SiteStartB: r.Site.StartByte, SiteEndB: r.Site.EndByte,
		})
	}
	if len(refRows) > 0 {
		if err := tx.CreateInBatches(refRows, 200).Error; err != nil {
			return err
		}
	}

	unresolvedRows := make([]unresolvedRow, 0, len(result.Unresolved))
	for _, u := range result.Unresolved {
		layers, _ := json.Marshal(u.LayersTried)
		unresolvedRows = append(unresolvedRows, unresolvedRow{
			ID: u.ID, SourceID: u.SourceID, AttemptedName: u.AttemptedName, Hint: string(u.Hint),
			SiteStartL: u.Site.StartLine, SiteEndL: u.Site.EndLine,
			SiteStartB: u.Site.StartByte, SiteEndB: u.Site.EndByte,
			LayersTried: layers,
		})
	}
	if len(unresolvedRows) > 0 {
		if err := tx.CreateInBatches(unresolvedRows, 200).Error; err != nil {
			return err
		}
	}
	return nil
}

// buildBatches reconstitutes parser.EntityBatch values from persisted
// rows so resolver.New can rebuild Pass 1's indexes without re-parsing.
func buildBatches(files []fileRow, entities []entityRow, rawRefs []rawReferenceRow, bindings []importBindingRow) []parser.EntityBatch {
	entitiesByFile := map[string][]graph.Entity{}
	for _, e := range entities {
		entitiesByFile[e.FileID] = append(entitiesByFile[e.FileID], graph.Entity{
			ID: e.ID, FileID: e.FileID, Kind: graph.EntityKind(e.Kind),
			SimpleName: e.SimpleName, QualifiedName: e.QualifiedName,
			Span:      graph.Span{StartLine: e.StartLine, EndLine: e.EndLine, StartByte: e.StartByte, EndByte: e.EndByte},
			Signature: e.Signature, Exported: e.Exported, Doc: e.Doc,
		})
	}
	refsByFile := map[string][]parser.RawReference{}
	for _, r := range rawRefs {
		refsByFile[r.FileID] = append(refsByFile[r.FileID], parser.RawReference{
			SourceEntityID: r.SourceID, TargetName: r.TargetName,
			Hint: graph.ReferenceHint(r.Hint), Kind: graph.ReferenceKind(r.Kind), Qualifier: r.Qualifier,
			SiteSpan:    graph.Span{StartLine: r.SiteStartL, EndLine: r.SiteEndL, StartByte: r.SiteStartB, EndByte: r.SiteEndB},
			Speculative: r.Speculative,
		})
	}
	for _, b := range bindings {
		refsByFile[b.FileID] = append(refsByFile[b.FileID], parser.RawReference{
			Kind: graph.RefImports, TargetName: b.Path, Qualifier: b.LocalName,
		})
	}

	batches := make([]parser.EntityBatch, 0, len(files))
	for _, f := range files {
		batches = append(batches, parser.EntityBatch{
			File:       graph.File{ID: f.ID, Path: f.Path, ContentSHA: f.ContentSHA, Grammar: f.Grammar, ParsedAt: f.ParsedAt},
			Entities:   entitiesByFile[f.ID],
			References: refsByFile[f.ID],
		})
	}
	return batches
}

// LoadGraph takes a shared read lease, projects the full graph into
// memory, and releases the lease before returning, per spec.md §5's
// query contract.
func (s *Store) LoadGraph() (*graph.Graph, []graph.Unresolved, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entityRows []entityRow
	if err := s.db.Find(&entityRows).Error; err != nil {
		return nil, nil, model.Wrap(model.ECInvariant, err)
	}
	var entityFilePaths = map[string]string{}
	var fileRows []fileRow
	if err := s.db.Find(&fileRows).Error; err != nil {
		return nil, nil, model.Wrap(model.ECInvariant, err)
	}
	for _, f := range fileRows {
		entityFilePaths[f.ID] = f.Path
	}

	entities := make([]*graph.Entity, 0, len(entityRows))
	for _, e := range entityRows {
		entities = append(entities, &graph.Entity{
			ID: e.ID, FileID: e.FileID, FilePath: entityFilePaths[e.FileID],
			Kind: graph.EntityKind(e.Kind), SimpleName: e.SimpleName, QualifiedName: e.QualifiedName,
			Span:      graph.Span{StartLine: e.StartLine, EndLine: e.EndLine, StartByte: e.StartByte, EndByte: e.EndByte},
			Signature: e.Signature, Exported: e.Exported, Doc: e.Doc,
		})
	}

	var refRows []referenceRow
	if err := s.db.Find(&refRows).Error; err != nil {
		return nil, nil, model.Wrap(model.ECInvariant, err)
	}
	refs := make([]*graph.Reference, 0, len(refRows))
	for _, r := range refRows {
		refs = append(refs, &graph.Reference{
			ID: r.ID, SourceID: r.SourceID, TargetID: r.TargetID, Kind: graph.ReferenceKind(r.Kind),
			Site: graph.Span{StartLine: r.SiteStartL, EndLine: r.SiteEndL, StartByte: r.SiteStartB, EndByte: r.SiteEndB},
		})
	}

	var unresolvedRows []unresolvedRow
	if err := s.db.Find(&unresolvedRows).Error; err != nil {
		return nil, nil, model.Wrap(model.ECInvariant, err)
	}
	unresolved := make([]graph.Unresolved, 0, len(unresolvedRows))
	for _, u := range unresolvedRows {
		var layers []string
		_ = json.Unmarshal(u.LayersTried, &layers)
		unresolved = append(unresolved, graph.Unresolved{
			ID: u.ID, SourceID: u.SourceID, AttemptedName: u.AttemptedName, Hint: graph.ReferenceHint(u.Hint),
			Site:        graph.Span{StartLine: u.SiteStartL, EndLine: u.SiteEndL, StartByte: u.SiteStartB, EndByte: u.SiteEndB},
			LayersTried: layers,
		})
	}

	return graph.New(entities, refs), unresolved, nil
}

// SearchLog runs a full-text search over this store's refresh
// diagnostic log.
func (s *Store) SearchLog(query string) ([]string, error) {
	return s.txl.search(query)
}

// FileGrammars returns every known file's detected grammar identifier,
// keyed by file ID, for components (annotate) that need
// per-file language without loading the whole graph.
func (s *Store) FileGrammars() (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []fileRow
	if err := s.db.Find(&files).Error; err != nil {
		return nil, model.Wrap(model.ECInvariant, err)
	}
	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.ID] = f.Grammar
	}
	return out, nil
}

// FileContents loads the current on-disk content of every file the
// store knows about, keyed by file ID, for the context gatherer's
// rendering pass.
func (s *Store) FileContents() (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var files []fileRow
	if err := s.db.Find(&files).Error; err != nil {
		return nil, model.Wrap(model.ECInvariant, err)
	}
	out := make(map[string][]byte, len(files))
	for _, f := range files {
		content, err := os.ReadFile(filepath.Join(s.root, f.Path))
		if err != nil {
			continue
		}
		out[f.ID] = content
	}
	return out, nil
}
