package semantic

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Source is one file's URI and raw bytes, as handed to the workspace by an
// external file-discovery collaborator (the CLI's walker, an editor's open
// buffers, and so on — this package never touches the filesystem itself).
type Source struct {
	URI  string
	Data []byte
}

// Workspace holds the per-file Documents for a set of FSH files plus a
// cross-file symbol table: a qualified-name (entity or alias name) to
// defining-site map, used to resolve `Parent:`, `from`, `contains`, and
// `obeys` references that point outside the declaring file.
type Workspace struct {
	docs       map[string]*Document
	entityDefs map[string][]EntityDecl // name -> every file's declaration(s), for duplicate detection
	aliasDefs  map[string][]AliasDecl
}

// Documents returns all indexed documents, keyed by URI.
func (w *Workspace) Documents() map[string]*Document {
	return w.docs
}

// Document returns the indexed document for uri, or nil if not present.
func (w *Workspace) Document(uri string) *Document {
	return w.docs[uri]
}

// Resolve finds the defining EntityDecl for name across the whole
// workspace. When name is declared in more than one file, the first
// indexed occurrence (by Sources order) is returned; callers that care
// about duplicates should consult DuplicateEntities instead.
func (w *Workspace) Resolve(name string) (EntityDecl, bool) {
	defs, ok := w.entityDefs[name]
	if !ok || len(defs) == 0 {
		return EntityDecl{}, false
	}
	return defs[0], true
}

// ResolveAlias finds the defining AliasDecl for name across the workspace.
func (w *Workspace) ResolveAlias(name string) (AliasDecl, bool) {
	defs, ok := w.aliasDefs[name]
	if !ok || len(defs) == 0 {
		return AliasDecl{}, false
	}
	return defs[0], true
}

// DuplicateEntities returns every entity name declared more than once
// across the workspace, along with all of its declaration sites.
func (w *Workspace) DuplicateEntities() map[string][]EntityDecl {
	out := make(map[string][]EntityDecl)
	for name, defs := range w.entityDefs {
		if len(defs) > 1 {
			out[name] = defs
		}
	}
	return out
}

// IndexAll parses and indexes every source concurrently, then builds the
// cross-file symbol table. Parsing is total (Parse never errors), so the
// only failure mode is context cancellation between files; the per-file
// parallelism itself mirrors the workspace indexer's file-granularity
// concurrency model (one goroutine per file, no shared mutable tree state).
func IndexAll(ctx context.Context, sources []Source) (*Workspace, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	docs := make([]*Document, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = IndexDocument(src.URI, src.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("indexing workspace: %w", err)
	}

	w := &Workspace{
		docs:       make(map[string]*Document, len(docs)),
		entityDefs: make(map[string][]EntityDecl),
		aliasDefs:  make(map[string][]AliasDecl),
	}

	for i, doc := range docs {
		if doc == nil {
			continue
		}
		w.docs[sources[i].URI] = doc
		for _, e := range doc.Entities {
			w.entityDefs[e.Name] = append(w.entityDefs[e.Name], e)
		}
		for _, a := range doc.Aliases {
			w.aliasDefs[a.Name] = append(w.aliasDefs[a.Name], a)
		}
	}

	return w, nil
}
