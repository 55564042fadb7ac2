package astgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/giai-dev/giai/internal/hashid"
)

// Snapshot is the full relational state, JSON-serializable for the
// in-memory engine's export/import and for meta.json's
// astGraph.dbPath-less fallback form.
type Snapshot struct {
	Files      []FileRow        `json:"files"`
	Symbols    []SymbolRow      `json:"symbols"`
	Contains   []ContainsEdge   `json:"contains"`
	Extends    []ExtendsEdge    `json:"extends"`
	Implements []ImplementsEdge `json:"implements"`
	Refs       []RefEdge        `json:"refs"`
	Calls      []CallEdge       `json:"calls"`
}

// MemoryStore is the in-memory fallback variant of Store: every
// relation lives in a Snapshot guarded by a mutex. It is used when the
// SQLite driver can't be loaded (backend unavailability degrades
// here rather than disabling the graph outright, when possible) and as
// the read snapshot both backends traverse for Chain/Query.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory AST graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreFromSnapshot wraps an existing snapshot (used by
// SQLiteStore to run Chain/Query against a read-only copy of its
// tables).
func NewMemoryStoreFromSnapshot(s Snapshot) *MemoryStore {
	return &MemoryStore{snap: s}
}

func (m *MemoryStore) Put(ctx context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteFileLocked(b.File.Path)

	m.snap.Files = append(m.snap.Files, b.File)
	m.snap.Symbols = append(m.snap.Symbols, b.Symbols...)
	m.snap.Contains = append(m.snap.Contains, b.Contains...)
	m.snap.Extends = append(m.snap.Extends, b.Extends...)
	m.snap.Implements = append(m.snap.Implements, b.Implements...)
	m.snap.Refs = append(m.snap.Refs, b.Refs...)
	m.snap.Calls = append(m.snap.Calls, b.Calls...)
	return nil
}

func (m *MemoryStore) DeleteFile(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteFileLocked(path)
	return nil
}

func (m *MemoryStore) deleteFileLocked(path string) {
	if path == "" {
		return
	}
	keep := m.snap.Files[:0]
	for _, f := range m.snap.Files {
		if f.Path != path {
			keep = append(keep, f)
		}
	}
	m.snap.Files = keep

	keepSym := m.snap.Symbols[:0]
	for _, s := range m.snap.Symbols {
		if s.File != path {
			keepSym = append(keepSym, s)
		}
	}
	m.snap.Symbols = keepSym

	keepContains := m.snap.Contains[:0]
	for _, c := range m.snap.Contains {
		if c.File != path {
			keepContains = append(keepContains, c)
		}
	}
	m.snap.Contains = keepContains

	keepExt := m.snap.Extends[:0]
	for _, e := range m.snap.Extends {
		if e.File != path {
			keepExt = append(keepExt, e)
		}
	}
	m.snap.Extends = keepExt

	keepImpl := m.snap.Implements[:0]
	for _, e := range m.snap.Implements {
		if e.File != path {
			keepImpl = append(keepImpl, e)
		}
	}
	m.snap.Implements = keepImpl

	keepRefs := m.snap.Refs[:0]
	for _, r := range m.snap.Refs {
		if r.File != path {
			keepRefs = append(keepRefs, r)
		}
	}
	m.snap.Refs = keepRefs

	keepCalls := m.snap.Calls[:0]
	for _, c := range m.snap.Calls {
		if c.File != path {
			keepCalls = append(keepCalls, c)
		}
	}
	m.snap.Calls = keepCalls
}

func (m *MemoryStore) Find(ctx context.Context, prefix, lang string, limit int) ([]FindRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerPrefix := strings.ToLower(prefix)
	var out []FindRow
	for _, s := range m.snap.Symbols {
		if lang != "" && s.Lang != lang {
			continue
		}
		if !strings.HasPrefix(strings.ToLower(s.Name), lowerPrefix) {
			continue
		}
		out = append(out, FindRow{
			Name: s.Name, Kind: s.Kind, File: s.File,
			Signature: s.Signature, StartLine: s.StartLine, EndLine: s.EndLine,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Children(ctx context.Context, parentID, lang string, asFile bool) ([]ChildRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id := parentID
	if asFile {
		path := hashid.NormalizePath(parentID)
		id = ""
		for _, f := range m.snap.Files {
			if f.Path == path {
				id = f.FileID
				break
			}
		}
		if id == "" {
			return nil, nil
		}
	}

	symByID := make(map[string]SymbolRow, len(m.snap.Symbols))
	for _, s := range m.snap.Symbols {
		symByID[s.SymbolID] = s
	}

	var out []ChildRow
	for _, e := range m.snap.Contains {
		if e.ParentID != id {
			continue
		}
		s, ok := symByID[e.ChildID]
		if !ok {
			continue
		}
		if lang != "" && s.Lang != lang {
			continue
		}
		out = append(out, ChildRow{
			RefID: s.SymbolID, Name: s.Name, Kind: s.Kind, File: s.File,
			StartLine: s.StartLine, EndLine: s.EndLine,
		})
	}
	return out, nil
}

func (m *MemoryStore) Refs(ctx context.Context, name, lang string, limit int) ([]RefRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []RefRow
	for _, r := range m.snap.Refs {
		if r.Name != name {
			continue
		}
		if lang != "" && r.Lang != lang {
			continue
		}
		out = append(out, RefRow{
			FromID: r.FromID, Lang: r.Lang, Name: r.Name, Kind: r.Kind,
			File: r.File, Line: r.Line, Column: r.Column,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Callees(ctx context.Context, name, lang string, limit int) ([]CallRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fromIDs := make(map[string]bool)
	for _, s := range m.snap.Symbols {
		if s.Name == name && (lang == "" || s.Lang == lang) {
			fromIDs[s.SymbolID] = true
		}
	}

	var out []CallRow
	for _, c := range m.snap.Calls {
		if !fromIDs[c.FromID] {
			continue
		}
		if lang != "" && c.Lang != lang {
			continue
		}
		out = append(out, CallRow{
			FromID: c.FromID, CalleeName: c.CalleeName, Lang: c.Lang,
			File: c.File, Line: c.Line, Column: c.Column,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) Callers(ctx context.Context, name, lang string, limit int) ([]CallRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []CallRow
	for _, c := range m.snap.Calls {
		if c.CalleeName != name {
			continue
		}
		if lang != "" && c.Lang != lang {
			continue
		}
		out = append(out, CallRow{
			FromID: c.FromID, CalleeName: c.CalleeName, Lang: c.Lang,
			File: c.File, Line: c.Line, Column: c.Column,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Chain breadth-first-traverses ast_calls_name name-joined to symbols.
// Downstream follows callee-name -> symbol -> its callees; upstream
// follows caller-id -> calls whose callee equals the current name.
// Edges whose "other end" name is shorter than minNameLen are
// discarded. Results are ordered by depth, then by
// (lang, file, line, column).
func (m *MemoryStore) Chain(ctx context.Context, name string, dir Direction, depth, limit, minNameLen int) ([]ChainHop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	symByID := make(map[string]SymbolRow, len(m.snap.Symbols))
	for _, s := range m.snap.Symbols {
		symByID[s.SymbolID] = s
	}

	var hops []ChainHop
	visited := map[string]bool{name: true}
	frontier := []string{name}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var level []ChainHop
		next := map[string]bool{}

		switch dir {
		case DirectionDownstream:
			for _, from := range frontier {
				fromIDs := map[string]bool{}
				for _, s := range m.snap.Symbols {
					if s.Name == from {
						fromIDs[s.SymbolID] = true
					}
				}
				for _, c := range m.snap.Calls {
					if !fromIDs[c.FromID] {
						continue
					}
					if len(c.CalleeName) < minNameLen {
						continue
					}
					level = append(level, ChainHop{
						Depth: d, From: from, To: c.CalleeName,
						Lang: c.Lang, File: c.File, Line: c.Line, Column: c.Column,
					})
					if !visited[c.CalleeName] {
						next[c.CalleeName] = true
					}
				}
			}
		case DirectionUpstream:
			for _, to := range frontier {
				for _, c := range m.snap.Calls {
					if c.CalleeName != to {
						continue
					}
					caller, ok := symByID[c.FromID]
					if !ok {
						continue
					}
					if len(caller.Name) < minNameLen {
						continue
					}
					level = append(level, ChainHop{
						Depth: d, From: caller.Name, To: to,
						Lang: c.Lang, File: c.File, Line: c.Line, Column: c.Column,
					})
					if !visited[caller.Name] {
						next[caller.Name] = true
					}
				}
			}
		default:
			return nil, fmt.Errorf("astgraph: unknown chain direction %q", dir)
		}

		sort.Slice(level, func(i, j int) bool {
			a, b := level[i], level[j]
			if a.Lang != b.Lang {
				return a.Lang < b.Lang
			}
			if a.File != b.File {
				return a.File < b.File
			}
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			return a.Column < b.Column
		})
		hops = append(hops, level...)

		frontier = frontier[:0]
		for n := range next {
			visited[n] = true
			frontier = append(frontier, n)
		}
		sort.Strings(frontier)

		if limit > 0 && len(hops) >= limit {
			hops = hops[:limit]
			break
		}
	}
	return hops, nil
}

// Query dispatches a small set of named, read-only script forms onto
// the typed operations above. A full Datalog interpreter is out of
// proportion for the query surface actually exposed (find,
// children, refs, callers, callees, chain); this gives callers a
// uniform {headers, rows} escape hatch without inventing a second
// query language underneath the typed one.
func (m *MemoryStore) Query(ctx context.Context, script string, params map[string]any) (QueryResult, error) {
	switch strings.TrimSpace(script) {
	case "find":
		rows, err := m.Find(ctx, str(params["prefix"]), str(params["lang"]), intOf(params["limit"]))
		if err != nil {
			return QueryResult{}, err
		}
		out := QueryResult{Headers: []string{"name", "kind", "file", "signature", "start_line", "end_line"}}
		for _, r := range rows {
			out.Rows = append(out.Rows, []any{r.Name, r.Kind, r.File, r.Signature, r.StartLine, r.EndLine})
		}
		return out, nil
	case "refs":
		rows, err := m.Refs(ctx, str(params["name"]), str(params["lang"]), intOf(params["limit"]))
		if err != nil {
			return QueryResult{}, err
		}
		out := QueryResult{Headers: []string{"from_id", "lang", "name", "kind", "file", "line", "column"}}
		for _, r := range rows {
			out.Rows = append(out.Rows, []any{r.FromID, r.Lang, r.Name, r.Kind, r.File, r.Line, r.Column})
		}
		return out, nil
	case "callers", "callees":
		var rows []CallRow
		var err error
		if script == "callers" {
			rows, err = m.Callers(ctx, str(params["name"]), str(params["lang"]), intOf(params["limit"]))
		} else {
			rows, err = m.Callees(ctx, str(params["name"]), str(params["lang"]), intOf(params["limit"]))
		}
		if err != nil {
			return QueryResult{}, err
		}
		out := QueryResult{Headers: []string{"from_id", "callee", "lang", "file", "line", "column"}}
		for _, r := range rows {
			out.Rows = append(out.Rows, []any{r.FromID, r.CalleeName, r.Lang, r.File, r.Line, r.Column})
		}
		return out, nil
	case "chain":
		dir := Direction(str(params["direction"]))
		hops, err := m.Chain(ctx, str(params["name"]), dir, intOf(params["depth"]), intOf(params["limit"]), intOf(params["min_name_len"]))
		if err != nil {
			return QueryResult{}, err
		}
		out := QueryResult{Headers: []string{"depth", "from", "to", "lang", "file", "line", "column"}}
		for _, h := range hops {
			out.Rows = append(out.Rows, []any{h.Depth, h.From, h.To, h.Lang, h.File, h.Line, h.Column})
		}
		return out, nil
	default:
		return QueryResult{}, fmt.Errorf("astgraph: unsupported query script %q", script)
	}
}

func (m *MemoryStore) Export() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.MarshalIndent(m.snap, "", "  ")
}

func (m *MemoryStore) Import(data []byte) error {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("astgraph: import: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = snap
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Snapshot returns the current relational state. The Snapshot value is
// copied but its slices are shared with the store; SQLiteStore.Import
// uses it to load a decoded export into its tables.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intOf(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
