package chunk

// SymbolKind is the declaration kind of a code symbol, per the data
// model's closed set. SymbolType is kept as an alias so existing call
// sites that predate the AST-graph work keep compiling.
type SymbolKind string

// SymbolType is a legacy alias for SymbolKind.
type SymbolType = SymbolKind

const (
	SymbolTypeFunction    SymbolKind = "function"
	SymbolTypeMethod      SymbolKind = "method"
	SymbolTypeClass       SymbolKind = "class"
	SymbolTypeInterface   SymbolKind = "interface"
	SymbolTypeEnum        SymbolKind = "enum"
	SymbolTypeRecord      SymbolKind = "record"
	SymbolTypeAnnotation  SymbolKind = "annotation"
	SymbolTypeType        SymbolKind = "type"
	SymbolTypeVariable    SymbolKind = "variable"
	SymbolTypeDocument    SymbolKind = "document"
	// SymbolTypeConstant has no dedicated spec kind; it collapses into
	// "variable" for AST-graph and DSR purposes.
	SymbolTypeConstant SymbolKind = "variable"
)

// containerKinds is the set of symbol kinds that may be the parent of
// an ast_contains edge (besides a file), per the data model invariant.
var containerKinds = map[SymbolKind]bool{
	SymbolTypeClass:      true,
	SymbolTypeInterface:  true,
	SymbolTypeEnum:       true,
	SymbolTypeRecord:     true,
	SymbolTypeAnnotation: true,
}

// IsContainerKind reports whether symbols of this kind may contain
// other symbols (per the ast_contains invariant in the data model).
func IsContainerKind(k SymbolKind) bool { return containerKinds[k] }

// Symbol represents a declared entity extracted from parsing: a
// function, method, class, interface, and so on, with its line range
// and optional container/heritage.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	StartLine  int // 1-based, inclusive
	EndLine    int // 1-based, inclusive
	Signature  string
	DocComment string

	// Container is the enclosing class/interface/record, if any.
	// Nesting is one level; transitive containment is expressed only
	// through ast_contains edges in the AST graph, not here.
	Container *Symbol

	// Extends is the superclass/supertype name list (normally at most
	// one entry; kept as a slice for languages with multiple bases).
	Extends []string

	// Implements is the list of interface names parsed from the
	// header, split on top-level commas.
	Implements []string
}

// RefKind is the kind of an AST reference: a call, an instantiation,
// or a type identifier occurring in a type position.
type RefKind string

const (
	RefKindCall RefKind = "call"
	RefKindNew  RefKind = "new"
	RefKindType RefKind = "type"
)

// AstReference is a single occurrence of a name referenced from
// executable or type code: a function call, a `new T(...)`
// instantiation, or a type identifier. It is attributed to the
// narrowest enclosing callable scope, falling back to the file.
type AstReference struct {
	Name   string
	Kind   RefKind
	Line   int // 1-based
	Column int // 0-based, matches tree-sitter points

	// Scope is the name of the narrowest enclosing callable symbol at
	// (Line), or "" if the reference falls back to file scope.
	Scope string
}

// Tree represents a parsed AST
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node represents a node in the AST
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}

// LanguageConfig holds configuration for a supported language
type LanguageConfig struct {
	Name       string
	Extensions []string

	// Node types that indicate function declarations
	FunctionTypes []string

	// Node types that indicate class/struct definitions
	ClassTypes []string

	// Node types that indicate interface definitions
	InterfaceTypes []string

	// Node types that indicate method definitions
	MethodTypes []string

	// Node types that indicate type definitions
	TypeDefTypes []string

	// Node types that indicate constant declarations
	ConstantTypes []string

	// Node types that indicate variable declarations
	VariableTypes []string

	// Node type for name identifier
	NameField string

	// CallTypes are node types representing a function/method call.
	CallTypes []string

	// NewTypes are node types representing an object instantiation
	// ("new T(...)"-shaped constructs).
	NewTypes []string

	// TypeRefTypes are node types representing a type identifier
	// occurring in a type position (parameter types, return types,
	// field types).
	TypeRefTypes []string
}
