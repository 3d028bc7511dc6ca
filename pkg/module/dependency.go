package module

// Dependency is an edge discovered while building a module.
type Dependency interface {
	ID() DependencyID
	// Type is a short human-readable kind, e.g. "esm import".
	Type() string
}

// ModuleDependency is a Dependency that refers to another module by request.
type ModuleDependency interface {
	Dependency
	Request() string
}

// ImportDependency is a static or dynamic import of another module.
type ImportDependency struct {
	id      DependencyID
	request string
	kind    string
	// Loc is a "line:col" position inside the issuing module, if known.
	Loc string
}

// NewImportDependency creates an import dependency with a fresh id.
func NewImportDependency(request, kind string) *ImportDependency {
	return &ImportDependency{id: NewDependencyID(), request: request, kind: kind}
}

func (d *ImportDependency) ID() DependencyID { return d.id }
func (d *ImportDependency) Type() string     { return d.kind }
func (d *ImportDependency) Request() string  { return d.request }
func (d *ImportDependency) Location() string { return d.Loc }

// EntryDependency points at a compilation entry.
type EntryDependency struct {
	id      DependencyID
	request string
	context string
}

// NewEntryDependency creates an entry dependency resolved against context.
func NewEntryDependency(request, context string) *EntryDependency {
	return &EntryDependency{id: NewDependencyID(), request: request, context: context}
}

func (d *EntryDependency) ID() DependencyID { return d.id }
func (d *EntryDependency) Type() string     { return "entry" }
func (d *EntryDependency) Request() string  { return d.request }

// Context is the directory the entry request is resolved from.
func (d *EntryDependency) Context() string { return d.context }
