package module

// Block is a nested group of dependencies that are loaded together, such as
// the target of a dynamic import. Blocks may contain further blocks; the
// nesting forms a forest rooted at the owning module.
type Block struct {
	id           BlockID
	dependencies []Dependency
	blocks       []*Block
	// Loc is the position of the expression that created the block.
	Loc string
}

// NewBlock creates an empty block owned by owner.
func NewBlock(owner Identifier, key string) *Block {
	return &Block{id: NewBlockID(owner, key)}
}

// ID returns the block identifier.
func (b *Block) ID() BlockID { return b.id }

// AddDependency appends a dependency to the block.
func (b *Block) AddDependency(d Dependency) { b.dependencies = append(b.dependencies, d) }

// AddBlock appends a child block.
func (b *Block) AddBlock(child *Block) { b.blocks = append(b.blocks, child) }

// Dependencies returns the dependencies still held by the block.
func (b *Block) Dependencies() []Dependency { return b.dependencies }

// Blocks returns the child blocks still held by the block.
func (b *Block) Blocks() []*Block { return b.blocks }

// TakeDependencies removes and returns the block's dependencies.
func (b *Block) TakeDependencies() []Dependency {
	deps := b.dependencies
	b.dependencies = nil
	return deps
}

// TakeBlocks removes and returns the block's child blocks.
func (b *Block) TakeBlocks() []*Block {
	blocks := b.blocks
	b.blocks = nil
	return blocks
}

// Clone deep-copies the block tree. Dependencies are immutable and shared.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	c := &Block{
		id:           b.id,
		dependencies: append([]Dependency(nil), b.dependencies...),
		Loc:          b.Loc,
	}
	if len(b.blocks) > 0 {
		c.blocks = make([]*Block, len(b.blocks))
		for i, child := range b.blocks {
			c.blocks[i] = child.Clone()
		}
	}
	return c
}
