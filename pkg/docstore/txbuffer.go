package docstore

// Write is a buffered transactional write.
type Write struct {
	Ref    Ref
	Fields Fields
	Merge  bool
}

// ReadFunc reads a document inside a backend transaction.
type ReadFunc func(ref Ref) (Fields, bool, error)

// TxBuffer implements Tx on top of a backend read function. It enforces the
// read rules of an atomic unit and collects the writes for the backend to
// apply at commit time.
type TxBuffer struct {
	declared map[string]struct{}
	read     ReadFunc
	writes   []Write
}

// NewTxBuffer returns a TxBuffer allowing reads of readKeys through read.
func NewTxBuffer(readKeys []Ref, read ReadFunc) *TxBuffer {
	declared := make(map[string]struct{}, len(readKeys))
	for _, r := range readKeys {
		declared[r.Path()] = struct{}{}
	}

	return &TxBuffer{
		declared: declared,
		read:     read,
	}
}

// Get reads a declared document. Missing documents report false without error.
func (b *TxBuffer) Get(ref Ref) (Fields, bool, error) {
	if len(b.writes) > 0 {
		return nil, false, ErrReadAfterWrite
	}

	if !ref.Valid() {
		return nil, false, ErrInvalidRef
	}

	if _, ok := b.declared[ref.Path()]; !ok {
		return nil, false, ErrUndeclaredRead
	}

	return b.read(ref)
}

// Set buffers a replacing write.
func (b *TxBuffer) Set(ref Ref, f Fields) {
	b.writes = append(b.writes, Write{Ref: ref, Fields: f.Clone()})
}

// Merge buffers a merging write.
func (b *TxBuffer) Merge(ref Ref, f Fields) {
	b.writes = append(b.writes, Write{Ref: ref, Fields: f.Clone(), Merge: true})
}

// Writes returns the buffered writes in the order they were issued.
func (b *TxBuffer) Writes() []Write {
	return b.writes
}

// Validate reports ErrInvalidRef if any buffered write has a malformed reference.
func (b *TxBuffer) Validate() error {
	for _, w := range b.writes {
		if !w.Ref.Valid() {
			return ErrInvalidRef
		}
	}

	return nil
}
