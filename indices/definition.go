package indices

// Definition describes one index of a model of type M
type Definition[M any] struct {
	Name    string
	Unique  bool
	Extract func(M) Value
}

// Unique defines a unique index
func Unique[M any](name string, extract func(M) Value) Definition[M] {
	return Definition[M]{Name: name, Unique: true, Extract: extract}
}

// NonUnique defines a non-unique index
func NonUnique[M any](name string, extract func(M) Value) Definition[M] {
	return Definition[M]{Name: name, Extract: extract}
}

// Key extracts the canonical composite key of the model
func (d Definition[M]) Key(m M) string {
	v := d.Extract(m)
	if v.IsZero() {
		panic("indices: extractor of index " + d.Name + " returned an empty value")
	}
	return v.Key()
}
