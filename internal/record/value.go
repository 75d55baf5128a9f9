package record

// Value is the payload of a record. The set of implementations is closed:
// Scalar, Sequence, UnorderedSet, ScoredSequence and Mapping.
type Value interface {
	Kind() Kind
	// Len returns the number of elements; 1 for a Scalar
	Len() int
	sealed()
}

// Scalar is the value of a string key
type Scalar string

// Sequence is the value of a list key, in list order
type Sequence []string

// UnorderedSet is the value of a set key
type UnorderedSet []string

// Scored is one member of a sorted set
type Scored struct {
	Member string  `json:"member"`
	Score  float64 `json:"score"`
}

// ScoredSequence is the value of a sorted set key
type ScoredSequence []Scored

// Mapping is the value of a hash key
type Mapping map[string]string

func (Scalar) Kind() Kind         { return KindString }
func (Sequence) Kind() Kind       { return KindList }
func (UnorderedSet) Kind() Kind   { return KindSet }
func (ScoredSequence) Kind() Kind { return KindZSet }
func (Mapping) Kind() Kind        { return KindHash }

func (Scalar) Len() int           { return 1 }
func (v Sequence) Len() int       { return len(v) }
func (v UnorderedSet) Len() int   { return len(v) }
func (v ScoredSequence) Len() int { return len(v) }
func (v Mapping) Len() int        { return len(v) }

func (Scalar) sealed()         {}
func (Sequence) sealed()       {}
func (UnorderedSet) sealed()   {}
func (ScoredSequence) sealed() {}
func (Mapping) sealed()        {}
