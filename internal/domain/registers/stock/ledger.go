package stock

// Ledger is a working copy of balances: an ordered arena plus a key index.
//
// Entries supplied at construction keep their positions; balances created
// later are appended in first-touch order. The ledger never aliases the
// caller's slices.
type Ledger struct {
	entries []Balance
	index   map[Key]int
}

// NewLedger copies balances into a new ledger. Keys are expected to be
// unique; posting.Engine rejects snapshots that repeat one.
func NewLedger(balances []Balance) *Ledger {
	l := &Ledger{
		entries: make([]Balance, 0, len(balances)),
		index:   make(map[Key]int, len(balances)),
	}
	for _, b := range balances {
		l.Put(b.Clone())
	}
	return l
}

// Get returns a copy of the balance for key. Unknown keys yield a zero balance
// and false.
func (l *Ledger) Get(key Key) (Balance, bool) {
	if i, ok := l.index[key]; ok {
		return l.entries[i].Clone(), true
	}
	return NewBalance(key), false
}

// Put stores b, replacing an existing entry in place or appending a new one.
func (l *Ledger) Put(b Balance) {
	key := b.Key()
	if i, ok := l.index[key]; ok {
		l.entries[i] = b
		return
	}
	l.index[key] = len(l.entries)
	l.entries = append(l.entries, b)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns copies of all balances in ledger order.
func (l *Ledger) Entries() []Balance {
	out := make([]Balance, len(l.entries))
	for i, b := range l.entries {
		out[i] = b.Clone()
	}
	return out
}
