package record

// ResultSet holds the primary records of a load or command response plus any
// records the fetch plan resolved ahead of time, keyed by record id.
type ResultSet struct {
	Records  []*Document
	Prefetch map[RID]*Document
}

// NewResultSet creates an empty result set
func NewResultSet() *ResultSet {
	return &ResultSet{}
}

// Add appends a primary record
func (rs *ResultSet) Add(doc *Document) {
	rs.Records = append(rs.Records, doc)
}

// AddPrefetched stores a record resolved by the fetch plan
func (rs *ResultSet) AddPrefetched(doc *Document) {
	if rs.Prefetch == nil {
		rs.Prefetch = make(map[RID]*Document)
	}
	rs.Prefetch[doc.RID] = doc
}

// First returns the first primary record, or nil when the set is empty
func (rs *ResultSet) First() *Document {
	if len(rs.Records) == 0 {
		return nil
	}
	return rs.Records[0]
}

// Len returns the number of primary records
func (rs *ResultSet) Len() int {
	return len(rs.Records)
}
