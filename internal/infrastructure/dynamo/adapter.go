package dynamo

// Key attributes shared by every entity family stored in the table.
const (
	attrPK     = "PK"
	attrSK     = "SK"
	attrGSI1PK = "GSI1PK"
	attrGSI1SK = "GSI1SK"
	attrLSI1SK = "LSI1SK"
)

const (
	IndexGSI1 = "GSI1"
	IndexLSI1 = "LSI1"
)

type IndexType int

const (
	PrimaryKeyIndex IndexType = iota
	GlobalIndex
	LocalIndex
)

// Index names the key attributes a query is evaluated against.
type Index struct {
	Name         string
	Type         IndexType
	PartitionKey string
	SortKey      string
}

var (
	primaryIndex = Index{Type: PrimaryKeyIndex, PartitionKey: attrPK, SortKey: attrSK}
	gsi1Index    = Index{Name: IndexGSI1, Type: GlobalIndex, PartitionKey: attrGSI1PK, SortKey: attrGSI1SK}
	lsi1Index    = Index{Name: IndexLSI1, Type: LocalIndex, PartitionKey: attrPK, SortKey: attrLSI1SK}
)

// Adapter translates between a domain value D and its stored item F. Both
// directions must be pure so that ToDomain(FromDomain(d)) == d.
type Adapter[D, F any] interface {
	FromDomain(D) (F, error)
	ToDomain(F) (D, error)
	PrimaryIndex() Index
	Index(name string) (Index, bool)
}

// tableIndexes is embedded by adapters to declare the secondary indexes their
// items populate.
type tableIndexes []Index

func (tableIndexes) PrimaryIndex() Index { return primaryIndex }

func (ix tableIndexes) Index(name string) (Index, bool) {
	if name == "" {
		return primaryIndex, true
	}
	for _, i := range ix {
		if i.Name == name {
			return i, true
		}
	}
	return Index{}, false
}
