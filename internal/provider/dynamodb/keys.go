package dynamodb

// Key attribute names and prefixes.
const (
	attrPK = "PK"
	attrSK = "SK"

	prefixCollection = "COLL#"
	prefixDocument   = "DOC#"
)

func collectionPK(collection string) string { return prefixCollection + collection }
func documentSK(document string) string     { return prefixDocument + document }
