package linkeddata

// Vocabulary IRIs used by inbox discovery.
const (
	// LDPInbox is the Linked Data Notifications inbox relation.
	LDPInbox = "http://www.w3.org/ns/ldp#inbox"

	// SolidInbox is the pre-LDN Solid inbox predicate. Older pods still publish it.
	SolidInbox = "http://www.w3.org/ns/solid/terms#inbox"

	// PIMStorage links a WebID to the root container of a pod.
	PIMStorage = "http://www.w3.org/ns/pim/space#storage"
)

// Media types.
const (
	MediaTurtle   = "text/turtle"
	MediaNTriples = "application/n-triples"

	// AcceptRDF is sent on every document fetch. Turtle is the only
	// representation every Solid server must serve.
	AcceptRDF = "text/turtle;q=1.0, application/n-triples;q=0.9"
)
