package domain

type Disposal string

const (
	DisposalDelete Disposal = "DELETE"
	DisposalVoid   Disposal = "VOID"
)

// DisposalFor classifies the eligible removal action. It is never stored so
// the label cannot drift from the content predicate.
func DisposalFor(d *Document) Disposal {
	if d.HasAnyContent() {
		return DisposalVoid
	}
	return DisposalDelete
}
