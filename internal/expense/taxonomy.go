package expense

// Category is one tag from the closed expense taxonomy.
type Category string

// TaxonomyVersion identifies the taxonomy revision in effect. v2 added the
// "work" category for standalone work-related spending.
const TaxonomyVersion = "v2"

// Taxonomy is the closed, ordered set of permissible expense categories.
// This list is the system of record; extraction prompts are generated from
// it and membership checks are case-sensitive exact matches against it.
var Taxonomy = []Category{
	"appliances",
	"candomble",
	"car",
	"credit-allowance",
	"education",
	"entertainment",
	"food",
	"gifts",
	"health",
	"market",
	"monthly-expenses",
	"pets",
	"self-care",
	"subscriptions",
	"subscriptions-1-month",
	"subscriptions-3-months",
	"subscriptions-6-months",
	"subscriptions-1-year",
	"taxes",
	"transport",
	"work",
	"unrecognized",
}

var taxonomySet = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(Taxonomy))
	for _, c := range Taxonomy {
		set[c] = struct{}{}
	}
	return set
}()

// InTaxonomy reports whether c is a member of the taxonomy.
func InTaxonomy(c Category) bool {
	_, ok := taxonomySet[c]
	return ok
}

// TaxonomyStrings returns the taxonomy as plain strings, in order.
func TaxonomyStrings() []string {
	out := make([]string, len(Taxonomy))
	for i, c := range Taxonomy {
		out[i] = string(c)
	}
	return out
}
