package testutil

// FixedGUID returns the same sync cache GUID every time.
//
// This keeps scenario output byte-identical between runs; production code
// generates a random GUID with google/uuid instead.
//
// Thread-safety: FixedGUID is stateless and safe for concurrent use.
type FixedGUID struct {
	guid string
}

// NewFixedGUID creates a generator for guid. If guid is empty, Generate
// returns "00000000-0000-0000-0000-000000000001".
func NewFixedGUID(guid string) *FixedGUID {
	if guid == "" {
		guid = "00000000-0000-0000-0000-000000000001"
	}
	return &FixedGUID{guid: guid}
}

// Generate returns the fixed GUID.
func (g *FixedGUID) Generate() string {
	return g.guid
}
