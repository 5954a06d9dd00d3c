package indices

// Compound returns an extractor concatenating the values produced by several
// simpler extractors, in order.
//
// Example:
//
//	indices.NonUnique("fleet_group", indices.Compound(
//	    indices.Field[Instance]("FleetID"),
//	    indices.Field[Instance]("Group"),
//	))
//
// Lookups then take a value with the same number of segments:
//
//	store.FindByIndex(ctx, "fleet_group", indices.NewValue(fleetID, group))
func Compound[M any](extractors ...func(M) Value) func(M) Value {
	if len(extractors) == 0 {
		panic("indices: compound index needs at least one extractor")
	}
	return func(m M) Value {
		values := make([]Value, 0, len(extractors))
		for _, extract := range extractors {
			values = append(values, extract(m))
		}
		return Concat(values...)
	}
}
