package model

// RoutingInput is the transient problem instance fed to the route solver.
// It is computed per invocation and never persisted.
type RoutingInput struct {
	// DistanceMatrix holds travel times in minutes from each volunteer to
	// each drop-off point: len(VolunteerIDs) rows, len(DropOffIDs) columns.
	DistanceMatrix [][]float64
	// DropsMatrix holds travel times in minutes between drop-off points.
	DropsMatrix [][]float64
	// ItemVolumes lists one entry per physical unit at the pickup point,
	// not one per variant. The solver pairs entry i with drop-off i
	// positionally; drop-offs beyond the list carry zero demand and cost
	// nothing to visit.
	ItemVolumes []float64
	// CarCapacities is the vehicle capacity of each volunteer, aligned
	// with VolunteerIDs.
	CarCapacities []float64
	VolunteerIDs  []string
	DropOffIDs    []string
	// CarContents is a zeroed vector per volunteer with one slot per
	// distinct item variant present at the pickup point.
	CarContents [][]float64
	// ItemID is the single variant being routed. When the pickup point
	// holds several variants, the first one found is used and deliveries
	// are attributed to it; tracking per-unit variant identity through
	// the solve is a known limitation.
	ItemID string
}

// Stop is one visited location on a route together with the load carried
// when leaving it.
type Stop struct {
	LocationID string
	Load       int
}

// Route is an ordered stop sequence for one volunteer. The first and last
// stop are the volunteer's home node; the first is annotated with the load
// before pickup, the last with the load returned home with.
type Route struct {
	VolunteerID string
	Stops       []Stop
}

// Delivery records items handed over at a drop-off point during a route.
type Delivery struct {
	VolunteerID string
	DropOffID   string
	VariantID   string
	Quantity    int
}

// ApplyResult summarizes the inventory mutations of one routing execution.
type ApplyResult struct {
	Deliveries []Delivery
	// RetainedLoads maps volunteer ID to the quantity kept in the vehicle
	// after the route finished.
	RetainedLoads map[string]int
}
