package routing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodbridge/dispatch/core/model"
)

func twoVehicleInput() model.RoutingInput {
	return model.RoutingInput{
		DistanceMatrix: [][]float64{
			{1, 5, 6},
			{7, 1, 4},
		},
		DropsMatrix: [][]float64{
			{0, 2, 3},
			{2, 0, 1},
			{3, 1, 0},
		},
		ItemVolumes:   []float64{4, 3, 2},
		CarCapacities: []float64{10, 8},
		VolunteerIDs:  []string{"v1", "v2"},
		DropOffIDs:    []string{"d1", "d2", "d3"},
		ItemID:        "bread",
	}
}

func TestSolveAssignsNearestFirstStop(t *testing.T) {
	s := NewSolver(nil)
	routes := s.Solve(twoVehicleInput())
	require.Len(t, routes, 2)

	// Each vehicle's first move goes to its nearest unclaimed drop-off.
	require.True(t, len(routes[0].Stops) >= 3)
	assert.Equal(t, "v1", routes[0].Stops[0].LocationID)
	assert.Equal(t, "d1", routes[0].Stops[1].LocationID)
	assert.Equal(t, "d2", routes[1].Stops[1].LocationID)

	// The forced stop loads the full capacity.
	assert.Equal(t, 0, routes[0].Stops[0].Load)
	assert.Equal(t, 10, routes[0].Stops[1].Load)
	assert.Equal(t, 8, routes[1].Stops[1].Load)

	// Routes start and end at the vehicle's home node.
	for _, r := range routes {
		assert.Equal(t, r.VolunteerID, r.Stops[0].LocationID)
		assert.Equal(t, r.VolunteerID, r.Stops[len(r.Stops)-1].LocationID)
	}
}

func TestSolveVisitsEveryDropOnce(t *testing.T) {
	s := NewSolver(nil)
	routes := s.Solve(twoVehicleInput())

	visited := map[string]int{}
	for _, r := range routes {
		for _, stop := range r.Stops[1 : len(r.Stops)-1] {
			visited[stop.LocationID]++
		}
	}
	assert.Equal(t, map[string]int{"d1": 1, "d2": 1, "d3": 1}, visited)
}

func TestSolveCapacityLaw(t *testing.T) {
	s := NewSolver(nil)
	in := twoVehicleInput()
	routes := s.Solve(in)
	require.Len(t, routes, 2)

	caps := map[string]int{"v1": 10, "v2": 8}
	for _, r := range routes {
		for _, stop := range r.Stops {
			assert.GreaterOrEqual(t, stop.Load, 0)
			assert.LessOrEqual(t, stop.Load, caps[r.VolunteerID])
		}
	}
}

func TestSolveInfeasibleReturnsEmpty(t *testing.T) {
	s := NewSolver(nil)
	in := model.RoutingInput{
		DistanceMatrix: [][]float64{{1, 2}},
		DropsMatrix:    [][]float64{{0, 1}, {1, 0}},
		ItemVolumes:    []float64{5, 4},
		CarCapacities:  []float64{3},
		VolunteerIDs:   []string{"v1"},
		DropOffIDs:     []string{"d1", "d2"},
	}
	assert.Empty(t, s.Solve(in))
}

func TestSolveMoreVehiclesThanDrops(t *testing.T) {
	s := NewSolver(nil)
	in := model.RoutingInput{
		DistanceMatrix: [][]float64{{2}, {1}},
		DropsMatrix:    [][]float64{{0}},
		ItemVolumes:    []float64{3},
		CarCapacities:  []float64{10, 10},
		VolunteerIDs:   []string{"v1", "v2"},
		DropOffIDs:     []string{"d1"},
	}
	routes := s.Solve(in)
	require.Len(t, routes, 2)

	// The closer vehicle takes the only drop; the other stays home.
	assert.Equal(t, "d1", routes[1].Stops[1].LocationID)
	require.Len(t, routes[0].Stops, 2)
	assert.Equal(t, "v1", routes[0].Stops[0].LocationID)
	assert.Equal(t, 0, routes[0].Stops[1].Load)
}

func TestSolveEmptyInput(t *testing.T) {
	s := NewSolver(nil)
	assert.Empty(t, s.Solve(model.RoutingInput{}))
	assert.Empty(t, s.Solve(model.RoutingInput{VolunteerIDs: []string{"v1"}, CarCapacities: []float64{5}}))
}

func TestSolveSingleVehicleLoadTrace(t *testing.T) {
	// One vehicle, four drops laid out on a line.
	in := model.RoutingInput{
		DistanceMatrix: [][]float64{{1, 2, 3, 4}},
		DropsMatrix: [][]float64{
			{0, 1, 2, 3},
			{1, 0, 1, 2},
			{2, 1, 0, 1},
			{3, 2, 1, 0},
		},
		ItemVolumes:   []float64{1, 1, 1, 1},
		CarCapacities: []float64{10},
		VolunteerIDs:  []string{"v1"},
		DropOffIDs:    []string{"d1", "d2", "d3", "d4"},
	}
	s := NewSolver(nil)
	routes := s.Solve(in)
	require.Len(t, routes, 1)

	seen := map[string]bool{}
	for _, stop := range routes[0].Stops[1:5] {
		seen[stop.LocationID] = true
	}
	assert.Len(t, seen, 4)
	assert.Equal(t, "d1", routes[0].Stops[1].LocationID)

	// Loads decrease by one unit per drop after the forced pickup.
	loads := make([]int, 0, len(routes[0].Stops))
	for _, stop := range routes[0].Stops {
		loads = append(loads, stop.Load)
	}
	assert.Equal(t, []int{0, 10, 9, 8, 7, 7}, loads)
}

func TestSolveUnreachablePairStaysExpensive(t *testing.T) {
	in := model.RoutingInput{
		DistanceMatrix: [][]float64{
			{math.Inf(1), 5},
			{4, 6},
		},
		DropsMatrix: [][]float64{
			{0, 2},
			{2, 0},
		},
		ItemVolumes:   []float64{4, 3},
		CarCapacities: []float64{10, 10},
		VolunteerIDs:  []string{"v1", "v2"},
		DropOffIDs:    []string{"d1", "d2"},
		ItemID:        "bread",
	}
	s := NewSolver(nil)
	routes := s.Solve(in)
	require.Len(t, routes, 2)

	// An unreachable pair is the most expensive edge, never the cheapest:
	// v1 must not be pinned to d1, v2 claims it instead.
	require.True(t, len(routes[0].Stops) >= 2)
	assert.Equal(t, "d2", routes[0].Stops[1].LocationID)
	assert.Equal(t, "d1", routes[1].Stops[1].LocationID)
}

func TestScaledCostClampsNonFinite(t *testing.T) {
	penalty := float64(99900)
	assert.Equal(t, penalty, scaledCost(math.Inf(1)))
	assert.Equal(t, penalty, scaledCost(math.NaN()))
	assert.Equal(t, penalty, scaledCost(5000))
	assert.Equal(t, float64(750), scaledCost(7.5))
}
