package routing

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/foodbridge/dispatch/core/logger"
	"github.com/foodbridge/dispatch/core/model"
	"github.com/foodbridge/dispatch/core/travel"
)

// costScale converts fractional minutes to integer solver costs.
const costScale = 100

// scaledCost converts minutes to the integer cost unit. Unreachable pairs
// arrive from the oracle as +Inf minutes; they are clamped to the uniform
// penalty so the edge stays expensive instead of overflowing the integer
// conversion.
func scaledCost(minutes float64) float64 {
	if math.IsInf(minutes, 0) || math.IsNaN(minutes) || minutes > travel.DefaultPenaltyMinutes {
		minutes = travel.DefaultPenaltyMinutes
	}
	return float64(int(minutes * costScale))
}

// Solver computes capacitated routes over the combined node space of
// volunteers and drop-offs. Volunteer nodes double as each vehicle's start
// and end depot. The construction is cheapest-feasible-insertion followed
// by a 2-opt improvement pass; infeasibility yields an empty route list,
// not an error.
type Solver struct {
	log logger.Logger
}

// NewSolver creates a Solver.
func NewSolver(log logger.Logger) *Solver {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Solver{log: log}
}

// problem is the solver's working state for one input.
type problem struct {
	numVols  int
	numDrops int
	cost     *mat.Dense // symmetric, integer-valued, node space |V|+|D|
	demands  []int      // per node: load change when leaving the node
	caps     []int
	volIDs   []string
	dropIDs  []string
}

func (p *problem) at(i, j int) float64 { return p.cost.At(i, j) }

// Solve returns one route per vehicle, each starting and ending at the
// vehicle's home node. An empty slice means no feasible solution exists.
func (s *Solver) Solve(in model.RoutingInput) []model.Route {
	if len(in.VolunteerIDs) == 0 || len(in.DropOffIDs) == 0 {
		return []model.Route{}
	}
	p := buildProblem(in)
	forced := p.forcedAssignments()

	// The vehicle loads its full capacity at its forced first stop, so
	// that node's delivery demand is replaced by the pickup.
	for vol, node := range forced {
		p.demands[node] = p.caps[vol]
	}

	routes, ok := p.construct(forced)
	if !ok {
		s.log.Warnf("no feasible routes for %d vehicles and %d drop-offs", p.numVols, p.numDrops)
		return []model.Route{}
	}
	for v := range routes {
		p.twoOpt(v, routes[v])
	}
	return p.annotate(routes)
}

func buildProblem(in model.RoutingInput) *problem {
	numVols := len(in.VolunteerIDs)
	numDrops := len(in.DropOffIDs)
	total := numVols + numDrops

	cost := mat.NewDense(total, total, nil)
	for v := 0; v < numVols; v++ {
		for d := 0; d < numDrops; d++ {
			c := scaledCost(in.DistanceMatrix[v][d])
			cost.Set(v, numVols+d, c)
			cost.Set(numVols+d, v, c)
		}
	}
	for i := 0; i < numDrops; i++ {
		for j := 0; j < numDrops; j++ {
			cost.Set(numVols+i, numVols+j, scaledCost(in.DropsMatrix[i][j]))
		}
	}

	demands := make([]int, total)
	for i := 0; i < numDrops; i++ {
		if i < len(in.ItemVolumes) {
			demands[numVols+i] = -int(in.ItemVolumes[i])
		}
	}
	caps := make([]int, numVols)
	for i, c := range in.CarCapacities {
		caps[i] = int(c)
	}

	return &problem{
		numVols:  numVols,
		numDrops: numDrops,
		cost:     cost,
		demands:  demands,
		caps:     caps,
		volIDs:   in.VolunteerIDs,
		dropIDs:  in.DropOffIDs,
	}
}

// forcedAssignments pairs every vehicle with its nearest unclaimed
// drop-off, walking all (vehicle, drop) edges in ascending cost order.
// The result maps vehicle index to node index; vehicles beyond the number
// of drop-offs stay unassigned.
func (p *problem) forcedAssignments() map[int]int {
	type edge struct {
		cost float64
		vol  int
		node int
	}
	edges := make([]edge, 0, p.numVols*p.numDrops)
	for v := 0; v < p.numVols; v++ {
		for d := 0; d < p.numDrops; d++ {
			node := p.numVols + d
			edges = append(edges, edge{cost: p.at(v, node), vol: v, node: node})
		}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].cost < edges[j].cost })

	assigned := make(map[int]int, p.numVols)
	taken := make(map[int]bool, p.numDrops)
	for _, e := range edges {
		if _, ok := assigned[e.vol]; ok || taken[e.node] {
			continue
		}
		assigned[e.vol] = e.node
		taken[e.node] = true
	}
	return assigned
}

// construct builds one route per vehicle: the forced first stop, then the
// remaining drop-offs placed by cheapest feasible insertion. A route is a
// node sequence excluding the home endpoints. Returns ok=false when some
// drop-off fits no vehicle.
func (p *problem) construct(forced map[int]int) ([][]int, bool) {
	routes := make([][]int, p.numVols)
	free := make([]int, p.numVols) // remaining unloadable quantity per vehicle
	inRoute := make(map[int]bool, p.numDrops)
	for v := 0; v < p.numVols; v++ {
		if node, ok := forced[v]; ok {
			routes[v] = []int{node}
			inRoute[node] = true
			free[v] = p.caps[v]
		}
	}

	var pending []int
	for d := 0; d < p.numDrops; d++ {
		node := p.numVols + d
		if !inRoute[node] {
			pending = append(pending, node)
		}
	}

	for len(pending) > 0 {
		bestCost := 0.0
		bestIdx, bestVol, bestPos := -1, -1, -1
		for pi, node := range pending {
			need := -p.demands[node]
			for v := 0; v < p.numVols; v++ {
				if routes[v] == nil || need > free[v] {
					continue
				}
				// Insertion after the forced first stop, at any
				// position up to and including the route tail.
				for pos := 1; pos <= len(routes[v]); pos++ {
					delta := p.insertionCost(v, routes[v], node, pos)
					if bestIdx == -1 || delta < bestCost {
						bestCost, bestIdx, bestVol, bestPos = delta, pi, v, pos
					}
				}
			}
		}
		if bestIdx == -1 {
			return nil, false
		}
		node := pending[bestIdx]
		r := routes[bestVol]
		routes[bestVol] = append(r[:bestPos], append([]int{node}, r[bestPos:]...)...)
		free[bestVol] += p.demands[node]
		pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
	}
	return routes, true
}

// insertionCost is the tour length increase of putting node at position
// pos of vehicle v's route.
func (p *problem) insertionCost(v int, route []int, node int, pos int) float64 {
	prev := v
	if pos > 0 {
		prev = route[pos-1]
	}
	next := v
	if pos < len(route) {
		next = route[pos]
	}
	return p.at(prev, node) + p.at(node, next) - p.at(prev, next)
}

// twoOpt improves the route by reversing segments while keeping the
// forced first stop in place. Reordering never affects feasibility: every
// node after the first only unloads.
func (p *problem) twoOpt(v int, route []int) {
	if len(route) < 3 {
		return
	}
	improved := true
	for improved {
		improved = false
		// Index 0 is the forced stop and stays fixed.
		for i := 1; i < len(route)-1; i++ {
			for j := i + 1; j < len(route); j++ {
				if p.gain(v, route, i, j) > 0 {
					reverse(route[i : j+1])
					improved = true
				}
			}
		}
	}
}

// gain is the cost saved by reversing route[i..j]; the arc past the last
// stop returns to the vehicle's home node.
func (p *problem) gain(v int, route []int, i, j int) float64 {
	before := route[i-1]
	after := v
	if j+1 < len(route) {
		after = route[j+1]
	}
	old := p.at(before, route[i]) + p.at(route[j], after)
	alt := p.at(before, route[j]) + p.at(route[i], after)
	return old - alt
}

func reverse(seg []int) {
	for a, b := 0, len(seg)-1; a < b; a, b = a+1, b-1 {
		seg[a], seg[b] = seg[b], seg[a]
	}
}

// annotate converts node sequences to Stop lists. The first stop is the
// home node with the load before pickup; every later stop carries the
// load leaving it.
func (p *problem) annotate(routes [][]int) []model.Route {
	out := make([]model.Route, p.numVols)
	for v := 0; v < p.numVols; v++ {
		volID := p.volIDs[v]
		stops := []model.Stop{{LocationID: volID, Load: 0}}
		load := 0
		for _, node := range routes[v] {
			load += p.demands[node]
			stops = append(stops, model.Stop{LocationID: p.dropIDs[node-p.numVols], Load: load})
		}
		stops = append(stops, model.Stop{LocationID: volID, Load: load})
		out[v] = model.Route{VolunteerID: volID, Stops: stops}
	}
	return out
}
