package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/campusops/ta-scheduler-api/internal/models"
	appErrors "github.com/campusops/ta-scheduler-api/pkg/errors"
)

// Balance modes for the optional secondary objective.
const (
	BalanceMinUtilization = "min-utilization"
	BalanceVariance       = "variance"
)

// Input is the read-only data a scheduling run works from. The engine
// never mutates it, so callers may share one Input across runs.
type Input struct {
	Staff          []models.StaffMember
	Slots          []models.Slot
	Unavailability []models.UnavailabilityInterval
}

// Config carries the hard caps and search tuning for one run.
type Config struct {
	DailyCapMinutes int
	MaxLabsPerStaff int
	TimeBudget      time.Duration
	BalanceEnabled  bool
	BalanceMode     string
}

// Validate rejects structurally broken configuration before any model
// state is allocated.
func (c Config) Validate() error {
	if c.DailyCapMinutes <= 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "daily hour cap must be positive")
	}
	if c.MaxLabsPerStaff <= 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "max labs per staff must be positive")
	}
	if c.BalanceEnabled {
		switch c.BalanceMode {
		case BalanceMinUtilization, BalanceVariance:
		default:
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unknown balance mode %q", c.BalanceMode))
		}
	}
	return nil
}

type pair struct {
	staffIdx int
	slotIdx  int
	variable Var
}

// Model binds an Input to solver variables. One boolean variable exists
// per (staff, slot) pair that passed availability and cap pre-checks;
// ineligible pairs are pruned, never constrained.
type Model struct {
	input  Input
	cfg    Config
	solver Solver

	pairs    []pair
	byVar    map[Var]int
	hardGaps []string
}

// BuildModel validates the input, prunes ineligible pairs, and installs
// the coverage, cap, lab-count, and no-double-booking constraints plus
// the objective. Validation failures surface before any solver state is
// committed.
func BuildModel(input Input, cfg Config, solver Solver) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if solver == nil {
		solver = NewBranchAndBoundSolver()
	}

	m := &Model{
		input:  input,
		cfg:    cfg,
		solver: solver,
		byVar:  make(map[Var]int),
	}

	avail := NewAvailabilityIndex(input.Unavailability)

	// Hard pruning: pairs that fail availability, or whose slot alone
	// would blow the daily or hired cap, never become variables.
	slotVars := make([][]int, len(input.Slots))
	staffVars := make([][]int, len(input.Staff))
	for si, staff := range input.Staff {
		for li, slot := range input.Slots {
			dur := slot.DurationMinutes()
			if dur > cfg.DailyCapMinutes || dur > staff.HiredMinutes {
				continue
			}
			if !avail.IsAvailable(staff.ID, slot) {
				continue
			}
			v := solver.AddBoolVar(fmt.Sprintf("x_%s_%s", staff.ID, slot.ID))
			idx := len(m.pairs)
			m.pairs = append(m.pairs, pair{staffIdx: si, slotIdx: li, variable: v})
			m.byVar[v] = idx
			slotVars[li] = append(slotVars[li], idx)
			staffVars[si] = append(staffVars[si], idx)
		}
	}

	// Coverage is soft: at most Required per slot, the objective rewards
	// reaching it. Slots nobody can cover are hard gaps for the report.
	for li, slot := range input.Slots {
		if len(slotVars[li]) == 0 {
			m.hardGaps = append(m.hardGaps, slot.ID)
			continue
		}
		terms := make([]Term, 0, len(slotVars[li]))
		for _, pi := range slotVars[li] {
			terms = append(terms, Term{Var: m.pairs[pi].variable, Coef: 1})
		}
		solver.AddLinearConstraint(terms, NoBound, int64(slot.Required))
	}

	for si, staff := range input.Staff {
		if len(staffVars[si]) == 0 {
			continue
		}

		// Total hired-minutes cap.
		terms := make([]Term, 0, len(staffVars[si]))
		for _, pi := range staffVars[si] {
			slot := input.Slots[m.pairs[pi].slotIdx]
			terms = append(terms, Term{Var: m.pairs[pi].variable, Coef: int64(slot.DurationMinutes())})
		}
		solver.AddLinearConstraint(terms, NoBound, int64(staff.HiredMinutes))

		// Daily cap, one constraint per day the staff member could work.
		byDay := make(map[string][]int)
		for _, pi := range staffVars[si] {
			day := input.Slots[m.pairs[pi].slotIdx].Day
			byDay[day] = append(byDay[day], pi)
		}
		for _, day := range sortedKeys(byDay) {
			dayTerms := make([]Term, 0, len(byDay[day]))
			for _, pi := range byDay[day] {
				slot := input.Slots[m.pairs[pi].slotIdx]
				dayTerms = append(dayTerms, Term{Var: m.pairs[pi].variable, Coef: int64(slot.DurationMinutes())})
			}
			solver.AddLinearConstraint(dayTerms, NoBound, int64(cfg.DailyCapMinutes))
		}

		// No double-booking: overlapping same-day slots are mutually
		// exclusive even when both passed availability.
		for a := 0; a < len(staffVars[si]); a++ {
			for b := a + 1; b < len(staffVars[si]); b++ {
				sa := input.Slots[m.pairs[staffVars[si][a]].slotIdx]
				sb := input.Slots[m.pairs[staffVars[si][b]].slotIdx]
				ia := Interval{Day: sa.Day, Start: sa.StartMinute, End: sa.EndMinute}
				ib := Interval{Day: sb.Day, Start: sb.StartMinute, End: sb.EndMinute}
				if Overlaps(ia, ib) {
					solver.AddLinearConstraint([]Term{
						{Var: m.pairs[staffVars[si][a]].variable, Coef: 1},
						{Var: m.pairs[staffVars[si][b]].variable, Coef: 1},
					}, NoBound, 1)
				}
			}
		}

		m.addLabCap(solver, staff, staffVars[si])
	}

	m.setObjective()
	return m, nil
}

// addLabCap limits how many distinct lab groupings one staff member can
// take. Slots sharing a label form one grouping; unlabeled slots group
// as themselves. Indicator variables are only materialised when the cap
// can actually bind.
func (m *Model) addLabCap(solver Solver, staff models.StaffMember, pairIdxs []int) {
	groups := make(map[string][]int)
	for _, pi := range pairIdxs {
		slot := m.input.Slots[m.pairs[pi].slotIdx]
		key := slot.Label
		if key == "" {
			key = slot.ID
		}
		groups[key] = append(groups[key], pi)
	}
	if len(groups) <= m.cfg.MaxLabsPerStaff {
		return
	}

	indicatorTerms := make([]Term, 0, len(groups))
	for _, key := range sortedKeys(groups) {
		y := solver.AddBoolVar(fmt.Sprintf("lab_%s_%s", staff.ID, key))
		for _, pi := range groups[key] {
			// x <= y: taking any slot of the group switches the group on.
			solver.AddLinearConstraint([]Term{
				{Var: m.pairs[pi].variable, Coef: 1},
				{Var: y, Coef: -1},
			}, NoBound, 0)
		}
		indicatorTerms = append(indicatorTerms, Term{Var: y, Coef: 1})
	}
	solver.AddLinearConstraint(indicatorTerms, NoBound, int64(m.cfg.MaxLabsPerStaff))
}

// setObjective makes covered headcount strictly dominant over assigned
// minutes: the per-assignment coverage weight exceeds any achievable
// minute total, so the combined value orders solutions lexicographically.
func (m *Model) setObjective() {
	var totalMinutes int64
	for _, p := range m.pairs {
		totalMinutes += int64(m.input.Slots[p.slotIdx].DurationMinutes())
	}
	coverageWeight := totalMinutes + 1

	terms := make([]Term, 0, len(m.pairs))
	for _, p := range m.pairs {
		dur := int64(m.input.Slots[p.slotIdx].DurationMinutes())
		terms = append(terms, Term{Var: p.variable, Coef: coverageWeight + dur})
	}
	m.solver.SetObjective(terms)

	if m.cfg.BalanceEnabled {
		m.solver.SetTieBreak(m.balanceScore)
	}
}

// balanceScore is the secondary objective over complete assignments:
// either the minimum utilization ratio across staff (maximised) or the
// negated variance of those ratios.
func (m *Model) balanceScore(values []bool) float64 {
	used := make([]int64, len(m.input.Staff))
	for _, p := range m.pairs {
		if int(p.variable) < len(values) && values[p.variable] {
			used[p.staffIdx] += int64(m.input.Slots[p.slotIdx].DurationMinutes())
		}
	}

	ratios := make([]float64, 0, len(used))
	for si, minutes := range used {
		hired := m.input.Staff[si].HiredMinutes
		if hired <= 0 {
			continue
		}
		ratios = append(ratios, float64(minutes)/float64(hired))
	}
	if len(ratios) == 0 {
		return 0
	}

	if m.cfg.BalanceMode == BalanceVariance {
		var mean float64
		for _, r := range ratios {
			mean += r
		}
		mean /= float64(len(ratios))
		var variance float64
		for _, r := range ratios {
			variance += (r - mean) * (r - mean)
		}
		return -variance / float64(len(ratios))
	}

	minRatio := math.Inf(1)
	for _, r := range ratios {
		if r < minRatio {
			minRatio = r
		}
	}
	return minRatio
}

// Snapshot translates raw solver values into a snapshot of assignments.
func (m *Model) Snapshot(sol Solution, improvement int, elapsed time.Duration, final bool) models.SolutionSnapshot {
	snap := models.SolutionSnapshot{
		Objective:   sol.Objective,
		BySlot:      make(map[string][]string),
		Improvement: improvement,
		Final:       final,
		Elapsed:     elapsed,
	}
	for _, p := range m.pairs {
		if int(p.variable) >= len(sol.Values) || !sol.Values[p.variable] {
			continue
		}
		staff := m.input.Staff[p.staffIdx]
		slot := m.input.Slots[p.slotIdx]
		snap.Assignments = append(snap.Assignments, models.Assignment{StaffID: staff.ID, SlotID: slot.ID})
		snap.BySlot[slot.ID] = append(snap.BySlot[slot.ID], staff.ID)
	}
	return snap
}

// HardGaps lists slots no staff member could ever cover. They are
// excluded from the objective but must surface in the report.
func (m *Model) HardGaps() []string {
	return m.hardGaps
}

// VariableCount reports the number of (staff, slot) decision variables.
func (m *Model) VariableCount() int {
	return len(m.pairs)
}

// Solve delegates to the underlying solver with the configured budget.
func (m *Model) Solve(ctx context.Context, onImprovement ImprovementFunc) (Result, error) {
	return m.solver.Solve(ctx, m.cfg.TimeBudget, onImprovement)
}

func validateInput(input Input) error {
	if len(input.Slots) == 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "requirement set is empty")
	}
	if len(input.Staff) == 0 {
		return appErrors.Clone(appErrors.ErrConfiguration, "staff roster is empty")
	}

	seenNames := make(map[string]struct{}, len(input.Staff))
	seenIDs := make(map[string]struct{}, len(input.Staff))
	for _, staff := range input.Staff {
		name := strings.TrimSpace(staff.Name)
		if name == "" {
			return appErrors.Clone(appErrors.ErrConfiguration, "staff member with empty name")
		}
		if _, dup := seenNames[name]; dup {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("duplicate staff name %q", name))
		}
		seenNames[name] = struct{}{}
		if _, dup := seenIDs[staff.ID]; dup {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("duplicate staff id %q", staff.ID))
		}
		seenIDs[staff.ID] = struct{}{}
		if staff.HiredMinutes < 0 {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("staff %q has negative hired hours", name))
		}
	}

	seenSlots := make(map[string]struct{}, len(input.Slots))
	for _, slot := range input.Slots {
		if _, dup := seenSlots[slot.ID]; dup {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("duplicate slot id %q", slot.ID))
		}
		seenSlots[slot.ID] = struct{}{}
		if slot.Required < 1 {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("slot %q requires a positive headcount", slot.ID))
		}
		if slot.StartMinute >= slot.EndMinute {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("slot %q start must precede end", slot.ID))
		}
	}

	for _, rec := range input.Unavailability {
		if rec.StartMinute >= rec.EndMinute {
			return appErrors.Clone(appErrors.ErrConfiguration, fmt.Sprintf("unavailability for staff %q: start must precede end", rec.StaffID))
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
