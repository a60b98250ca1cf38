package train

import "fmt"

// Iteration is one milestone of one train fully resolved: exactly one
// Version per member, BOM pseudo-component included. It is the unit of work
// every pipeline phase operates on. Iterations are created by Resolve and
// never mutated afterwards.
type Iteration struct {
	Train     *Train
	Milestone Milestone

	// Versions holds the resolved member versions in the train's
	// declaration order.
	Versions []Version
}

// Resolve derives the full set of member versions for the given train and
// milestone. Qualified milestones append their qualifier (plus the train's
// own version on calendar trains); service releases fold their ordinal into
// the patch digit and drop the qualifier; GA uses the base unqualified.
func Resolve(t *Train, m Milestone) (*Iteration, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	qualifier := ""
	if m.IsQualified() {
		qualifier = m.String()
	}
	suffix := ""
	if t.Scheme == SchemeCalendar && qualifier != "" {
		suffix = t.Version
	}

	versions := make([]Version, len(t.Members))
	for i, member := range t.Members {
		versions[i] = Version{
			Component:   member.Component,
			Number:      member.Base.BumpPatch(m.PatchOffset()),
			Qualifier:   qualifier,
			TrainSuffix: suffix,
			scheme:      t.Scheme,
		}
	}

	return &Iteration{Train: t, Milestone: m, Versions: versions}, nil
}

// Version returns the resolved version of the named component.
func (it *Iteration) Version(component string) (Version, error) {
	for _, v := range it.Versions {
		if v.Component == component {
			return v, nil
		}
	}
	return Version{}, fmt.Errorf("component %s is not part of %s: %w", component, it, ErrUnknownComponent)
}

// BOM returns the resolved version of the BOM pseudo-component.
func (it *Iteration) BOM() Version {
	v, err := it.Version(BOMComponent)
	if err != nil {
		// Resolve validates that the BOM member exists.
		panic(err)
	}
	return v
}

// TagName derives the VCS tag for one member at this iteration, e.g. "2.4.1"
// or "2.4.0-M1".
func (it *Iteration) TagName(component string) (string, error) {
	v, err := it.Version(component)
	if err != nil {
		return "", err
	}
	return v.ArtifactVersion(), nil
}

// String renders the iteration identity, e.g. "Turing M1" or "2025.1.0 GA".
func (it *Iteration) String() string {
	return fmt.Sprintf("%s %s", it.Train, it.Milestone)
}

// BranchNone marks trains that keep developing on the main branch instead
// of a dedicated maintenance branch.
const BranchNone = "NONE"

// BranchMapping assigns each member its development branch after a GA-class
// iteration redirected ongoing work to maintenance lines.
type BranchMapping struct {
	Iteration *Iteration
	branches  map[string]string
}

// NewBranchMapping derives the maintenance branch per member from the
// member's base version ("3.1.x"), or BranchNone for every member when the
// train always develops on main. It is only meaningful for GA-class
// iterations.
func NewBranchMapping(it *Iteration) *BranchMapping {
	branches := make(map[string]string, len(it.Train.Members))
	for _, member := range it.Train.Members {
		if it.Train.MainOnly {
			branches[member.Component] = BranchNone
			continue
		}
		branches[member.Component] = MaintenanceBranch(member.Base)
	}
	return &BranchMapping{Iteration: it, branches: branches}
}

// Branch returns the maintenance branch for the named component.
func (bm *BranchMapping) Branch(component string) (string, error) {
	b, ok := bm.branches[component]
	if !ok {
		return "", fmt.Errorf("component %s is not part of %s: %w", component, bm.Iteration, ErrUnknownComponent)
	}
	return b, nil
}
