package schema

import (
	"errors"
	"fmt"

	"github.com/thepathwise/intake/pkg/models"
)

// ErrMalformed is returned when a document cannot be reconciled or decoded.
var ErrMalformed = errors.New("malformed document")

// Rule is one reconciliation step. Apply inspects the working copy of a
// document, records any change into p and mirrors it onto doc so later rules
// see the updated shape. A rule that has already been applied is a no-op.
type Rule interface {
	Name() string
	Apply(doc map[string]any, p *models.Patch) (changed bool, err error)
}

// Rules is the ordered reconciliation list, V1/V2 → V3.
var Rules = []Rule{
	renameRule{from: FieldPhoneNumber, to: FieldPhone},
	dropRule{field: FieldLocation},
	dropRule{field: FieldHelpDescription},
	dropRule{field: FieldQuestionsForUs},
	defaultRule{field: FieldLinkedIn, value: "", manual: true},
	defaultRule{field: FieldWaitlistConsideration, value: WaitlistNo, whenEmpty: true},
}

// Plan is the outcome of reconciling one document.
type Plan struct {
	From    Version
	Patch   models.Patch
	Applied []string
	// NeedsManualCompletion is set when a placeholder was written that a
	// human has to replace with a real value.
	NeedsManualCompletion bool
}

func (p Plan) Empty() bool { return p.Patch.Empty() }

// Reconcile runs every rule against doc and returns the combined patch.
func Reconcile(doc map[string]any) (Plan, error) {
	if doc == nil {
		return Plan{}, fmt.Errorf("%w: no fields", ErrMalformed)
	}
	plan := Plan{From: Detect(doc)}
	work := make(map[string]any, len(doc))
	for k, v := range doc {
		work[k] = v
	}
	for _, r := range Rules {
		changed, err := r.Apply(work, &plan.Patch)
		if err != nil {
			return Plan{}, fmt.Errorf("%s: %w", r.Name(), err)
		}
		if !changed {
			continue
		}
		plan.Applied = append(plan.Applied, r.Name())
		if d, ok := r.(defaultRule); ok && d.manual {
			plan.NeedsManualCompletion = true
		}
	}
	return plan, nil
}

type renameRule struct {
	from, to string
}

func (r renameRule) Name() string { return "rename " + r.from + "->" + r.to }

func (r renameRule) Apply(doc map[string]any, p *models.Patch) (bool, error) {
	legacy, ok := doc[r.from]
	if !ok || legacy == nil {
		return false, nil
	}
	s, ok := legacy.(string)
	if !ok {
		return false, fmt.Errorf("%w: %s is %T, want string", ErrMalformed, r.from, legacy)
	}
	if s == "" {
		return false, nil
	}
	if cur, err := stringField(doc, r.to); err != nil {
		return false, err
	} else if cur != "" {
		return false, nil
	}
	set(p, r.to, s)
	unset(p, r.from)
	doc[r.to] = s
	delete(doc, r.from)
	return true, nil
}

type dropRule struct {
	field string
}

func (r dropRule) Name() string { return "drop " + r.field }

func (r dropRule) Apply(doc map[string]any, p *models.Patch) (bool, error) {
	if _, ok := doc[r.field]; !ok {
		return false, nil
	}
	unset(p, r.field)
	delete(doc, r.field)
	return true, nil
}

type defaultRule struct {
	field     string
	value     string
	whenEmpty bool
	manual    bool
}

func (r defaultRule) Name() string { return "default " + r.field }

func (r defaultRule) Apply(doc map[string]any, p *models.Patch) (bool, error) {
	v, ok := doc[r.field]
	if ok && v != nil {
		if !r.whenEmpty {
			return false, nil
		}
		s, isString := v.(string)
		if !isString {
			return false, fmt.Errorf("%w: %s is %T, want string", ErrMalformed, r.field, v)
		}
		if s != "" {
			return false, nil
		}
	}
	set(p, r.field, r.value)
	doc[r.field] = r.value
	return true, nil
}

func set(p *models.Patch, key string, v any) {
	if p.Set == nil {
		p.Set = map[string]any{}
	}
	p.Set[key] = v
}

func unset(p *models.Patch, key string) {
	p.Unset = append(p.Unset, key)
}
