package constraint

import "errors"

// Pipeline is an ordered list of compiled constraints for one attribute
type Pipeline []Constraint

// Apply runs value through each constraint in order. The first rejection is
// returned with Attribute set and no later constraint runs.
func (p Pipeline) Apply(attribute string, value any) (any, error) {
	for _, c := range p {
		next, err := c.Normalize(value)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Attribute = attribute
			}
			return nil, err
		}
		value = next
	}
	return value, nil
}
