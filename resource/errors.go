package resource

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrIneligibleProduct is returned for local products that carry no price of
// their own (grouped, external, variable parents).
var ErrIneligibleProduct = errors.New("product type cannot be synced")

// IntegrityError reports local or remote data that violates an invariant,
// such as a checkout total that disagrees with the order total. It is never
// retried into success and its details are for operators only.
type IntegrityError struct {
	Resource string
	ID       string
	Message  string
	Details  map[string]string
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Resource, e.ID, e.Message)

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, e.Details[k])
	}
	return b.String()
}

func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}
