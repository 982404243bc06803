package resource

// Action is what a resource needs done to converge with the remote platform.
type Action int

const (
	ActionNone Action = iota
	ActionCreate
	ActionUpdate
	ActionRefresh
	ActionDependency
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "NONE"
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionRefresh:
		return "REFRESH"
	case ActionDependency:
		return "DEPENDENCY"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}
