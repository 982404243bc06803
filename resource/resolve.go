package resource

import (
	"context"
	"strconv"

	"go.uber.org/zap"
)

// MaxResolveDepth bounds nested dependency resolution. A chain deeper than
// this cannot come from the fixed resource graph and means some resource keeps
// reporting DEPENDENCY after its children settled.
const MaxResolveDepth = 8

type depthKey struct{}

func resolveDepth(ctx context.Context) int {
	d, _ := ctx.Value(depthKey{}).(int)
	return d
}

// resolveDependencies runs every child's pending action, then re-evaluates
// parent and executes whatever it needs now. A child error aborts the parent.
// A child that needs something it cannot do stalls the parent without error.
func resolveDependencies(ctx context.Context, env Env, parent Resource, children []Resource) error {
	depth := resolveDepth(ctx) + 1
	if depth > MaxResolveDepth {
		return &IntegrityError{
			Resource: parent.Kind(),
			ID:       parent.ID(),
			Message:  "dependency resolution did not converge",
			Details:  map[string]string{"depth": strconv.Itoa(depth)},
		}
	}
	ctx = context.WithValue(ctx, depthKey{}, depth)

	for _, child := range children {
		action := child.Needs()
		if action == ActionNone {
			continue
		}
		if !child.Can(action) {
			env.Logger.Warn("dependency cannot be resolved",
				zap.String("resource", parent.Kind()),
				zap.String("id", parent.ID()),
				zap.String("dependency", child.Kind()),
				zap.String("action", action.String()))
			return nil
		}
		if err := child.Exec(ctx, action); err != nil {
			return err
		}
		// The child's own resolution stalled further down; it already logged why.
		if action == ActionDependency && child.Needs() == ActionDependency {
			return nil
		}
	}

	return parent.Exec(ctx, parent.Needs())
}
