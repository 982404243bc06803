package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"goflare.io/paysync/remote"
)

// remoteOnly lists fields the platform assigns itself; they never go back out.
var remoteOnly = []string{"created_at", "updated_at", "test_mode", "object"}

// enrich fetches the current remote representation at path and overlays body
// on it, so fields only the remote side tracks survive a re-creation. found is
// false when the remote resource is gone, in which case body is returned as is.
func enrich(ctx context.Context, env Env, path, envelope, idField string, body any) (payload any, found bool, err error) {
	current := map[string]any{}
	if err = env.Client.Request(ctx, http.MethodGet, path, nil, envelope, &current); err != nil {
		if remote.IsNotFound(err) {
			return body, false, nil
		}
		return nil, false, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal %s: %w", envelope, err)
	}
	local := map[string]any{}
	if err = json.Unmarshal(raw, &local); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal %s: %w", envelope, err)
	}

	delete(current, idField)
	for _, field := range remoteOnly {
		delete(current, field)
	}
	for k, v := range local {
		current[k] = v
	}
	return current, true, nil
}

func wrap(envelope string, body any) map[string]any {
	return map[string]any{envelope: body}
}
