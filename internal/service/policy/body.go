package policy

import (
	"encoding/json"
	"fmt"

	"github.com/ignite/impression/internal/domain"
)

// ExtractBody decodes body according to the service's JSON body policy.
// It returns nil when nothing should be merged into the template context.
func ExtractBody(p domain.JSONBodyPolicy, body string) (map[string]any, error) {
	switch p {
	case domain.JSONBodyForbid:
		return nil, nil
	case domain.JSONBodyPermit:
		obj, err := decodeObject(body)
		if err != nil {
			return nil, nil
		}
		return obj, nil
	case domain.JSONBodyRequire:
		obj, err := decodeObject(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrJSONBodyRequired, err)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownJSONBodyPolicy, p)
}

func decodeObject(body string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("body is not a JSON object")
	}
	return obj, nil
}

// RenderContext builds template bindings: subject and body, overlaid with
// the decoded JSON body when the policy allows it. JSON keys win.
func RenderContext(svc *domain.Service, subject, body string) (map[string]any, error) {
	ctx := map[string]any{
		"subject": subject,
		"body":    body,
	}
	extra, err := ExtractBody(svc.JSONBodyPolicy, body)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		ctx[k] = v
	}
	return ctx, nil
}
