package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

const maxBodyBytes = 10 << 20

// sendRequest is the send_message payload. Lists accept a single string or
// an array in JSON, and repeated keys in form bodies.
type sendRequest struct {
	ServiceName string
	Subject     string
	Body        string
	From        string
	To          []string
	CC          []string
	BCC         []string
}

type subscriptionRequest struct {
	Email       string
	ServiceName string
	All         bool
}

// formValues reads a JSON object or a form body into key → values.
func formValues(w http.ResponseWriter, r *http.Request) (map[string][]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		out := make(map[string][]string, len(raw))
		for k, v := range raw {
			if k == "body" {
				if b, ok, err := jsonDocument(v); ok {
					if err != nil {
						return nil, fmt.Errorf("field %q: %w", k, err)
					}
					out[k] = []string{b}
					continue
				}
			}
			vals, err := jsonStrings(v)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			out[k] = vals
		}
		return out, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return r.PostForm, nil
	default:
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return r.PostForm, nil
	}
}

// jsonDocument re-encodes an object or array body so the JSON body policy
// sees the same document a client would have sent as a string.
func jsonDocument(v any) (string, bool, error) {
	switch v.(type) {
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return "", true, err
		}
		return string(b), true, nil
	}
	return "", false, nil
}

func jsonStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case bool:
		return []string{strconv.FormatBool(t)}, nil
	case float64:
		return []string{strconv.FormatFloat(t, 'f', -1, 64)}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value")
}

func first(vals map[string][]string, key string) string {
	if v := vals[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func decodeSendRequest(w http.ResponseWriter, r *http.Request) (sendRequest, error) {
	vals, err := formValues(w, r)
	if err != nil {
		return sendRequest{}, err
	}
	return sendRequest{
		ServiceName: first(vals, "service_name"),
		Subject:     first(vals, "subject"),
		Body:        first(vals, "body"),
		From:        first(vals, "from"),
		To:          vals["to"],
		CC:          vals["cc"],
		BCC:         vals["bcc"],
	}, nil
}

func decodeSubscriptionRequest(w http.ResponseWriter, r *http.Request) (subscriptionRequest, error) {
	vals, err := formValues(w, r)
	if err != nil {
		return subscriptionRequest{}, err
	}
	req := subscriptionRequest{
		Email:       strings.TrimSpace(first(vals, "email")),
		ServiceName: first(vals, "service_name"),
	}
	if v := first(vals, "all"); v != "" {
		req.All, _ = strconv.ParseBool(v)
	}
	return req, nil
}
