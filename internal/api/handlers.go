package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/domain"
	"github.com/ignite/impression/internal/pkg/httputil"
	"github.com/ignite/impression/internal/pkg/logger"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
)

// Handlers serves the send_message and subscription endpoints.
type Handlers struct {
	messages  *message.Service
	addresses *address.Service
	policy    *policy.Engine
}

// NewHandlers creates the API handlers.
func NewHandlers(messages *message.Service, addresses *address.Service, engine *policy.Engine) *Handlers {
	return &Handlers{messages: messages, addresses: addresses, policy: engine}
}

// serviceName picks the target service: path, then query string, then body.
func serviceName(r *http.Request, fromBody string) string {
	if name := chi.URLParam(r, "service_name"); name != "" {
		return name
	}
	if name := r.URL.Query().Get("service_name"); name != "" {
		return name
	}
	return fromBody
}

// SendMessage accepts a message for a service.
//
//	POST|PUT /api/send_message/
//	POST|PUT /api/send_message/{service_name}/
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	req, err := decodeSendRequest(w, r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	msg, err := h.messages.Submit(r.Context(), message.SubmitInput{
		ServiceName: serviceName(r, req.ServiceName),
		Principal:   auth.PrincipalFrom(r.Context()),
		Subject:     req.Subject,
		Body:        req.Body,
		From:        req.From,
		To:          req.To,
		CC:          req.CC,
		BCC:         req.BCC,
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	logger.Info("message accepted", "message_id", msg.ID, "service_id", msg.ServiceID, "state", string(msg.State()))
	httputil.Created(w, struct{}{})
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrServiceNotFound):
		httputil.NotFound(w, "Not found.")
	case errors.Is(err, policy.ErrAccessDenied):
		httputil.Forbidden(w, "You do not have permission to perform this action.")
	case errors.Is(err, message.ErrRateLimited):
		httputil.Throttled(w, "Rate limit has been reached!")
	case errors.Is(err, policy.ErrJSONBodyRequired):
		httputil.BadRequest(w, "Body must be a JSON object.")
	case policy.IsConfigError(err):
		logger.Error("service misconfigured", "error", err)
		httputil.InternalError(w, err)
	default:
		httputil.InternalError(w, err)
	}
}

type fieldDescription struct {
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Label    string `json:"label"`
}

// DescribeSendMessage returns the accepted fields and formats.
//
//	GET /api/send_message/
func (h *Handlers) DescribeSendMessage(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"name":        "Send Message",
		"description": "Submit a message for delivery through a service.",
		"renders":     []string{"application/json"},
		"parses":      []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"},
		"actions": map[string]any{
			"POST": map[string]fieldDescription{
				"service_name": {Type: "string", Label: "Service name"},
				"subject":      {Type: "string", Label: "Subject"},
				"body":         {Type: "string", Label: "Body"},
				"from":         {Type: "email", Label: "From"},
				"to":           {Type: "list", Label: "To"},
				"cc":           {Type: "list", Label: "Cc"},
				"bcc":          {Type: "list", Label: "Bcc"},
			},
		},
	})
}

type subscriptionResponse struct {
	Email               string   `json:"email_address"`
	UnsubscribedFromAll bool     `json:"unsubscribed_from_all"`
	Unsubscriptions     []string `json:"service_unsubscriptions"`
}

func toSubscriptionResponse(e *domain.EmailAddress) subscriptionResponse {
	unsub := e.UnsubscribedFrom
	if unsub == nil {
		unsub = []string{}
	}
	return subscriptionResponse{Email: e.Address, UnsubscribedFromAll: e.UnsubscribedFromAll, Unsubscriptions: unsub}
}

// Unsubscribe opts an address out of one service, or of everything with
// all=true. Per-service changes need membership in one of the service's
// groups; global changes need the subscription admin group.
//
//	POST /api/unsubscribe/
func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.addresses.UnsubscribeAll, h.addresses.Unsubscribe)
}

// Resubscribe reverses Unsubscribe.
//
//	POST /api/resubscribe/
func (h *Handlers) Resubscribe(w http.ResponseWriter, r *http.Request) {
	h.changeSubscription(w, r, h.addresses.ResubscribeAll, h.addresses.Resubscribe)
}

type (
	globalChange  func(ctx context.Context, raw string) (*domain.EmailAddress, error)
	serviceChange func(ctx context.Context, raw, serviceID string) (*domain.EmailAddress, error)
)

func (h *Handlers) changeSubscription(w http.ResponseWriter, r *http.Request, all globalChange, one serviceChange) {
	req, err := decodeSubscriptionRequest(w, r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if req.Email == "" {
		httputil.BadRequest(w, "email is required")
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	var e *domain.EmailAddress
	if req.All {
		if err = h.policy.AuthorizeGlobal(principal); err == nil {
			e, err = all(r.Context(), req.Email)
		}
	} else {
		name := serviceName(r, req.ServiceName)
		if name == "" {
			httputil.BadRequest(w, "service_name is required unless all is set")
			return
		}
		e, err = h.changeServiceSubscription(r.Context(), principal, name, req.Email, one)
	}

	switch {
	case err == nil:
		httputil.OK(w, toSubscriptionResponse(e))
	case errors.Is(err, address.ErrInvalidAddress):
		httputil.BadRequest(w, "Enter a valid email address.")
	case errors.Is(err, errNotUnsubscribable):
		httputil.BadRequest(w, "service does not accept unsubscribes")
	case errors.Is(err, policy.ErrServiceNotFound):
		httputil.NotFound(w, "Not found.")
	case errors.Is(err, policy.ErrAccessDenied):
		httputil.Forbidden(w, "You do not have permission to perform this action.")
	default:
		httputil.InternalError(w, err)
	}
}

var errNotUnsubscribable = errors.New("service does not accept unsubscribes")

// changeServiceSubscription applies one to the named service once the caller
// is known to belong to one of its allowed groups.
func (h *Handlers) changeServiceSubscription(ctx context.Context, principal *domain.Principal, name, email string, one serviceChange) (*domain.EmailAddress, error) {
	svc, err := h.policy.ServiceByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := h.policy.Authorize(svc, principal); err != nil {
		return nil, err
	}
	if !svc.IsUnsubscribable {
		return nil, errNotUnsubscribable
	}
	return one(ctx, email, svc.ID)
}
