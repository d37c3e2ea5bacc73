package postgres

import (
	"github.com/ignite/impression/internal/auth"
	"github.com/ignite/impression/internal/client"
	"github.com/ignite/impression/internal/service/address"
	"github.com/ignite/impression/internal/service/distribution"
	"github.com/ignite/impression/internal/service/message"
	"github.com/ignite/impression/internal/service/policy"
	"github.com/ignite/impression/internal/service/ratelimit"
	"github.com/ignite/impression/internal/service/template"
)

var (
	_ address.Repository       = (*AddressRepo)(nil)
	_ distribution.Repository  = (*DistributionRepo)(nil)
	_ policy.ServiceRepository = (*ServiceRepo)(nil)
	_ template.Repository      = (*TemplateRepo)(nil)
	_ message.Repository       = (*MessageRepo)(nil)
	_ ratelimit.Counter        = (*MessageRepo)(nil)
	_ auth.Repository          = (*TokenRepo)(nil)
	_ client.ServerRepository  = (*RemoteServerRepo)(nil)
)
