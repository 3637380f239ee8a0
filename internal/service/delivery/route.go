// internal/service/delivery/route.go
package delivery

import (
	"context"

	"delivery-service/internal/domain/session"
	xerrors "delivery-service/internal/pkg/errors"
	pkgsession "delivery-service/internal/pkg/session"

	"go.uber.org/zap"
)

// RouteKind is where a session's socket can be reached from this node.
type RouteKind int

const (
	RouteUnreachable RouteKind = iota
	RouteLocal
	RouteRemote
)

func (k RouteKind) String() string {
	switch k {
	case RouteLocal:
		return "local"
	case RouteRemote:
		return "remote"
	case RouteUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Route is resolved once per session per delivery attempt.
//
//	RouteLocal:       Handle is set.
//	RouteRemote:      Session is set and Session.QueueName names another node.
//	RouteUnreachable: Session is set when the directory knew the session.
type Route struct {
	Kind    RouteKind
	Handle  Handle
	Session *session.Descriptor
	Reason  string
}

const (
	reasonNotFound       = "not_found"
	reasonDirectoryError = "directory_error"
	reasonNoQueue        = "no_queue"
	reasonOwnedBySelf    = "owned_by_self"
)

// resolve prefers a local handle and falls back to the directory.
func (r *Router) resolve(ctx context.Context, userID, token string) Route {
	if h, ok := r.registry.Lookup(userID, token); ok {
		return Route{Kind: RouteLocal, Handle: h}
	}
	return r.resolveDirectory(ctx, token)
}

// resolveDirectory asks the directory where the session lives. It never
// yields RouteLocal: a record naming this node without a registered handle
// is reported unreachable and deliberately not reconciled.
func (r *Router) resolveDirectory(ctx context.Context, token string) Route {
	desc, err := r.directory.GetSession(ctx, token)
	if err != nil {
		if !xerrors.Is(err, xerrors.ErrNotFound) {
			r.logger.Warn("session directory lookup failed",
				zap.String("session_hash", pkgsession.ShortHash(pkgsession.HashToken(token))),
				zap.Error(err),
			)
			return Route{Kind: RouteUnreachable, Reason: reasonDirectoryError}
		}
		return Route{Kind: RouteUnreachable, Reason: reasonNotFound}
	}
	if desc == nil {
		return Route{Kind: RouteUnreachable, Reason: reasonNotFound}
	}

	switch desc.QueueName {
	case "":
		return Route{Kind: RouteUnreachable, Session: desc, Reason: reasonNoQueue}
	case r.cfg.NodeID:
		r.logger.Debug("directory names this node but no local socket is registered",
			zap.String("user_id", desc.UserID),
			zap.String("session_hash", pkgsession.ShortHash(pkgsession.HashToken(token))),
		)
		return Route{Kind: RouteUnreachable, Session: desc, Reason: reasonOwnedBySelf}
	default:
		return Route{Kind: RouteRemote, Session: desc}
	}
}
