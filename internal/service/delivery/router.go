// internal/service/delivery/router.go
package delivery

import (
	"context"
	"fmt"

	domain "delivery-service/internal/domain/delivery"
	"delivery-service/internal/domain/session"
	pkgsession "delivery-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SessionDirectory is the authoritative, externally owned record of sessions.
// GetSession returns xerrors.ErrNotFound for unknown tokens.
type SessionDirectory interface {
	GetSessions(ctx context.Context, userID string) ([]*session.Descriptor, error)
	GetSession(ctx context.Context, token string) (*session.Descriptor, error)
}

// MuteRegistry answers per-chat suppression preferences.
type MuteRegistry interface {
	ShouldMute(ctx context.Context, chatID, userID string) (bool, error)
}

// RelayTransport publishes to the broker. channel is either another node's
// queue name (relay) or the shared notification queue.
type RelayTransport interface {
	Publish(ctx context.Context, channel string, body []byte, opts domain.PublishOptions) error
}

type Config struct {
	// NodeID is the queue name this node consumes relayed envelopes from.
	NodeID            string
	NotificationQueue string
	// FanoutLimit bounds concurrent per-session work in one call; <= 0 means unbounded.
	FanoutLimit int
}

// Options tunes a single delivery call. ExceptSession is honored by
// DeliverToAll only. NoFallback disables relaying after a failed local send
// in DeliverToSession; the notify variants always deliver without fallback.
type Options struct {
	ChatID        string
	ExceptSession string
	NoFallback    bool
}

// Router delivers messages to every live socket of a user: directly when the
// socket is on this node, through the broker when it lives elsewhere, and
// through the push notification queue when no socket can be reached.
//
// All public methods report whether at least one live socket delivery
// succeeded and never return errors; collaborator failures are logged.
// The router adds no deadline of its own. Cancelling ctx stops fan-out
// branches that have not started yet; those sessions count as not
// delivered and get no notification.
type Router struct {
	cfg       Config
	registry  *Registry
	directory SessionDirectory
	mutes     MuteRegistry
	transport RelayTransport
	logger    *zap.Logger
}

func NewRouter(cfg Config, directory SessionDirectory, mutes MuteRegistry, transport RelayTransport, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		cfg:       cfg,
		registry:  NewRegistry(),
		directory: directory,
		mutes:     mutes,
		transport: transport,
		logger:    logger.Named("delivery"),
	}
}

// NodeID returns the queue name of this node.
func (r *Router) NodeID() string { return r.cfg.NodeID }

// Register records a live socket for (userID, token) on this node.
func (r *Router) Register(userID, token string, h Handle) {
	r.registry.Register(userID, token, h)
}

// Unregister drops the socket for (userID, token). Safe to call repeatedly.
func (r *Router) Unregister(userID, token string) bool {
	return r.registry.Unregister(userID, token)
}

// Release drops the socket for (userID, token) only if it is still h.
func (r *Router) Release(userID, token string, h Handle) bool {
	return r.registry.Release(userID, token, h)
}

// Lookup returns the live socket for (userID, token), if registered here.
func (r *Router) Lookup(userID, token string) (Handle, bool) {
	return r.registry.Lookup(userID, token)
}

// ConnectionCount returns the number of live sockets on this node.
func (r *Router) ConnectionCount() int {
	return r.registry.Count()
}

// DeliverToAll sends msg to every session of userID that some node holds a
// socket for, except opts.ExceptSession.
func (r *Router) DeliverToAll(ctx context.Context, userID string, msg domain.Message, opts Options) bool {
	if userID == "" {
		return false
	}

	sessions, err := r.directory.GetSessions(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to fetch user sessions", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	targets := make([]*session.Descriptor, 0, len(sessions))
	for _, s := range sessions {
		if !s.HasQueue() || s.SessionToken == opts.ExceptSession {
			continue
		}
		targets = append(targets, s)
	}

	sessionOpts := Options{ChatID: opts.ChatID}
	delivered := make([]bool, len(targets))
	r.fanOut(ctx, len(targets), func(i int) {
		delivered[i] = r.deliver(ctx, userID, targets[i].SessionToken, msg, sessionOpts).delivered
	})

	return anyTrue(delivered)
}

// DeliverToSession sends msg to one session. A local socket is tried first;
// when it fails the stale handle is dropped and, unless opts.NoFallback, the
// directory is consulted afresh and the message relayed to the owning node.
// A successful relay publish counts as delivered.
func (r *Router) DeliverToSession(ctx context.Context, userID, token string, msg domain.Message, opts Options) bool {
	if userID == "" || token == "" {
		return false
	}
	return r.deliver(ctx, userID, token, msg, opts).delivered
}

// DeliverOrNotify delivers to every session and queues a push notification
// for each session that could not be reached or carries push credentials.
func (r *Router) DeliverOrNotify(ctx context.Context, userID string, msg domain.Message, notificationMessage string, opts Options) bool {
	return r.deliverWithNotifications(ctx, userID, msg, notificationMessage, opts, func(delivered bool, s *session.Descriptor) bool {
		return !delivered || s.HasPushCredentials()
	})
}

// DeliverAndNotify delivers to every session and queues a push notification
// for every push-capable session regardless of the delivery outcome.
func (r *Router) DeliverAndNotify(ctx context.Context, userID string, msg domain.Message, notificationMessage string, opts Options) bool {
	return r.deliverWithNotifications(ctx, userID, msg, notificationMessage, opts, func(_ bool, s *session.Descriptor) bool {
		return s.HasPushCredentials()
	})
}

// DeliverOrNotifyToSession delivers to one session without relay fallback and
// queues a push notification for it when the delivery fails.
func (r *Router) DeliverOrNotifyToSession(ctx context.Context, userID, token string, msg domain.Message, notificationMessage string, opts Options) bool {
	if userID == "" || token == "" {
		return false
	}

	out := r.deliver(ctx, userID, token, msg, Options{ChatID: opts.ChatID, NoFallback: true})
	if out.delivered {
		return true
	}

	desc := out.session
	if desc == nil {
		var err error
		desc, err = r.directory.GetSession(ctx, token)
		if err != nil || desc == nil {
			r.logger.Debug("no session record to notify",
				zap.String("user_id", userID),
				zap.String("session_hash", pkgsession.ShortHash(pkgsession.HashToken(token))),
				zap.Error(err),
			)
			return false
		}
	}
	if desc.UserID != "" && desc.UserID != userID {
		r.logger.Warn("session does not belong to user, skipping notification",
			zap.String("user_id", userID),
			zap.String("owner_id", desc.UserID),
		)
		return false
	}

	r.notify(ctx, userID, desc, msg, notificationMessage, opts.ChatID)
	return false
}

// DeliverRelayed completes a relay on the receiving node: the envelope's
// message is already serialized and mute-stamped by the relaying node.
// Nothing is re-relayed; an unknown or dead socket just drops the envelope.
func (r *Router) DeliverRelayed(ctx context.Context, env *domain.Envelope) bool {
	userID, token, h, ok := r.registry.LookupByHash(env.SessionTokenHash)
	if !ok {
		r.logger.Debug("relayed envelope for a session without a local socket",
			zap.String("session_hash", pkgsession.ShortHash(env.SessionTokenHash)),
		)
		return false
	}

	if err := h.Send(ctx, []byte(env.Message)); err != nil {
		r.logger.Info("relayed send failed, dropping socket",
			zap.String("user_id", userID),
			zap.String("session_hash", pkgsession.ShortHash(env.SessionTokenHash)),
			zap.Error(err),
		)
		r.registry.Release(userID, token, h)
		return false
	}
	return true
}

type outcome struct {
	delivered bool
	// session is the directory record consulted on the way, if any.
	session *session.Descriptor
}

func (r *Router) deliver(ctx context.Context, userID, token string, msg domain.Message, opts Options) outcome {
	out := &outgoing{msg: msg, chatID: opts.ChatID, userID: userID}
	return r.follow(ctx, userID, token, r.resolve(ctx, userID, token), out, opts)
}

// outgoing is one message on its way to one session. It is mute-stamped and
// encoded at most once, however many routes the delivery tries, and not at
// all when no route is reachable.
type outgoing struct {
	msg    domain.Message
	chatID string
	userID string

	done bool
	text string
	err  error
}

func (r *Router) encode(ctx context.Context, o *outgoing) (string, error) {
	if !o.done {
		o.text, o.err = r.stampMute(ctx, o.msg, o.chatID, o.userID).Encode()
		o.done = true
	}
	return o.text, o.err
}

func (r *Router) follow(ctx context.Context, userID, token string, route Route, out *outgoing, opts Options) outcome {
	switch route.Kind {
	case RouteLocal:
		err := r.sendLocal(ctx, route.Handle, out)
		if err == nil {
			return outcome{delivered: true}
		}
		r.logger.Info("socket send failed, dropping stale handle",
			zap.String("user_id", userID),
			zap.String("session_hash", pkgsession.ShortHash(pkgsession.HashToken(token))),
			zap.Error(err),
		)
		r.registry.Release(userID, token, route.Handle)
		if opts.NoFallback {
			return outcome{}
		}
		return r.follow(ctx, userID, token, r.resolveDirectory(ctx, token), out, opts)

	case RouteRemote:
		return outcome{delivered: r.relay(ctx, token, route.Session, out), session: route.Session}

	case RouteUnreachable:
		return outcome{session: route.Session}

	default:
		panic(fmt.Sprintf("delivery: unhandled route kind %d", route.Kind))
	}
}

func (r *Router) sendLocal(ctx context.Context, h Handle, out *outgoing) error {
	text, err := r.encode(ctx, out)
	if err != nil {
		return err
	}
	return h.Send(ctx, []byte(text))
}

// relay publishes to the owning node. The receiving node indexes its sockets
// by HashToken of the token they connected with, so the envelope carries the
// hash of the token being delivered to rather than any stored derivation.
func (r *Router) relay(ctx context.Context, token string, desc *session.Descriptor, out *outgoing) bool {
	text, err := r.encode(ctx, out)
	if err != nil {
		r.logger.Error("failed to encode relayed message", zap.Error(err))
		return false
	}

	env := &domain.Envelope{
		Message:          text,
		SessionTokenHash: pkgsession.HashToken(token),
		ChatID:           out.chatID,
	}
	body, err := env.Marshal()
	if err != nil {
		r.logger.Error("failed to encode envelope", zap.Error(err))
		return false
	}

	if err := r.transport.Publish(ctx, desc.QueueName, body, domain.PublishOptions{Persistent: false}); err != nil {
		r.logger.Warn("relay publish failed",
			zap.String("user_id", desc.UserID),
			zap.String("queue", desc.QueueName),
			zap.Error(err),
		)
		return false
	}
	return true
}

// notify queues a push job for desc unless it lacks credentials or the chat
// is muted for its owner. It reports whether a job was queued.
func (r *Router) notify(ctx context.Context, userID string, desc *session.Descriptor, msg domain.Message, notificationMessage, chatID string) bool {
	if !desc.HasPushCredentials() {
		return false
	}

	owner := desc.UserID
	if owner == "" {
		owner = userID
	}
	if r.isMuted(ctx, chatID, owner) {
		return false
	}

	text := notificationMessage
	if text == "" {
		encoded, err := msg.Encode()
		if err != nil {
			r.logger.Error("failed to encode notification message", zap.Error(err))
			return false
		}
		text = encoded
	}

	job := &domain.NotificationJob{
		UserID:              owner,
		NotificationMessage: text,
		NotificationToken:   desc.NotificationToken,
		DeviceType:          desc.DeviceType,
		VoipToken:           desc.VoipToken,
	}
	body, err := job.Marshal()
	if err != nil {
		r.logger.Error("failed to encode notification job", zap.Error(err))
		return false
	}

	if err := r.transport.Publish(ctx, r.cfg.NotificationQueue, body, domain.PublishOptions{Persistent: true}); err != nil {
		r.logger.Warn("notification enqueue failed",
			zap.String("user_id", owner),
			zap.String("device_type", desc.DeviceType),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Router) deliverWithNotifications(
	ctx context.Context,
	userID string,
	msg domain.Message,
	notificationMessage string,
	opts Options,
	shouldNotify func(delivered bool, s *session.Descriptor) bool,
) bool {
	if userID == "" {
		return false
	}

	sessions, err := r.directory.GetSessions(ctx, userID)
	if err != nil {
		r.logger.Warn("failed to fetch user sessions", zap.String("user_id", userID), zap.Error(err))
		return false
	}

	sessionOpts := Options{ChatID: opts.ChatID, NoFallback: true}
	delivered := make([]bool, len(sessions))
	r.fanOut(ctx, len(sessions), func(i int) {
		s := sessions[i]
		delivered[i] = r.deliver(ctx, userID, s.SessionToken, msg, sessionOpts).delivered
		if shouldNotify(delivered[i], s) {
			r.notify(ctx, userID, s, msg, notificationMessage, opts.ChatID)
		}
	})

	return anyTrue(delivered)
}

// stampMute sets data.muted on structured messages. The mute registry is
// only asked when a chat is given; its errors count as "not muted".
func (r *Router) stampMute(ctx context.Context, msg domain.Message, chatID, userID string) domain.Message {
	if _, ok := msg.Data(); !ok {
		return msg
	}
	return msg.WithMuted(r.isMuted(ctx, chatID, userID))
}

func (r *Router) isMuted(ctx context.Context, chatID, userID string) bool {
	if chatID == "" || r.mutes == nil {
		return false
	}
	muted, err := r.mutes.ShouldMute(ctx, chatID, userID)
	if err != nil {
		r.logger.Warn("mute lookup failed, treating as unmuted",
			zap.String("chat_id", chatID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return muted
}

// fanOut runs fn for every index with at most FanoutLimit in flight. A panic
// in one branch is logged and confined to that branch. Branches that have not
// started when ctx is cancelled are skipped.
func (r *Router) fanOut(ctx context.Context, n int, fn func(i int)) {
	if n == 0 {
		return
	}

	var g errgroup.Group
	if r.cfg.FanoutLimit > 0 {
		g.SetLimit(r.cfg.FanoutLimit)
	}
	for i := 0; i < n; i++ {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("panic in session delivery", zap.Any("error", rec))
				}
			}()
			if ctx.Err() != nil {
				return nil
			}
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

func anyTrue(values []bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
