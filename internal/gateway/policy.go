package gateway

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/learnhub-client/internal/storage"
	"github.com/and161185/learnhub-client/internal/ui"
)

// User-facing messages. Raw server text is only ever shown for plain client errors.
const (
	MsgSessionExpired = "Your session has expired. Please sign in again."
	MsgNotFound       = "The requested resource was not found."
	MsgServerFault    = "Something went wrong on our side. Please try again in a moment."
	MsgNetwork        = "Unable to reach the server. Please check your internet connection."
	MsgTechnical      = "We are experiencing technical difficulties. Please try again later."
	MsgGeneric        = "The request could not be completed."
)

var (
	// dbSignature matches raw database-engine errors leaking through the API.
	dbSignature = regexp.MustCompile(`(?i)(SQLSTATE\[|SQLSTATE|QueryException|PDOException|Integrity constraint violation|duplicate key value violates|syntax error at or near|violates foreign key constraint|pq: |ERROR:\s+relation\s)`)
	// technicalText matches other strings not meant for users: exception class names, stack frames, paths.
	technicalText = regexp.MustCompile(`(?i)(exception|stack trace|traceback|#\d+ /|\.php|\.go:\d+|undefined (index|variable|method)|call to (a )?(member|undefined) function)`)
)

const maxUserMessage = 200

func containsDBSignature(b []byte) bool { return dbSignature.Match(b) }

func isTechnical(msg string) bool {
	return len(msg) > maxUserMessage || dbSignature.MatchString(msg) || technicalText.MatchString(msg)
}

type retriedKey struct{}

// WithRetried marks ctx as belonging to a request chain that already went through
// the session-expired cycle. A 401 seen under such a context is passed through untouched.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx carries the retried marker.
func IsRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

func (g *Gateway) isAuthEndpoint(path string) bool {
	path = "/" + strings.Trim(path, "/")
	for _, p := range g.authEndpoints {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// handle applies the single side-effect policy of e's kind.
func (g *Gateway) handle(ctx context.Context, e *Error) {
	switch e.Kind {
	case KindAuthentication:
		g.handleUnauthorized(ctx, e)
	case KindValidation:
		// the form owns interpretation
	case KindNotFound:
		g.notify(ui.KindNotFound, MsgNotFound)
	case KindServerFault:
		g.log.Error("server fault",
			zap.String("method", e.Method),
			zap.String("path", e.Path),
			zap.Int("status", e.Status),
			zap.String("message", e.Message),
			zap.ByteString("body", truncate(e.Body, 512)),
		)
		g.notify(ui.KindServerFault, MsgServerFault)
	case KindNetwork:
		g.notify(ui.KindNetwork, MsgNetwork)
	case KindClient:
		switch {
		case containsDBSignature(e.Body):
			g.log.Warn("raw database error in response", zap.String("path", e.Path), zap.Int("status", e.Status))
			g.notify(ui.KindTechnical, MsgTechnical)
		case e.Message != "" && !isTechnical(e.Message):
			g.notify(ui.KindClient, e.Message)
		default:
			g.notify(ui.KindClient, MsgGeneric)
		}
	}
}

func (g *Gateway) handleUnauthorized(ctx context.Context, e *Error) {
	if g.isAuthEndpoint(e.Path) || IsRetried(ctx) {
		return
	}
	ctx = WithRetried(ctx)

	if err := g.store.Delete(ctx, storage.KeyToken); err != nil {
		g.log.Warn("clear credential", zap.Error(err))
	}
	for _, h := range g.expiredHooks() {
		h(ctx)
	}

	path := g.loc.Path()
	if g.routes.Classify(path).Open() {
		g.log.Debug("credential cleared silently", zap.String("route", path))
		return
	}
	g.log.Info("session expired", zap.String("route", path), zap.String("request", e.Path))
	g.notify(ui.KindSessionExpired, MsgSessionExpired)
	g.nav.Navigate(ctx, g.routes.SignIn())
}

func (g *Gateway) notify(kind ui.Kind, msg string) {
	g.notifier.Notify(ui.Notification{Kind: kind, Message: msg})
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
