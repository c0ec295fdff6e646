// Package rpc provides WebSocket-based RPC functionality.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"norelock.dev/waveroom/backend/internal/db/redis"
	"norelock.dev/waveroom/backend/internal/utils"
)

// HandlerFunc is a function that handles an RPC request.
type HandlerFunc func(ctx context.Context, client *Client, params json.RawMessage) (any, error)

type HandlerFuncNoParams func(ctx context.Context, client *Client) (any, error)

func (h HandlerFuncNoParams) handlerFunc() HandlerFunc {
	return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
		return h(ctx, client)
	}
}
func RegisterNoParams(hr HandlerRegistry, method string, h HandlerFuncNoParams) {
	hr.Register(method, h.handlerFunc())
}

type HandlerFuncWith[T any] func(ctx context.Context, client *Client, params *T) (any, error)

func (h HandlerFuncWith[T]) handlerFunc() HandlerFunc {
	return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
		var p T
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, &Error{
				Code:    ErrInvalidParams,
				Message: "Invalid parameters",
				Data:    err.Error(),
			}
		}
		return h(ctx, client, &p)
	}
}

type HandlerRegistry interface {
	Register(method string, handler HandlerFunc)
	Wrap(mw MiddlewareFunc) HandlerRegistry
}

func Register[T any](hr HandlerRegistry, method string, h HandlerFuncWith[T]) {
	hr.Register(method, h.handlerFunc())
}

// Router routes RPC requests to the appropriate handler.
type Router struct {
	// handlers is a map of method names to handler functions.
	handlers map[string]HandlerFunc

	// mutex is used to synchronize access to the handlers map.
	mutex sync.RWMutex

	// logger is the router's logger.
	logger *utils.Logger
}

// MiddlewareFunc is a function that wraps a handler function.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

type HandlerRegWrapped struct {
	inner HandlerRegistry
	mw    MiddlewareFunc
}

// Register registers a handler for a method.
func (h HandlerRegWrapped) Register(method string, handler HandlerFunc) {
	h.inner.Register(method, h.mw(handler))
}

// Wrap wraps the handler registry with middleware.
func (h HandlerRegWrapped) Wrap(mw MiddlewareFunc) HandlerRegistry {
	return HandlerRegWrapped{
		inner: h,
		mw:    mw,
	}
}

// NewRouter creates a new router.
func NewRouter(logger *utils.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		logger:   logger.Named("router"),
	}
}

// Register registers a handler for a method.
func (r *Router) Register(method string, handler HandlerFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.handlers[method] = handler
	r.logger.Debug("Registered handler", "method", method)
}

// Wrap wraps the router with middleware.
func (r *Router) Wrap(mw MiddlewareFunc) HandlerRegistry {
	return HandlerRegWrapped{
		inner: r,
		mw:    mw,
	}
}

type contextKey string

const (
	contextKeyClient   contextKey = "client"
	contextKeyUserID   contextKey = "userID"
	contextKeyUsername contextKey = "username"
)

// ClientFromContext returns the client attached to a handler context.
func ClientFromContext(ctx context.Context) (*Client, bool) {
	client, ok := ctx.Value(contextKeyClient).(*Client)
	return client, ok
}

// Route routes a request to the appropriate handler.
func (r *Router) Route(client *Client, request *Request) *Response {
	r.mutex.RLock()
	handler, ok := r.handlers[request.Method]
	r.mutex.RUnlock()

	if !ok {
		r.logger.Warn("Method not found", "method", request.Method)
		return NewErrorResponse(request.ID, ErrMethodNotFound, fmt.Sprintf("Method '%s' not found", request.Method), nil)
	}

	ctx := context.WithValue(context.Background(), contextKeyClient, client)
	ctx = context.WithValue(ctx, contextKeyUserID, client.UserID)
	ctx = context.WithValue(ctx, contextKeyUsername, client.Username)

	result, err := handler(ctx, client, request.Params)
	if err != nil {
		r.logger.Error("Handler error", err, "method", request.Method)
		return handleError(request.ID, err)
	}

	// If this is a notification, don't return a response
	if request.IsNotification() {
		return nil
	}

	return NewResponse(request.ID, result)
}

// handleError converts an error to an appropriate error response.
func handleError(id any, err error) *Response {
	wire := FromDomainError(err)
	return NewErrorResponse(id, wire.Code, wire.Message, wire.Data)
}

// AuthMiddleware is a middleware that checks if the client is authenticated.
func AuthMiddleware(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
		if client.UserID == "" {
			return nil, NewAuthenticationRequiredError()
		}
		return next(ctx, client, params)
	}
}

// RateLimitMiddleware creates middleware that applies a per-user rate limit
// to the wrapped methods.
func RateLimitMiddleware(limiter *redis.RateLimiter, limit redis.RateLimit) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
			result, err := limiter.Allow(ctx, limit, client.UserID)
			if err != nil {
				// A limiter outage must not take the method down with it.
				return next(ctx, client, params)
			}
			if !result.Allowed {
				return nil, NewRateLimitExceededError(int64(result.RetryAfter.Seconds()))
			}
			return next(ctx, client, params)
		}
	}
}

// LoggingMiddleware creates middleware that logs requests and responses.
func LoggingMiddleware(logger *utils.Logger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, client *Client, params json.RawMessage) (any, error) {
			logger.Debug("RPC request", "client", client.ID, "userID", client.UserID)
			result, err := next(ctx, client, params)
			if err != nil {
				logger.Error("RPC error", err, "client", client.ID, "userID", client.UserID)
			} else {
				logger.Debug("RPC response", "client", client.ID, "userID", client.UserID)
			}
			return result, err
		}
	}
}

// RecoveryMiddleware creates middleware that recovers from panics.
func RecoveryMiddleware(logger *utils.Logger) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, client *Client, params json.RawMessage) (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Panic recovered", fmt.Errorf("panic: %v", r), "client", client.ID, "userID", client.UserID)
					result = nil
					err = &Error{Code: ErrInternalError, Message: "internal error"}
				}
			}()
			return next(ctx, client, params)
		}
	}
}
