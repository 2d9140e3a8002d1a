package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	"github.com/gigmatch-dev/settlement/backend/internal/idempotency"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenCookieName = "__gigmatch_token"

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if rw.StatusCode == 0 {
		rw.StatusCode = http.StatusOK
	}
	return rw.ResponseWriter.Write(b)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)
		slog.Info("handled request", "status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", duration)

		if h.metrics != nil {
			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			h.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.StatusCode)).Inc()
			h.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		}
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
				stackTrace := string(debug.Stack())
				fmt.Print(stackTrace) // slog would mangle the stack
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			switch {
			case errors.Is(err, http.ErrNoCookie):
				h.errorResponse(w, r, "not logged in")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		claims := &AuthClaims{}
		_, err = jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(h.config.JWT.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			h.errorResponse(w, r, "invalid token")
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subString := r.Context().Value(SubCtxKey).(string)

		sub, err := uuid.Parse(subString)
		if err != nil {
			h.errorResponse(w, r, "invalid token")
			return
		}

		myInfo, err := h.users.GetUserByID(r.Context(), sub)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				h.errorResponse(w, r, "user does not exist")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}

		ctx := context.WithValue(r.Context(), MyInfoCtx, myInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) preventInactiveUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
		if !myInfo.IsActive {
			h.errorResponse(w, r, "account is deactivated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequiredRole checks the role stored in the database rather than the token,
// so a demotion takes effect before the token expires.
func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
			if !slices.Contains(roles, myInfo.Role) {
				h.errorResponse(w, r, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) settlementRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			h.errorResponse(w, r, "invalid settlement request id")
			return
		}

		req, err := h.settlements.GetRequest(r.Context(), id)
		if err != nil {
			h.serviceError(w, r, err)
			return
		}

		// workers may only see their own requests
		myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
		if myInfo.Role != domain.RoleAdmin && req.OwnerID != myInfo.ID {
			h.errorResponse(w, r, "settlement request not found")
			return
		}

		ctx := context.WithValue(r.Context(), SettlementRequestCtx, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type recordingResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *recordingResponseWriter) WriteHeader(statusCode int) {
	rw.status = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *recordingResponseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

// idempotent replays the stored response when a request repeats an
// Idempotency-Key. Requests without the header pass straight through. Server
// errors and panics release the key so the client can try again.
func (h *Handler) idempotent(scope string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || h.idempotency == nil {
				next.ServeHTTP(w, r)
				return
			}

			myInfo := r.Context().Value(MyInfoCtx).(*domain.User)
			storeKey := fmt.Sprintf("idempotency_%s_%s_%s", scope, myInfo.ID, key)

			ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
			defer cancel()

			state, stored, err := h.idempotency.Begin(ctx, storeKey)
			if err != nil {
				h.internalServerError(w, r, err)
				return
			}

			switch state {
			case idempotency.InProgress:
				h.errorResponse(w, r, "a request with this idempotency key is still in progress")
				return
			case idempotency.Completed:
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			rw := &recordingResponseWriter{ResponseWriter: w}
			finished := false
			defer func() {
				// a panic is on its way to recoverer; free the key so the client can retry
				if !finished {
					h.releaseIdempotencyKey(r, storeKey)
				}
			}()
			next.ServeHTTP(rw, r)
			finished = true

			if rw.status >= http.StatusInternalServerError {
				h.releaseIdempotencyKey(r, storeKey)
				return
			}

			ctx, cancel = h.idempotencyContext(r)
			defer cancel()

			resp := idempotency.Response{Status: rw.status, Body: bytes.TrimSpace(rw.body.Bytes())}
			if err := h.idempotency.Complete(ctx, storeKey, resp); err != nil {
				slog.Error("failed to store idempotent response", "key", storeKey, "error", err)
			}
		})
	}
}

// idempotencyContext outlives the request: the handler has already answered,
// so the outcome is stored even if the client left.
func (h *Handler) idempotencyContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), time.Duration(h.config.Redis.OperationExpiration)*time.Second)
}

func (h *Handler) releaseIdempotencyKey(r *http.Request, key string) {
	ctx, cancel := h.idempotencyContext(r)
	defer cancel()

	if err := h.idempotency.Release(ctx, key); err != nil {
		slog.Error("failed to release idempotency key", "key", key, "error", err)
	}
}
