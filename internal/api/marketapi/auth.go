package marketapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/LogitTrans/cargolink/internal/models"
)

type ctxKey int

const (
	ctxKeySubject ctxKey = iota
	ctxKeyActor
)

// Токены выпускает внешний сервис авторизации; здесь только
// проверяем подпись (HS256) и достаём Telegram ID из subject.
func parseSubject(secret []byte, raw string) (string, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimPrefix(h, prefix)
}

// authToken проверяет JWT и кладёт subject в контекст. Пользователь
// при этом может ещё не существовать — достаточно для регистрации.
func (s *Server) authToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		sub, err := parseSubject(s.jwtSecret, raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeySubject, sub)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authUser поверх authToken загружает пользователя и требует,
// чтобы он был активен.
func (s *Server) authUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, _ := r.Context().Value(ctxKeySubject).(string)
		user, err := s.users.Get(r.Context(), sub)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unknown user"})
			return
		}
		if !user.IsActive {
			writeJSON(w, http.StatusForbidden, errorBody{Error: "account disabled"})
			return
		}
		actor := models.Actor{ID: user.TelegramID, Role: user.Role}
		ctx := context.WithValue(r.Context(), ctxKeyActor, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) models.Actor {
	actor, _ := ctx.Value(ctxKeyActor).(models.Actor)
	return actor
}

func subjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(ctxKeySubject).(string)
	return sub
}
