package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"govor-biljaka/i18n"
)

const tokenTTL = 24 * time.Hour

type LoginRequest struct {
	Password string `json:"password"`
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	lang := h.lang(r, "")
	if !h.Auth.Enabled() || h.Auth.AdminPasswordHash == "" {
		h.Log.Warn("login attempted but no admin password is configured")
		respondError(w, http.StatusServiceUnavailable, lang, i18n.LoginDisabled)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Log.Error("failed to decode login request body", zap.Error(err))
		respondError(w, http.StatusBadRequest, lang, i18n.InvalidRequest)
		return
	}

	if !CheckPasswordHash(req.Password, h.Auth.AdminPasswordHash) {
		h.Log.Warn("invalid login credentials", zap.String("remote_addr", r.RemoteAddr))
		respondError(w, http.StatusUnauthorized, lang, i18n.InvalidLogin)
		return
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": now.Add(tokenTTL).Unix(),
		"iat": now.Unix(),
	})

	tokenString, err := token.SignedString([]byte(h.Auth.JWTSecret))
	if err != nil {
		h.Log.Error("failed to generate JWT token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, lang, i18n.InternalError)
		return
	}

	h.Log.Info("login successful")
	respondJSON(w, http.StatusOK, map[string]string{"token": tokenString})
}

// authMiddleware requires a valid bearer token when auth is configured and
// passes everything through otherwise.
func (h *Handlers) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.Auth.Enabled() {
			next(w, r)
			return
		}
		lang := h.lang(r, "")

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			respondError(w, http.StatusUnauthorized, lang, i18n.Unauthorized)
			return
		}

		tokenStr := authHeader[7:]
		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.Auth.JWTSecret), nil
		})

		if err != nil || !token.Valid {
			respondError(w, http.StatusUnauthorized, lang, i18n.Unauthorized)
			return
		}

		next(w, r)
	}
}
