package backendfake

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func (b *Backend) issue(tokenType string, ttl time.Duration) (string, time.Time) {
	exp := time.Now().Add(ttl)
	claims := jwt.MapClaims{
		"sub":        strconv.Itoa(UserID),
		"user_id":    UserID,
		"token_type": tokenType,
		"jti":        uuid.NewString(),
		"exp":        exp.Unix(),
		"iat":        time.Now().Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed, exp
}

func (b *Backend) parse(raw string) error {
	_, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		return b.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err
}

func (b *Backend) user() map[string]any {
	return map[string]any{
		"UserId":           UserID,
		"UserName":         Username,
		"Email":            "jdoe@example.com",
		"FirstName":        "Jane",
		"LastName":         "Doe",
		"IsActive":         "Y",
		"consent_accepted": "1",
		"license_key":      "LIC-0000-TEST",
	}
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		LoginType string `json:"login_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": "Malformed request"})
		return
	}
	if req.Username != Username || req.Password != Password {
		writeJSON(w, http.StatusOK, map[string]any{"status": "error", "message": "Invalid credentials"})
		return
	}

	b.lock.Lock()
	ttl, omit := b.accessTTL, b.omitExpiry
	b.lock.Unlock()

	access, accessExp := b.issue("access", ttl)
	refresh, refreshExp := b.issue("refresh", 7*24*time.Hour)
	b.lock.Lock()
	b.validAccess[access] = true
	b.validRefresh[refresh] = true
	b.lock.Unlock()

	resp := map[string]any{
		"status":           "success",
		"message":          "Login successful",
		"access_token":     access,
		"refresh_token":    refresh,
		"user":             b.user(),
		"license_verified": true,
		"consent_required": false,
	}
	if !omit {
		resp["access_token_expires"] = accessExp.Local().Format(ExpiryLayout)
		resp["refresh_token_expires"] = refreshExp.Local().Format(ExpiryLayout)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.lock.Lock()
	delay, fail, rotate, ttl := b.refreshDelay, b.failRefresh, b.rotateRefresh, b.accessTTL
	valid := b.validRefresh[req.RefreshToken]
	b.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail || !valid {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid refresh token"})
		return
	}

	access, accessExp := b.issue("access", ttl)
	resp := map[string]any{
		"status":               "success",
		"access_token":         access,
		"access_token_expires": accessExp.Local().Format(ExpiryLayout),
	}
	b.lock.Lock()
	b.validAccess[access] = true
	if rotate {
		refresh, refreshExp := b.issue("refresh", 7*24*time.Hour)
		delete(b.validRefresh, req.RefreshToken)
		b.validRefresh[refresh] = true
		resp["refresh_token"] = refresh
		resp["refresh_token_expires"] = refreshExp.Local().Format(ExpiryLayout)
	}
	b.lock.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.lock.Lock()
	fail := b.failLogout
	if !fail {
		delete(b.validAccess, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	}
	b.lock.Unlock()
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "logout unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}

func (b *Backend) handleVerify(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "user_id": UserID})
}

func (b *Backend) handleSessionLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Username != Username || req.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "error", "message": "Invalid credentials"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: CSRFToken, Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: uuid.NewString(), Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"user": map[string]any{
			"id":        UserID,
			"email":     "jdoe@example.com",
			"username":  Username,
			"firstName": "Jane",
			"lastName":  "Doe",
		},
	})
}

func (b *Backend) handleSessionLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "success"})
}
