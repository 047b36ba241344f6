package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookie = "stipslite_flash"

func setFlash(w http.ResponseWriter, kind, msg string) {
	data, err := json.Marshal(notice{Kind: kind, Message: msg})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlash returns the pending notice, if any, and clears it.
func popFlash(w http.ResponseWriter, r *http.Request) *notice {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	data, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var n notice
	if err := json.Unmarshal(data, &n); err != nil || n.Message == "" {
		return nil
	}
	return &n
}

// redirectWith sets a flash notice and redirects with 303 See Other.
func redirectWith(w http.ResponseWriter, r *http.Request, to, kind, msg string) {
	setFlash(w, kind, msg)
	http.Redirect(w, r, to, http.StatusSeeOther)
}
