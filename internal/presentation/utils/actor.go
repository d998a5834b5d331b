package utils

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/hilthontt/tenantwire/internal/domain"
)

const (
	HeaderActorID = "X-Actor-ID"
	CookieActorID = "actor_id"
	QueryActorID  = "actorId"
)

// ActorID identifies the caller of r. The header wins over the cookie, the
// cookie over the query string. Callers that carry none are anonymous.
func ActorID(r *http.Request) string {
	if actorID := strings.TrimSpace(r.Header.Get(HeaderActorID)); actorID != "" {
		return actorID
	}
	if actorID := actorFromCookie(r); actorID != "" {
		return actorID
	}
	if actorID := strings.TrimSpace(r.URL.Query().Get(QueryActorID)); actorID != "" {
		return actorID
	}
	return domain.ExternalActor
}

// ActorCookie carries actorID for later requests of the same browser.
func ActorCookie(actorID string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieActorID,
		Value:    base64.StdEncoding.EncodeToString([]byte(actorID)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func actorFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(CookieActorID)
	if err != nil {
		return ""
	}

	decoded, err := base64.StdEncoding.DecodeString(cookie.Value)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(decoded))
}
