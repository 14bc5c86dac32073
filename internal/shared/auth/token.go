package auth

import (
	"net/http"
	"strings"
)

// ExtractBearerToken returns the token of an "Authorization: Bearer" header, or "".
func ExtractBearerToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	return ExtractBearerTokenFromHeader(r.Header.Get("Authorization"))
}

// ExtractBearerTokenFromHeader accepts both "Bearer" and "bearer" prefixes.
func ExtractBearerTokenFromHeader(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func ExtractTokenFromQuery(r *http.Request, paramName string) string {
	if r == nil || r.URL == nil {
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get(paramName))
}

// ExtractToken tries the Authorization header first and then the query parameter
// (default "token").
func ExtractToken(r *http.Request, queryParam string) string {
	if token := ExtractBearerToken(r); token != "" {
		return token
	}
	if queryParam == "" {
		queryParam = "token"
	}
	return ExtractTokenFromQuery(r, queryParam)
}
