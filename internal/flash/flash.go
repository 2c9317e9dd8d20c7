// Package flash provides one-time notices carried across a redirect in a
// short-lived cookie.
package flash

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"
)

// CookieName is the cookie used for one-time notices.
const CookieName = "closet_flash"

const maxMessageLen = 1024

// Kind classifies notice presentation.
type Kind string

const (
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
	KindError   Kind = "error"
)

// Notice is one flash message. HintURL/HintText render as a link after the
// message; HintURL must be https.
type Notice struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	HintURL  string `json:"hintUrl,omitempty"`
	HintText string `json:"hintText,omitempty"`
}

func Success(msg string) Notice { return Notice{Kind: KindSuccess, Message: msg} }
func Info(msg string) Notice    { return Notice{Kind: KindInfo, Message: msg} }
func Error(msg string) Notice   { return Notice{Kind: KindError, Message: msg} }

// Write stores the notices for the next page render, replacing any pending ones.
func Write(w http.ResponseWriter, notices ...Notice) {
	kept := make([]Notice, 0, len(notices))
	for _, n := range notices {
		if n, ok := normalize(n); ok {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return
	}
	payload, err := json.Marshal(kept)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    base64.RawURLEncoding.EncodeToString(payload),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ReadAndClear returns pending notices and expires the cookie.
func ReadAndClear(w http.ResponseWriter, r *http.Request) []Notice {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return decode(cookie.Value)
}

func decode(raw string) []Notice {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	var notices []Notice
	if err := json.Unmarshal(decoded, &notices); err != nil {
		return nil
	}
	out := notices[:0]
	for _, n := range notices {
		if n, ok := normalize(n); ok {
			out = append(out, n)
		}
	}
	return out
}

func normalize(n Notice) (Notice, bool) {
	n.Message = strings.TrimSpace(n.Message)
	if n.Message == "" {
		return Notice{}, false
	}
	if len(n.Message) > maxMessageLen {
		n.Message = truncate(n.Message, maxMessageLen) + "…"
	}
	if !strings.HasPrefix(n.HintURL, "https://") {
		n.HintURL, n.HintText = "", ""
	}
	switch n.Kind {
	case KindSuccess, KindInfo, KindError:
		return n, true
	case "":
		n.Kind = KindInfo
		return n, true
	default:
		return Notice{}, false
	}
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
