package hub

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmkor-dev/uptimed/internal/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// ServeWS authenticates the handshake and upgrades the connection. The
// primary (access) token is tried first; a valid secondary (refresh)
// token lets the client in and gets a fresh pair pushed transparently.
// No subscription state exists until authentication has succeeded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	primary, secondary := extractTokens(r)

	userID, err := h.creds.VerifyPrimary(primary)
	kind := tokenKindAccess
	var minted *auth.TokenPair
	if err != nil {
		uid, rerr := h.creds.VerifySecondary(r.Context(), secondary)
		if rerr != nil {
			mAuthFail.Inc()
			h.log.Debug("handshake rejected", zap.Error(err))
			http.Error(w, "authentication failed", http.StatusUnauthorized)
			return
		}
		pair, merr := h.creds.MintPair(r.Context(), uid)
		if merr != nil {
			h.log.Error("mint token pair", zap.Int64("user_id", uid), zap.Error(merr))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		userID = uid
		kind = tokenKindRefresh
		minted = &pair
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade", zap.Error(err))
		return
	}

	c := &Client{
		id:          uuid.NewString(),
		userID:      userID,
		tokenKind:   kind,
		connectedAt: time.Now().UTC(),
		conn:        conn,
		send:        make(chan []byte, h.cfg.SendBuffer),
		subs:        make(map[int64]struct{}),
	}
	h.register(c)

	go c.writePump(h)
	go c.readPump(h)

	if minted != nil {
		h.sendTo(c, msgTokensRefreshed, minted)
	}
}

// extractTokens pulls the primary and secondary credentials out of the
// handshake request. Priority for the primary: Authorization bearer
// header, access_token cookie, token query parameter.
func extractTokens(r *http.Request) (primary, secondary string) {
	if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, "Bearer ") {
		primary = strings.TrimPrefix(ah, "Bearer ")
	}
	if primary == "" {
		if ck, err := r.Cookie("access_token"); err == nil {
			primary = ck.Value
		}
	}
	if primary == "" {
		primary = r.URL.Query().Get("token")
	}

	if ck, err := r.Cookie("refresh_token"); err == nil {
		secondary = ck.Value
	}
	if secondary == "" {
		secondary = r.URL.Query().Get("refresh_token")
	}
	return primary, secondary
}
