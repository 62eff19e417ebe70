package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/vibin/wa-bridge/internal/core/domain"
)

const qrImageSize = 256

// setupWhatsAppRoutes sets up the session status, pairing and group routes
func (h *Handler) setupWhatsAppRoutes(r chi.Router) {
	r.Route("/whatsapp", func(r chi.Router) {
		r.Get("/status", h.handleWhatsAppStatus)
		r.Get("/qr", h.handleWhatsAppQR)
		r.Get("/groups", h.handleGetGroups)
	})
}

// handleWhatsAppStatus returns the WhatsApp connection status
func (h *Handler) handleWhatsAppStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]bool{
		"connected":  h.whatsappAdapter.IsConnected(),
		"logged_in":  h.whatsappAdapter.IsLoggedIn(),
		"auto_reply": h.assistant.AutoReplyEnabled(),
	}
	h.respondWithJSON(w, http.StatusOK, status)
}

// handleWhatsAppQR renders the pending pairing code as a PNG
func (h *Handler) handleWhatsAppQR(w http.ResponseWriter, r *http.Request) {
	code := h.whatsappAdapter.QRCode()
	if code == "" {
		h.respondWithError(w, http.StatusNotFound, "No pairing code available")
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		h.logger.Error("Failed to render QR code", "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to render QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleGetGroups returns a list of WhatsApp groups
func (h *Handler) handleGetGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.whatsappAdapter.GetGroups(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotConnected):
		h.respondWithError(w, http.StatusServiceUnavailable, "WhatsApp is not connected")
		return
	default:
		h.logger.Error("Failed to get WhatsApp groups", "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "Failed to get WhatsApp groups")
		return
	}
	if groups == nil {
		groups = []domain.GroupInfo{}
	}

	h.respondWithJSON(w, http.StatusOK, groups)
}
