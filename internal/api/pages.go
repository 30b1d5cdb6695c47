package api

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/nerrad567/presence-core/internal/audit"
	"github.com/nerrad567/presence-core/internal/device"
	"github.com/nerrad567/presence-core/internal/panel"
	"github.com/nerrad567/presence-core/internal/presence"
)

// Form field names of POST /device-settings.
const (
	fieldUserAlias   = "user_alias"
	fieldDeviceAlias = "device_alias"
	fieldVisibility  = "visibility"
)

// handleIndex renders the settings page for the caller's device.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, err := s.settings.Lookup(r.RemoteAddr)

	page := panel.UnknownCaller(s.siteName, view.RegistrySize)
	if err == nil {
		page = panel.IndexPage{
			SiteName:    s.siteName,
			UserAlias:   view.Settings.UserAlias,
			DeviceAlias: view.Settings.DeviceAlias,
			MACAddress:  view.MACAddress,
			Options:     panel.VisibilityOptions(view.Settings.Visibility),
			DeviceCount: view.RegistrySize,
			HasData:     true,
		}
	}

	var buf bytes.Buffer
	if err := s.pages.RenderIndex(&buf, page); err != nil {
		s.logger.Error("rendering settings page failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	//nolint:errcheck // Best-effort write to response; connection may be closed
	buf.WriteTo(w)
}

// handleDeviceSettings applies a settings form to the caller's device and
// redirects back to the page. Unknown callers are redirected unchanged.
func (s *Server) handleDeviceSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	for _, field := range []string{fieldUserAlias, fieldDeviceAlias, fieldVisibility} {
		if !r.PostForm.Has(field) {
			http.Error(w, "missing field "+field, http.StatusBadRequest)
			return
		}
	}

	visibility, err := device.ParseVisibility(r.PostForm.Get(fieldVisibility))
	if err != nil {
		http.Error(w, "invalid visibility", http.StatusBadRequest)
		return
	}

	form := presence.Form{
		UserAlias:   strings.TrimSpace(r.PostForm.Get(fieldUserAlias)),
		DeviceAlias: strings.TrimSpace(r.PostForm.Get(fieldDeviceAlias)),
		Visibility:  visibility,
	}

	var prev device.Settings
	var existed bool
	if mac, ok := s.settings.Resolve(r.RemoteAddr); ok {
		prev, existed = s.registry.Get(mac)
	}

	saved, err := s.settings.Submit(r.Context(), r.RemoteAddr, form)
	switch {
	case err == nil:
		s.recordChange(audit.NewChange(presence.NormalizeAddr(r.RemoteAddr), prev, existed, saved))
	case errors.Is(err, presence.ErrCallerUnknown),
		errors.Is(err, device.ErrPersistFailed):
	case errors.Is(err, device.ErrInvalidSettings):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	default:
		s.logger.Error("saving device settings failed", "error", err)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
