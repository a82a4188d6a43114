package http

import (
	"net/http"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

const defaultNoticeLimit = 20

// NoticeHandler lists the failure notices recently shown to the user.
type NoticeHandler struct {
	notices ports.NoticeLog
}

// NewNoticeHandler creates a new NoticeHandler
func NewNoticeHandler(notices ports.NoticeLog) *NoticeHandler {
	return &NoticeHandler{notices: notices}
}

// HandleListNotices handles GET /notices?limit=n, newest first.
func (h *NoticeHandler) HandleListNotices(w http.ResponseWriter, r *http.Request) {
	limit := validation.ParseIntQueryParam(r, "limit", defaultNoticeLimit)
	WriteList(w, h.notices.Recent(limit))
}
