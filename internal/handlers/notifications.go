package handlers

import (
	"net/http"
	"strconv"
)

// Notifications returns the recent feed, or only entries after ?since=<seq>.
func (a *API) Notifications(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("since")
	if v == "" {
		writeOK(w, a.feed.Recent())
		return
	}
	seq, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		badRequest(w, (&paramError{"since", v}).Error())
		return
	}
	writeOK(w, a.feed.Since(seq))
}
