package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andywolf/reqsync/internal/httproute"
)

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(notFound)

	r.HandleFunc(httproute.Root, s.banner).Methods(http.MethodGet)
	r.Handle(httproute.Config, handle(s.config)).Methods(http.MethodGet)

	r.Handle(httproute.Issues, handle(s.listIssues)).Methods(http.MethodGet)
	r.Handle(httproute.Issues, handle(s.createIssue)).Methods(http.MethodPost)
	r.Handle(httproute.Issue, handle(s.getIssue)).Methods(http.MethodGet)
	r.Handle(httproute.Issue, handle(s.updateIssue)).Methods(http.MethodPatch)
	r.Handle(httproute.IssuePreview, handle(s.previewIssue)).Methods(http.MethodGet)
	r.Handle(httproute.Comments, handle(s.listComments)).Methods(http.MethodGet)
	r.Handle(httproute.Comments, handle(s.createComment)).Methods(http.MethodPost)

	r.Handle(httproute.DownloadIssue, handle(s.download)).Methods(http.MethodPost)
	r.Handle(httproute.DownloadIssues, handle(s.download)).Methods(http.MethodPost)

	r.Handle(httproute.State, handle(s.listState)).Methods(http.MethodGet)
	r.Handle(httproute.StateKey, handle(s.getState)).Methods(http.MethodGet)

	return r
}

// notFound answers unknown paths and unsupported methods alike.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found"})
}
