package handlers

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
)

// embedPage is the minimal host page served for iframe embedding. The
// viewer client bootstraps itself from the data attributes.
var embedPage = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title>
<style>html,body{margin:0;height:100%;overflow:hidden}#viewer{width:100%;height:100%}</style>
</head>
<body>
<div id="viewer"
     data-model-id="{{.ID}}"
     data-asset-url="{{.AssetURL}}"
     data-has-questions="{{.HasQuestions}}"></div>
<script src="/static/viewer.js"></script>
</body>
</html>
`))

type embedData struct {
	ID           string
	Name         string
	AssetURL     string
	HasQuestions bool
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	m, err := s.store.GetModel(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	count, err := s.store.CountQuestions(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = embedPage.Execute(w, embedData{
		ID:           m.ID,
		Name:         m.Name,
		AssetURL:     m.AssetURL,
		HasQuestions: count > 0,
	})
	if err != nil {
		s.log.Error().Err(err).Str("modelId", id).Msg("Failed to render embed page")
	}
}
