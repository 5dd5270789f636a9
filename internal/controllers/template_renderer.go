package controllers

import (
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/rahul4469/speciessight/internal/middleware"
	"github.com/rahul4469/speciessight/internal/views"
)

// Template renders a full page. *views.Template implements it.
type Template interface {
	ExecuteHTTPWithStatus(w http.ResponseWriter, r *http.Request, status int, data *views.TemplateData)
}

// pageData fills the fields every page needs from the request.
func pageData(r *http.Request, title string, data any) *views.TemplateData {
	return &views.TemplateData{
		Title:       title,
		CurrentUser: middleware.CurrentUser(r),
		CSRFToken:   csrf.Token(r),
		Data:        data,
	}
}
