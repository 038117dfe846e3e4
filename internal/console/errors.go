package console

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/cargoyard/cargoyard/internal/registry"
)

// Error view titles.
const (
	titleLoginRequired = "This page requires authentication"
	titleAdminRequired = "This page requires admin access"
	titleSessionFailed = "Failed to load your session"
)

func titleNotFound(id string) string   { return id + ": User not found" }
func titleLoadFailed(id string) string { return id + ": Failed to load user data" }

// ErrorView is the catch-all error page.
type ErrorView struct {
	Title       string `json:"title"`
	TryAgain    bool   `json:"try_again"`
	LoginNeeded bool   `json:"login_needed"`
	From        string `json:"from,omitempty"`
}

func (v ErrorView) location() string {
	q := url.Values{}
	q.Set("title", v.Title)
	if v.TryAgain {
		q.Set("try_again", "true")
	}
	if v.LoginNeeded {
		q.Set("login_needed", "true")
	}
	if v.From != "" {
		q.Set("from", v.From)
	}
	return "/error?" + q.Encode()
}

func errorViewFromQuery(q url.Values) ErrorView {
	tryAgain, _ := strconv.ParseBool(q.Get("try_again"))
	loginNeeded, _ := strconv.ParseBool(q.Get("login_needed"))
	title := q.Get("title")
	if title == "" {
		title = "Something went wrong"
	}
	return ErrorView{
		Title:       title,
		TryAgain:    tryAgain,
		LoginNeeded: loginNeeded,
		From:        localPath(q.Get("from")),
	}
}

func redirectToError(w http.ResponseWriter, r *http.Request, view ErrorView) {
	http.Redirect(w, r, view.location(), http.StatusSeeOther)
}

// lookupErrorView classifies a failed user fetch for the route id.
func lookupErrorView(id string, err error) ErrorView {
	if registry.IsNotFound(err) {
		return ErrorView{Title: titleNotFound(id)}
	}
	return ErrorView{Title: titleLoadFailed(id), TryAgain: true}
}

// errorDetail is the operator-facing text of a failed registry call.
func errorDetail(err error) string {
	var apiErr *registry.APIError
	if errors.As(err, &apiErr) && len(apiErr.Details) > 0 {
		return strings.Join(apiErr.Details, "; ")
	}
	if apiErr != nil {
		return http.StatusText(apiErr.Status)
	}
	return "the registry could not be reached"
}

// localPath returns p if it is a path on this console, "" otherwise.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return ""
	}
	return p
}
