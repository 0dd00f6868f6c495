package callback

import (
	_ "embed"
	"html/template"
)

//go:embed templates/callback.html
var callbackPageTemplateHTML string

//go:embed templates/popup.html
var popupPageTemplateHTML string

var callbackPageTemplate = template.Must(template.New("callback").Parse(callbackPageTemplateHTML))
var popupPageTemplate = template.Must(template.New("popup").Parse(popupPageTemplateHTML))

// Page states. The callback page is always in exactly one of these.
const (
	pageProcessing = "processing"
	pageSuccess    = "success"
	pageError      = "error"
)

// CallbackPageData drives the redirect-callback page.
type CallbackPageData struct {
	State       string // "processing", "success" or "error"
	Message     string
	RedirectURL string // where the meta refresh sends the browser
}

// PopupPageData drives the self-closing popup page.
type PopupPageData struct {
	Provider string
}
