package internal

import (
	"net/http"
)

// ResultKind tags a Result.
type ResultKind uint8

const (
	// KindOk carries plain data for the module.
	KindOk ResultKind = iota
	// KindRedirect ends the pipeline with a Location response.
	KindRedirect
	// KindInvalid carries per-field validation errors and the submitted values.
	KindInvalid
)

func (k ResultKind) String() string {
	switch k {
	case KindRedirect:
		return "redirect"
	case KindInvalid:
		return "invalid"
	default:
		return "ok"
	}
}

// Hook is a loader or an action attached to a module.
// Expected alternate flows (redirects, validation failures) are Results;
// a non-nil error is fatal for the request.
type Hook func(c Context) (Result, error)

// Result is the outcome of a loader or an action.
// Build it with Ok, Redirect or Invalid and decorate with the With* methods.
type Result struct {
	Data     any
	header   http.Header
	Location string
	Status   int
	Kind     ResultKind
}

// FormErrors is the payload of an Invalid result.
type FormErrors struct {
	Errors map[string]string `json:"errors"`
	Values map[string]string `json:"values"`
}

// Ok returns a result carrying data.
func Ok(data any) Result {
	return Result{Kind: KindOk, Data: data}
}

// Redirect returns a terminal result pointing at url with 302 Found.
func Redirect(url string) Result {
	return Result{Kind: KindRedirect, Location: url, Status: http.StatusFound}
}

// Invalid returns a validation failure. The form is re-displayed with
// status 200 and the FormErrors payload as the module's action data.
func Invalid(fields, values map[string]string) Result {
	if fields == nil {
		fields = map[string]string{}
	}
	if values == nil {
		values = map[string]string{}
	}
	return Result{Kind: KindInvalid, Data: FormErrors{Errors: fields, Values: values}}
}

// WithCookie attaches a Set-Cookie header value.
func (r Result) WithCookie(setCookie string) Result {
	if setCookie == "" {
		return r
	}
	r.header = r.Header()
	r.header.Add("Set-Cookie", setCookie)
	return r
}

// WithHeader sets a response header.
func (r Result) WithHeader(key, value string) Result {
	r.header = r.Header()
	r.header.Set(key, value)
	return r
}

// WithStatus overrides the response status.
func (r Result) WithStatus(code int) Result {
	r.Status = code
	return r
}

// Header returns a copy of the headers attached to the result.
func (r Result) Header() http.Header {
	if r.header == nil {
		return make(http.Header)
	}
	return r.header.Clone()
}

// Cookies returns the attached Set-Cookie values in order.
func (r Result) Cookies() []string {
	return r.header.Values("Set-Cookie")
}

// IsRedirect reports whether the result ends the pipeline with a redirect.
func (r Result) IsRedirect() bool {
	return r.Kind == KindRedirect
}
