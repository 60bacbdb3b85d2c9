package cms

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// markup writes HTML and remembers the first error.
type markup struct {
	ctx context.Context
	w   io.Writer
	err error
}

// view builds a component from a markup writer function.
func view(fn func(m *markup)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{ctx: ctx, w: w}
		fn(m)
		return m.err
	})
}

// raw writes trusted markup.
func (m *markup) raw(s string) {
	if m.err != nil {
		return
	}
	_, m.err = io.WriteString(m.w, s)
}

// text writes escaped text.
func (m *markup) text(s string) {
	m.raw(templ.EscapeString(s))
}

// rawf formats trusted markup with escaped arguments. Arguments are
// stringified first, so the format uses %s only.
func (m *markup) rawf(format string, args ...any) {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = templ.EscapeString(fmt.Sprint(a))
	}
	m.raw(fmt.Sprintf(format, escaped...))
}

// render writes a nested component.
func (m *markup) render(c templ.Component) {
	if m.err != nil || c == nil {
		return
	}
	m.err = c.Render(m.ctx, m.w)
}

// alert writes a success or error notice when msg is set.
func (m *markup) alert(kind, msg string) {
	if msg == "" {
		return
	}
	class := "bg-green-100 text-green-700"
	if kind == "error" {
		class = "bg-red-100 text-red-700"
	}
	m.rawf(`<div class="flex rounded-lg p-4 mb-4 text-sm %s" role="alert">%s</div>`, class, msg)
}

// input writes a labelled input with its validation error.
func (m *markup) input(typ, name, label, value, errMsg string) {
	m.rawf(`<label class="flex flex-col gap-y-1"><span>%s</span>`, label)
	if typ == "textarea" {
		m.rawf(`<textarea name="%s" rows="8">%s</textarea>`, name, value)
	} else {
		m.rawf(`<input type="%s" name="%s" value="%s">`, typ, name, value)
	}
	m.fieldError(errMsg)
	m.raw(`</label>`)
}

// checkbox writes a labelled checkbox submitting value.
func (m *markup) checkbox(name, value, label string, checked bool) {
	attr := ""
	if checked {
		attr = " checked"
	}
	m.rawf(`<label class="flex items-center gap-x-2"><input type="checkbox" name="%s" value="%s"`, name, value)
	m.raw(attr + `>`)
	m.text(label)
	m.raw(`</label>`)
}

// option is a select choice.
type option struct {
	Value string
	Label string
}

// selectInput writes a labelled select.
func (m *markup) selectInput(name, label, selected string, options []option, errMsg string) {
	m.rawf(`<label class="flex flex-col gap-y-1"><span>%s</span><select name="%s">`, label, name)
	for _, o := range options {
		attr := ""
		if o.Value == selected {
			attr = " selected"
		}
		m.rawf(`<option value="%s"`, o.Value)
		m.raw(attr + `>`)
		m.text(o.Label)
		m.raw(`</option>`)
	}
	m.raw(`</select>`)
	m.fieldError(errMsg)
	m.raw(`</label>`)
}

func (m *markup) fieldError(msg string) {
	if msg != "" {
		m.rawf(`<span class="text-red-500 text-sm">%s</span>`, msg)
	}
}
