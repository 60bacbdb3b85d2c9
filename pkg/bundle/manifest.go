package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// File is one emitted bundle file.
type File struct {
	// Name is the output path relative to the output directory.
	Name string `json:"name"`

	// Input is the last source input contributing to the file.
	Input string `json:"input,omitempty"`
}

// Manifest describes a finished build.
type Manifest struct {
	// Routes maps a module path to the file that exports it.
	Routes map[string]string `json:"routes"`

	// Entry is the file of the client entry point.
	Entry string `json:"entry"`

	Files []File `json:"files"`

	// Sources maps every file the build read to the SHA-256 of its content,
	// including files only reached through imports.
	Sources map[string]string `json:"sources,omitempty"`
}

// Names returns the names of all emitted files.
func (m *Manifest) Names() []string {
	names := make([]string, len(m.Files))
	for i, f := range m.Files {
		names[i] = f.Name
	}
	return names
}

// Scripts returns the emitted JavaScript files.
func (m *Manifest) Scripts() []string {
	return m.byExt(".js")
}

// Styles returns the emitted stylesheets.
func (m *Manifest) Styles() []string {
	return m.byExt(".css")
}

func (m *Manifest) byExt(ext string) []string {
	var out []string
	for _, f := range m.Files {
		if path.Ext(f.Name) == ext {
			out = append(out, f.Name)
		}
	}
	return out
}

type metafile struct {
	Inputs  orderedKeys    `json:"inputs"`
	Outputs orderedOutputs `json:"outputs"`
}

type metafileOutput struct {
	Inputs     orderedKeys `json:"inputs"`
	EntryPoint string      `json:"entryPoint,omitempty"`
	Bytes      int         `json:"bytes"`
}

// orderedOutputs keeps the output order of the metafile.
type orderedOutputs struct {
	keys   []string
	values map[string]metafileOutput
}

func (o *orderedOutputs) UnmarshalJSON(data []byte) error {
	o.values = make(map[string]metafileOutput)
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		var out metafileOutput
		if err := dec.Decode(&out); err != nil {
			return err
		}
		o.keys = append(o.keys, key)
		o.values[key] = out
	}
	return expectDelim(dec, '}')
}

// orderedKeys decodes an object and keeps only its keys, in order.
type orderedKeys []string

func (k *orderedKeys) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
		*k = append(*k, key)
	}
	return expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

// ParseMetafile builds a Manifest from an esbuild metafile.
//
// outPrefix is the path of the output directory as esbuild reports it
// relative to the working directory (for example "../dist"). It is stripped
// from output names. entry is the client entry point of the build.
func ParseMetafile(data []byte, outPrefix, entry string) (*Manifest, error) {
	var meta metafile
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMetafile, err)
	}

	m := &Manifest{Routes: make(map[string]string), Sources: make(map[string]string)}
	for _, in := range meta.Inputs {
		// Virtual modules live in a plugin namespace and have no file.
		if !strings.Contains(in, ":") {
			m.Sources[cleanPath(in)] = ""
		}
	}

	prefix := strings.TrimSuffix(cleanPath(outPrefix), "/")
	entry = cleanPath(entry)

	for _, key := range meta.Outputs.keys {
		out := meta.Outputs.values[key]
		name := strings.TrimPrefix(cleanPath(key), prefix+"/")

		var input string
		if n := len(out.Inputs); n > 0 {
			input = out.Inputs[n-1]
		}
		m.Files = append(m.Files, File{Name: name, Input: input})

		if out.EntryPoint == "" {
			continue
		}
		if module, ok := routeModuleOf(out.EntryPoint); ok {
			m.Routes[module] = name
			continue
		}
		if cleanPath(out.EntryPoint) == entry {
			m.Entry = name
		}
	}

	if m.Entry == "" && entry != "" {
		return nil, fmt.Errorf("%w: no output for entry %q", ErrBadMetafile, entry)
	}
	return m, nil
}

// routeModuleOf extracts the module path from a virtual route entry point
// such as "browser-route:routes/admin.js?browser".
func routeModuleOf(entryPoint string) (string, bool) {
	p, ok := strings.CutPrefix(entryPoint, browserNamespace+":")
	if !ok {
		return "", false
	}
	return cleanPath(strings.TrimSuffix(p, browserSuffix)), true
}
