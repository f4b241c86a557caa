package assets

import (
	"encoding/json"
	"sort"
)

// Metafile represents the esbuild metafile JSON structure
type Metafile struct {
	Inputs  map[string]MetafileInput  `json:"inputs"`
	Outputs map[string]MetafileOutput `json:"outputs"`
}

// MetafileInput represents an input file in the metafile
type MetafileInput struct {
	Bytes   int              `json:"bytes"`
	Imports []MetafileImport `json:"imports"`
	Format  string           `json:"format,omitempty"`
}

// MetafileImport represents an import in the metafile
type MetafileImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
	Original string `json:"original,omitempty"`
}

// MetafileOutput represents an output file in the metafile
type MetafileOutput struct {
	Bytes      int                     `json:"bytes"`
	Inputs     map[string]InputContrib `json:"inputs"`
	Imports    []MetafileImport        `json:"imports"`
	Exports    []string                `json:"exports"`
	EntryPoint string                  `json:"entryPoint,omitempty"`
	CSSBundle  string                  `json:"cssBundle,omitempty"`
}

// InputContrib represents the contribution of an input to an output
type InputContrib struct {
	BytesInOutput int `json:"bytesInOutput"`
}

// OutputSize is the size of one bundled file.
type OutputSize struct {
	Path  string
	Bytes int
}

// ParseMetafile decodes the metafile esbuild returns from a build.
func ParseMetafile(data string) (*Metafile, error) {
	meta := &Metafile{}
	if data == "" {
		return meta, nil
	}
	if err := json.Unmarshal([]byte(data), meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Sizes returns the output sizes, largest first.
func (m *Metafile) Sizes() []OutputSize {
	sizes := make([]OutputSize, 0, len(m.Outputs))
	for path, out := range m.Outputs {
		sizes = append(sizes, OutputSize{Path: path, Bytes: out.Bytes})
	}
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].Bytes != sizes[j].Bytes {
			return sizes[i].Bytes > sizes[j].Bytes
		}
		return sizes[i].Path < sizes[j].Path
	})
	return sizes
}

// TotalBytes sums the size of every output.
func (m *Metafile) TotalBytes() int {
	total := 0
	for _, out := range m.Outputs {
		total += out.Bytes
	}
	return total
}
