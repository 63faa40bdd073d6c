// Package sourcemap implements the source map v3 mappings codec used when
// composing per-module maps into a bundle map.
package sourcemap

import (
	"encoding/json"
	"strings"

	"go.trai.ch/zerr"
)

// Map is a source map v3 document.
type Map struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Segment is one decoded mapping segment with absolute values.
// Lines and columns are zero-based, the convention of the mappings field.
type Segment struct {
	GenCol    int
	SrcIndex  int
	SrcLine   int
	SrcCol    int
	NameIndex int
	HasSource bool
	HasName   bool
}

// Parse decodes a source map JSON document.
func Parse(data string) (*Map, error) {
	var m Map
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, zerr.Wrap(err, "failed to parse source map")
	}
	if m.Version != 3 {
		return nil, zerr.With(zerr.New("unsupported source map version"), "version", m.Version)
	}
	return &m, nil
}

// JSON serializes the map.
func (m *Map) JSON() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", zerr.Wrap(err, "failed to serialize source map")
	}
	return string(data), nil
}

// DecodeMappings expands the mappings field into absolute segments per
// generated line.
func (m *Map) DecodeMappings() ([][]Segment, error) {
	var (
		lines    [][]Segment
		current  []Segment
		srcIndex int
		srcLine  int
		srcCol   int
		nameIdx  int
	)

	s := m.Mappings
	pos := 0
	genCol := 0
	for pos <= len(s) {
		if pos == len(s) || s[pos] == ';' {
			lines = append(lines, current)
			current = nil
			genCol = 0
			if pos == len(s) {
				break
			}
			pos++
			continue
		}
		if s[pos] == ',' {
			pos++
			continue
		}

		seg := Segment{}
		var ok bool
		var delta int

		delta, pos, ok = decodeVLQ(s, pos)
		if !ok {
			return nil, zerr.New("malformed source map mappings")
		}
		genCol += delta
		seg.GenCol = genCol

		if pos < len(s) && s[pos] != ',' && s[pos] != ';' {
			seg.HasSource = true
			if delta, pos, ok = decodeVLQ(s, pos); !ok {
				return nil, zerr.New("malformed source map mappings")
			}
			srcIndex += delta
			seg.SrcIndex = srcIndex

			if delta, pos, ok = decodeVLQ(s, pos); !ok {
				return nil, zerr.New("malformed source map mappings")
			}
			srcLine += delta
			seg.SrcLine = srcLine

			if delta, pos, ok = decodeVLQ(s, pos); !ok {
				return nil, zerr.New("malformed source map mappings")
			}
			srcCol += delta
			seg.SrcCol = srcCol

			if pos < len(s) && s[pos] != ',' && s[pos] != ';' {
				seg.HasName = true
				if delta, pos, ok = decodeVLQ(s, pos); !ok {
					return nil, zerr.New("malformed source map mappings")
				}
				nameIdx += delta
				seg.NameIndex = nameIdx
			}
		}
		current = append(current, seg)
	}
	return lines, nil
}

// EncodeMappings converts absolute segments per generated line back into
// the relative VLQ mappings string.
func EncodeMappings(lines [][]Segment) string {
	var b strings.Builder
	prevSrcIndex, prevSrcLine, prevSrcCol, prevName := 0, 0, 0, 0

	for i, line := range lines {
		if i > 0 {
			b.WriteByte(';')
		}
		prevGenCol := 0
		for j, seg := range line {
			if j > 0 {
				b.WriteByte(',')
			}
			encodeVLQ(&b, seg.GenCol-prevGenCol)
			prevGenCol = seg.GenCol
			if !seg.HasSource {
				continue
			}
			encodeVLQ(&b, seg.SrcIndex-prevSrcIndex)
			prevSrcIndex = seg.SrcIndex
			encodeVLQ(&b, seg.SrcLine-prevSrcLine)
			prevSrcLine = seg.SrcLine
			encodeVLQ(&b, seg.SrcCol-prevSrcCol)
			prevSrcCol = seg.SrcCol
			if seg.HasName {
				encodeVLQ(&b, seg.NameIndex-prevName)
				prevName = seg.NameIndex
			}
		}
	}
	return b.String()
}

// Generator accumulates absolute segments and produces a composed Map.
type Generator struct {
	file           string
	sources        []string
	sourceIndex    map[string]int
	sourcesContent map[int]*string
	lines          [][]Segment
}

// NewGenerator creates a Generator for the given output file name.
func NewGenerator(file string) *Generator {
	return &Generator{
		file:           file,
		sourceIndex:    make(map[string]int),
		sourcesContent: make(map[int]*string),
	}
}

// AddSource registers a source file and returns its index. Content may be
// nil when sources are not inlined.
func (g *Generator) AddSource(path string, content *string) int {
	if idx, ok := g.sourceIndex[path]; ok {
		return idx
	}
	idx := len(g.sources)
	g.sources = append(g.sources, path)
	g.sourceIndex[path] = idx
	if content != nil {
		g.sourcesContent[idx] = content
	}
	return idx
}

// AddSegment records a mapping from a generated position to a source
// position. All positions are zero-based.
func (g *Generator) AddSegment(genLine, genCol, srcIndex, srcLine, srcCol int) {
	for len(g.lines) <= genLine {
		g.lines = append(g.lines, nil)
	}
	g.lines[genLine] = append(g.lines[genLine], Segment{
		GenCol:    genCol,
		SrcIndex:  srcIndex,
		SrcLine:   srcLine,
		SrcCol:    srcCol,
		HasSource: true,
	})
}

// Generate produces the composed map.
func (g *Generator) Generate() *Map {
	m := &Map{
		Version:  3,
		File:     g.file,
		Sources:  g.sources,
		Names:    []string{},
		Mappings: EncodeMappings(g.lines),
	}
	if len(g.sourcesContent) > 0 {
		m.SourcesContent = make([]*string, len(g.sources))
		for idx, content := range g.sourcesContent {
			m.SourcesContent[idx] = content
		}
	}
	return m
}
