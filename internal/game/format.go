package game

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxLineSize bounds a single vertex record. Records of high-degree vertices
// can be far longer than bufio's default.
const maxLineSize = 64 << 20

// initialMarker designates the start vertex in a vertex record.
const initialMarker = "initial"

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	start    VertexID
	override bool
}

// WithStart forces v to be the start vertex, overriding any "initial" marker
// in the input.
func WithStart(v VertexID) ParseOption {
	return func(o *parseOptions) {
		o.start = v
		o.override = true
	}
}

// Parse reads a game in the text format:
//
//	parity <count>;
//	<id> <priority> <owner> <successor>,<successor>,... ["initial"];
//
// An owner of 0 marks a vertex owned by Player0. The start vertex is the
// vertex marked "initial", or 0 if no vertex is marked.
func Parse(r io.Reader, opts ...ParseOption) (*Game, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	sc := newLineScanner(r)

	header, ok := sc.next()
	if !ok {
		return nil, sc.errOr(fmt.Errorf("%w: missing header", ErrMalformed))
	}
	count, err := parseHeader(header, "parity")
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
	}

	var (
		b     = NewBuilder(count)
		edges = make([][]VertexID, count)
		start VertexID
	)

	for i := 0; i < count; i++ {
		line, ok := sc.next()
		if !ok {
			return nil, sc.errOr(fmt.Errorf("%w: expected %d vertices, got %d", ErrMalformed, count, i))
		}

		rec, err := parseVertexRecord(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
		}
		if err := b.AddVertex(rec.id, rec.priority, rec.owner); err != nil {
			return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
		}
		for _, to := range rec.successors {
			if int(to) >= count {
				return nil, fmt.Errorf("line %d: %w: edge %d -> %d leaves the declared range [0, %d)", sc.lineNo, ErrInconsistent, rec.id, to, count)
			}
		}
		edges[rec.id] = rec.successors
		if rec.initial {
			start = rec.id
		}
	}

	// Edges may point forward to vertices defined on later lines, so they're
	// only added once every vertex is known.
	for from, tos := range edges {
		for _, to := range tos {
			if err := b.AddEdge(VertexID(from), to); err != nil {
				return nil, err
			}
		}
	}

	if o.override {
		start = o.start
	}
	b.SetStart(start)
	return b.Build()
}

// ReadFile parses the game stored at path.
func ReadFile(path string, opts ...ParseOption) (*Game, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g, err := Parse(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

type vertexRecord struct {
	id         VertexID
	priority   int
	owner      Player
	successors []VertexID
	initial    bool
}

func parseVertexRecord(line string) (vertexRecord, error) {
	var rec vertexRecord

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return rec, fmt.Errorf("%w: vertex record needs at least 3 fields, got %d", ErrMalformed, len(fields))
	}

	id, err := parseVertexID(fields[0])
	if err != nil {
		return rec, err
	}
	rec.id = id

	rec.priority, err = strconv.Atoi(fields[1])
	if err != nil {
		return rec, fmt.Errorf("%w: bad priority %q", ErrMalformed, fields[1])
	}

	switch fields[2] {
	case "0":
		rec.owner = Player0
	case "1":
		rec.owner = Player1
	default:
		return rec, fmt.Errorf("%w: bad owner %q", ErrMalformed, fields[2])
	}

	rest := fields[3:]
	// A vertex without successors leaves the edge field empty, so the name
	// may directly follow the owner.
	if len(rest) > 0 && !strings.HasPrefix(rest[0], `"`) && rest[0] != initialMarker {
		for _, s := range strings.Split(rest[0], ",") {
			if s == "" {
				continue
			}
			to, err := parseVertexID(s)
			if err != nil {
				return rec, err
			}
			rec.successors = append(rec.successors, to)
		}
		rest = rest[1:]
	}

	if len(rest) > 0 {
		name := strings.Trim(strings.Join(rest, " "), `"`)
		rec.initial = name == initialMarker
	}
	return rec, nil
}

func parseVertexID(s string) (VertexID, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: bad vertex identifier %q", ErrMalformed, s)
	}
	return VertexID(id), nil
}

// parseHeader parses "<keyword> <count>" or a bare "<count>".
func parseHeader(line, keyword string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) == 2 && fields[0] == keyword {
		fields = fields[1:]
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: bad header %q", ErrMalformed, line)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count < 0 {
		return 0, fmt.Errorf("%w: bad vertex count %q", ErrMalformed, fields[0])
	}
	return count, nil
}

// Write writes g in the text format read by Parse. g must have a contiguous
// identifier space (see Flatten), otherwise the output couldn't be read back.
func Write(w io.Writer, g *Game) error {
	if g.Len() != g.Size() {
		return fmt.Errorf("%w: writing game with sparse identifiers; flatten it first", ErrInconsistent)
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "parity %d;\n", g.Len())

	var succ []string
	g.EachVertex(func(v VertexID) {
		succ = succ[:0]
		for _, to := range g.Out(v) {
			succ = append(succ, strconv.FormatUint(uint64(to), 10))
		}

		fmt.Fprintf(bw, "%d %d %s %s", v, g.Priority(v), g.Owner(v), strings.Join(succ, ","))
		// Readers default to 0, so only a different start needs the marker.
		if v == g.Start() && v != 0 {
			fmt.Fprintf(bw, " %q", initialMarker)
		}
		bw.WriteString(";\n")
	})
	return bw.Flush()
}

// WriteFile writes g to path. The file is written under a temporary name and
// renamed into place, so readers never observe a partially written game.
func WriteFile(path string, g *Game) error {
	return writeFileAtomic(path, func(w io.Writer) error { return Write(w, g) })
}

func writeFileAtomic(path string, write func(w io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := f.Name()

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpName)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// lineScanner returns non-empty lines with surrounding whitespace and the
// trailing record terminator removed.
type lineScanner struct {
	sc     *bufio.Scanner
	lineNo int
}

func newLineScanner(r io.Reader) *lineScanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &lineScanner{sc: sc}
}

func (s *lineScanner) next() (string, bool) {
	for s.sc.Scan() {
		s.lineNo++
		line := strings.TrimSpace(s.sc.Text())
		line = strings.TrimSpace(strings.TrimSuffix(line, ";"))
		if line != "" {
			return line, true
		}
	}
	return "", false
}

// errOr returns the scanner's read error if there was one, and fallback
// otherwise.
func (s *lineScanner) errOr(fallback error) error {
	if err := s.sc.Err(); err != nil {
		return err
	}
	return fallback
}
