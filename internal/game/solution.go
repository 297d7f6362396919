package game

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Strategy maps a vertex of the winning player to the successor that player
// moves to.
type Strategy map[VertexID]VertexID

// Solution is the output of a winner-determination solver.
type Solution struct {
	// Order holds the vertices in the order their records appeared.
	Order []VertexID
	// Winner holds the winning player of every recorded vertex.
	Winner map[VertexID]Player
	// Strategy holds the recorded strategy edges. Vertices without a recorded
	// successor are absent.
	Strategy Strategy
}

// WinnerAt returns the winner from v. If v has no record, the winner of the
// first record is returned instead; solvers list the start vertex first. ok
// is false when the solution holds no records at all.
func (s *Solution) WinnerAt(v VertexID) (winner Player, ok bool) {
	if p, found := s.Winner[v]; found {
		return p, true
	}
	if len(s.Order) == 0 {
		return Player1, false
	}
	return s.Winner[s.Order[0]], true
}

// ParseSolution reads a solution in the text format:
//
//	paritysol <count>;
//	<id> <winner> [<successor>];
//
// A winner field of "0" means Player0 wins from id, any other value means
// Player1 does.
func ParseSolution(r io.Reader) (*Solution, error) {
	sc := newLineScanner(r)

	header, ok := sc.next()
	if !ok {
		return nil, sc.errOr(fmt.Errorf("%w: missing solution header", ErrMalformed))
	}
	count, err := parseHeader(header, "paritysol")
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
	}

	sol := &Solution{
		Order:    make([]VertexID, 0, count),
		Winner:   make(map[VertexID]Player, count),
		Strategy: make(Strategy),
	}

	for i := 0; i < count; i++ {
		line, ok := sc.next()
		if !ok {
			// Solvers may leave out vertices they didn't decide; stop at the end
			// of the input rather than failing.
			break
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: %w: solution record needs at least 2 fields, got %d", sc.lineNo, ErrMalformed, len(fields))
		}

		v, err := parseVertexID(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
		}
		winner := Player1
		if fields[1] == "0" {
			winner = Player0
		}

		sol.Order = append(sol.Order, v)
		sol.Winner[v] = winner

		if len(fields) >= 3 {
			to, err := parseVertexID(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", sc.lineNo, err)
			}
			sol.Strategy[v] = to
		}
	}

	if err := sc.sc.Err(); err != nil {
		return nil, err
	}
	return sol, nil
}

// ReadSolution parses the solution stored at path.
func ReadSolution(path string) (*Solution, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sol, err := ParseSolution(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sol, nil
}

// WriteSolution writes sol in the format read by ParseSolution.
func WriteSolution(w io.Writer, sol *Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "paritysol %d;\n", len(sol.Order))
	for _, v := range sol.Order {
		fmt.Fprintf(bw, "%d %s", v, sol.Winner[v])
		if to, ok := sol.Strategy[v]; ok {
			fmt.Fprintf(bw, " %d", to)
		}
		bw.WriteString(";\n")
	}
	return bw.Flush()
}

// WriteSolutionFile writes sol to path.
func WriteSolutionFile(path string, sol *Solution) error {
	return writeFileAtomic(path, func(w io.Writer) error { return WriteSolution(w, sol) })
}

// Dominion returns the vertices the winner of g can force play into from the
// start vertex when following strategy: the smallest set holding the start
// vertex that, for every member v, also holds strategy[v] when v has a
// strategy edge and every successor of v otherwise.
func Dominion(g *Game, strategy Strategy) (Set, error) {
	var (
		dom     = NewSet(g.Size())
		badEdge error
	)

	next := func(v VertexID) []VertexID {
		to, ok := strategy[v]
		if !ok {
			return g.Out(v)
		}
		if !g.Has(to) {
			badEdge = fmt.Errorf("%w: strategy edge %d -> %d leaves the game", ErrInconsistent, v, to)
			return nil
		}
		return []VertexID{to}
	}

	_ = Walk(g, []VertexID{g.Start()}, next, func(v VertexID) error {
		dom.Add(v)
		return nil
	})
	if badEdge != nil {
		return Set{}, badEdge
	}
	return dom, nil
}
