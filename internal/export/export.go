// Package export writes candidate subgames to disk.
package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/rfratto/kraam/internal/game"
)

// Options configures how subgames are written.
type Options struct {
	// DOT also writes a Graphviz rendering of every subgame next to it,
	// replacing the .pg extension with .dot.
	DOT bool
}

// Subgame realizes the subgame of g induced by c, renumbers it so its
// identifiers are contiguous and writes it to path.
func Subgame(g *game.Game, c game.Set, path string, o Options) error {
	sub, err := game.Realize(g, c)
	if err != nil {
		return fmt.Errorf("realizing subgame for %s: %w", path, err)
	}
	flat, _ := game.Flatten(sub)

	if err := game.WriteFile(path, flat); err != nil {
		return err
	}
	if o.DOT {
		if err := os.WriteFile(dotPath(path), game.MarshalDOT(flat), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dotPath(path), err)
		}
	}
	return nil
}

func dotPath(path string) string {
	return strings.TrimSuffix(path, ".pg") + ".dot"
}
