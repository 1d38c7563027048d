package archive

import (
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/cheese-match-server/internal/match"
)

// SANMoves replays UCI moves from the initial position and returns them in SAN.
func SANMoves(movesUCI []string) ([]string, error) {
	game := nchess.NewGame()
	out := make([]string, 0, len(movesUCI))
	for i, raw := range movesUCI {
		uci := strings.ToLower(strings.TrimSpace(raw))
		pos := game.Position()
		mv, err := nchess.UCINotation{}.Decode(pos, uci)
		if err != nil {
			return nil, fmt.Errorf("decode move %d (%s): %w", i+1, raw, err)
		}
		out = append(out, nchess.AlgebraicNotation{}.Encode(pos, mv))
		if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %d (%s): %w", i+1, raw, err)
		}
	}
	return out, nil
}

// BuildPGN renders headers and numbered SAN moves.
func BuildPGN(g match.FinishedGame, san []string) string {
	result := g.Result
	if result == "" {
		result = "*"
	}
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}

	var b strings.Builder
	b.WriteString("[Event \"Match\"]\n")
	fmt.Fprintf(&b, "[Site \"room %s\"]\n", sanitizePGN(g.RoomID))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[Round \"%d\"]\n", g.Round)
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(g.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(g.Black))
	if m := strings.TrimSpace(g.Method); m != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(m))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(san); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(san[i]))
		if i+1 < len(san) {
			b.WriteString(strings.TrimSpace(san[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
