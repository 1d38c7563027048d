// Package rules adapts github.com/corentings/chess/v2 to the small surface the match
// coordinator needs: apply a move, read the side to move, detect the end of the game.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Side is a seat at the board. First moves first (white).
type Side string

const (
	First  Side = "first"
	Second Side = "second"
)

// Color is the historical label of the side.
func (s Side) Color() string {
	switch s {
	case First:
		return "white"
	case Second:
		return "black"
	default:
		return ""
	}
}

var ErrIllegalMove = errors.New("illegal move")

// MoveResult describes an accepted move.
type MoveResult struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	UCI       string `json:"uci"`
	SAN       string `json:"san"`
	Side      Side   `json:"side"`
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	FEN       string `json:"fen"`
}

type OutcomeKind string

const (
	Ongoing   OutcomeKind = ""
	Checkmate OutcomeKind = "checkmate"
	Draw      OutcomeKind = "draw"
)

// Outcome is the terminal state of the game, Kind is Ongoing while play continues.
type Outcome struct {
	Kind   OutcomeKind
	Winner Side
	Method string
}

func (o Outcome) Over() bool { return o.Kind != Ongoing }

// Engine owns one board. It is not safe for concurrent use; the match registry
// serializes access per room.
type Engine struct {
	game  *nchess.Game
	moves []string
}

func New() *Engine {
	return &Engine{game: nchess.NewGame()}
}

// Apply plays a move given in UCI ("e2e4", "e7e8q") or SAN ("Nf3"), UCI first.
func (e *Engine) Apply(notation string) (MoveResult, error) {
	if e.game.Outcome() != nchess.NoOutcome {
		return MoveResult{}, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return MoveResult{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	pos := e.game.Position()
	mover := sideFrom(pos.Turn())
	if err := e.game.PushNotationMove(strings.ToLower(raw), nchess.UCINotation{}, nil); err != nil {
		if err := e.game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
	}
	mv := lastMove(e.game)
	if mv == nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	uci := strings.ToLower(nchess.UCINotation{}.Encode(pos, mv))
	e.moves = append(e.moves, uci)
	e.claimDraws()

	return MoveResult{
		From:      mv.S1().String(),
		To:        mv.S2().String(),
		Promotion: promoLetter(mv.Promo()),
		UCI:       uci,
		SAN:       san,
		Side:      mover,
		Check:     strings.HasSuffix(san, "+") || strings.HasSuffix(san, "#"),
		Checkmate: e.game.Method() == nchess.Checkmate,
		FEN:       e.game.FEN(),
	}, nil
}

// claimDraws applies repetition and fifty-move draws as soon as they become claimable.
func (e *Engine) claimDraws() {
	if e.game.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range e.game.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = e.game.Draw(m)
			return
		}
	}
}

func (e *Engine) Turn() Side { return sideFrom(e.game.Position().Turn()) }

func (e *Engine) FEN() string { return e.game.FEN() }

// MovesUCI returns a copy of the accepted moves in UCI notation.
func (e *Engine) MovesUCI() []string { return append([]string(nil), e.moves...) }

func (e *Engine) Outcome() Outcome {
	switch e.game.Outcome() {
	case nchess.WhiteWon:
		return Outcome{Kind: Checkmate, Winner: First, Method: methodName(e.game.Method())}
	case nchess.BlackWon:
		return Outcome{Kind: Checkmate, Winner: Second, Method: methodName(e.game.Method())}
	case nchess.Draw:
		return Outcome{Kind: Draw, Method: methodName(e.game.Method())}
	default:
		return Outcome{}
	}
}

// Reset returns the board to the initial position.
func (e *Engine) Reset() {
	e.game = nchess.NewGame()
	e.moves = nil
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func sideFrom(c nchess.Color) Side {
	if c == nchess.White {
		return First
	}
	return Second
}

func promoLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}

func methodName(m nchess.Method) string {
	switch m {
	case nchess.Checkmate:
		return "checkmate"
	case nchess.Stalemate:
		return "stalemate"
	case nchess.InsufficientMaterial:
		return "insufficient material"
	case nchess.ThreefoldRepetition:
		return "threefold repetition"
	case nchess.FivefoldRepetition:
		return "fivefold repetition"
	case nchess.FiftyMoveRule:
		return "fifty-move rule"
	case nchess.SeventyFiveMoveRule:
		return "seventy-five-move rule"
	default:
		return "agreement"
	}
}
