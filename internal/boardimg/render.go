// Package boardimg draws a match position as PNG.
package boardimg

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	squareSize   = 64
	boardSize    = squareSize * 8
	margin       = 24
	headerHeight = 28
)

var (
	lightSquare    = color.RGBA{233, 207, 163, 255}
	darkSquare     = color.RGBA{187, 136, 96, 255}
	lastMoveFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	backgroundFill = color.RGBA{28, 31, 46, 255}
	textColor      = color.RGBA{236, 239, 255, 255}
)

type Options struct {
	// Flip draws the board from the second side's point of view.
	Flip   bool
	Header string
}

// RenderPNG replays moves (UCI) from the initial position and draws the result.
func RenderPNG(movesUCI []string, opts Options) ([]byte, error) {
	game, err := replay(movesUCI)
	if err != nil {
		return nil, err
	}
	board := game.Position().Board()

	width := boardSize + margin*2
	height := boardSize + margin*2 + headerHeight
	origin := image.Point{X: margin, Y: margin + headerHeight}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundFill), image.Point{}, draw.Src)

	for sq := nchess.A1; sq <= nchess.H8; sq++ {
		fill := lightSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 0 {
			fill = darkSquare
		}
		draw.Draw(img, squareRect(sq, origin, opts.Flip), image.NewUniform(fill), image.Point{}, draw.Src)
	}

	if moves := game.Moves(); len(moves) > 0 {
		last := moves[len(moves)-1]
		for _, sq := range []nchess.Square{last.S1(), last.S2()} {
			draw.Draw(img, squareRect(sq, origin, opts.Flip), image.NewUniform(lastMoveFill), image.Point{}, draw.Over)
		}
	}

	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		pimg, err := pieceImage(piece, squareSize)
		if err != nil {
			return nil, err
		}
		draw.Draw(img, squareRect(sq, origin, opts.Flip), pimg, image.Point{}, draw.Over)
	}

	drawLabels(img, origin, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func replay(movesUCI []string) (*nchess.Game, error) {
	game := nchess.NewGame()
	for i, mv := range movesUCI {
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i+1, mv, err)
		}
	}
	return game, nil
}

func squareRect(sq nchess.Square, origin image.Point, flip bool) image.Rectangle {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	if flip {
		col = 7 - col
		row = 7 - row
	}
	x := origin.X + col*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func drawLabels(img *image.RGBA, origin image.Point, opts Options) {
	d := &font.Drawer{Dst: img, Src: image.NewUniform(textColor), Face: basicfont.Face7x13}

	files := "abcdefgh"
	ranks := "87654321"
	if opts.Flip {
		files = "hgfedcba"
		ranks = "12345678"
	}
	for i := 0; i < 8; i++ {
		center := origin.X + i*squareSize + squareSize/2
		drawCentered(d, string(files[i]), center, origin.Y+boardSize+17)
		mid := origin.Y + i*squareSize + squareSize/2 + 5
		drawCentered(d, string(ranks[i]), margin/2, mid)
	}

	if header := strings.TrimSpace(opts.Header); header != "" {
		d.Dot = fixed.P(origin.X, margin+12)
		d.DrawString(header)
	}
}

func drawCentered(d *font.Drawer, text string, centerX, baseline int) {
	w := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}
