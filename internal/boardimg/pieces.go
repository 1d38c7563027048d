package boardimg

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Silhouettes on a 100x100 view box.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="50" cy="32" r="13"/>
<path d="M30 85 L70 85 L62 50 L38 50 Z"/>`,
	nchess.Rook: `<path d="M28 85 H72 V75 H66 V40 H72 V20 H62 V28 H55 V20 H45 V28 H38 V20 H28 V40 H34 V75 H28 Z"/>`,
	nchess.Knight: `<path d="M30 85 H72 L68 42 Q62 16 40 20 L26 36 L34 46 L48 40 L32 72 Z"/>`,
	nchess.Bishop: `<circle cx="50" cy="16" r="6"/>
<ellipse cx="50" cy="44" rx="15" ry="21"/>
<path d="M30 85 H70 L64 64 H36 Z"/>`,
	nchess.Queen: `<path d="M26 85 H74 L80 30 L64 55 L50 20 L36 55 L20 30 Z"/>`,
	nchess.King: `<path d="M46 8 H54 V18 H64 V26 H54 V38 H46 V26 H36 V18 H46 Z"/>
<path d="M30 85 H70 L66 42 H34 Z"/>`,
}

func pieceSVG(p nchess.Piece) (string, error) {
	shape, ok := pieceShapes[p.Type()]
	if !ok {
		return "", fmt.Errorf("no shape for piece %v", p)
	}
	fill, stroke := "#f7f3ea", "#1c1c1c"
	if p.Color() == nchess.Black {
		fill, stroke = "#262421", "#e8e2d4"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100" width="100" height="100">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="4" stroke-linejoin="round">`, fill, stroke)
	b.WriteString(shape)
	b.WriteString(`</g></svg>`)
	return b.String(), nil
}

type pieceKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceImage(p nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: p, size: size}
	pieceCacheMu.RLock()
	img, ok := pieceCache[key]
	pieceCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	src, err := pieceSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = rgba
	pieceCacheMu.Unlock()
	return rgba, nil
}
