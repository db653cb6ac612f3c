// Command ledview previews a shader on a simulated LED strip. Every
// frame it evaluates the shader once per LED in both numeric modes —
// the original float program and the fixed-point rewrite — and renders
// the two strips stacked so precision drift is visible directly.
//
// The shader is called as fn(pos, head, outbuf) writing an RGB triple:
// pos is the LED's position along the strip in [0,1), head advances
// with time and wraps at 1.
//
// Usage:
//
//	ledview [options] [input.fx]
//
// Without an input file a built-in moving-pulse shader is shown.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"math"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"golang.org/x/image/font/basicfont"

	"github.com/light-player/fxc/exec"
	"github.com/light-player/fxc/fix32"
	"github.com/light-player/fxc/hostvm"
	"github.com/light-player/fxc/ir"
)

var (
	ledCount = flag.Int("leds", 64, "number of LEDs on the strip")
	ledSize  = flag.Int("size", 12, "pixel size of one LED")
	fnName   = flag.String("fn", "shade", "shader entry function")
	speed    = flag.Float64("speed", 0.4, "head revolutions per second")
)

// defaultShader is a pulse moving along the strip: brightness falls off
// linearly with distance from the head, with the tail tinted by position.
const defaultShader = `
func shade(f32, f32, outbuf) {
block0(pos: f32, head: f32, buf: u32):
    d = fsub pos, head
    nd = fneg d
    ad = fmax d, nd
    k = fconst 4.0
    fall = fmul ad, k
    one = fconst 1.0
    raw = fsub one, fall
    zero = fconst 0.0
    b = fmax raw, zero
    g = fmul b, pos
    ib = fsub one, b
    dim = fconst 0.25
    blue = fmul ib, dim
    store buf, b, 0
    store buf, g, 4
    store buf, blue, 8
    return
}
`

func main() {
	flag.Parse()

	source := defaultShader
	file := "<builtin>"
	if flag.NArg() > 0 {
		file = flag.Arg(0)
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
			os.Exit(1)
		}
		source = string(data)
	}

	v, err := newViewer(file, source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	w, h := v.Layout(0, 0)
	ebiten.SetWindowSize(w*2, h*2)
	ebiten.SetWindowTitle("ledview - " + file)
	if err := ebiten.RunGame(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// viewer runs the two programs side by side and owns the frame state.
type viewer struct {
	fn     *ir.Function
	floats exec.Executable
	fixeds exec.Executable

	frame      uint64
	floatStrip []color.RGBA
	fixedStrip []color.RGBA
	maxDrift   float64 // worst channel divergence seen this frame
}

func newViewer(file, source string) (*viewer, error) {
	floatMod, err := ir.ParseModuleFile(file, source)
	if err != nil {
		return nil, err
	}
	fn := floatMod.FunctionByName(*fnName)
	if fn == nil {
		return nil, fmt.Errorf("no function %q", *fnName)
	}
	fixedMod, err := fix32.Transform(floatMod)
	if err != nil {
		return nil, err
	}
	floats, err := hostvm.Compile(floatMod, exec.ModeFloat)
	if err != nil {
		return nil, err
	}
	fixeds, err := hostvm.Compile(fixedMod, exec.ModeFixed)
	if err != nil {
		return nil, err
	}
	return &viewer{
		fn:         fn,
		floats:     floats,
		fixeds:     fixeds,
		floatStrip: make([]color.RGBA, *ledCount),
		fixedStrip: make([]color.RGBA, *ledCount),
	}, nil
}

// Update implements ebiten.Game. Both strips are re-evaluated every
// frame; a shader error terminates the viewer.
func (v *viewer) Update() error {
	t := float64(v.frame) / 60 * *speed
	head := math.Mod(t, 1)
	v.frame++

	v.maxDrift = 0
	for i := range v.floatStrip {
		pos := (float64(i) + 0.5) / float64(len(v.floatStrip))

		fl, err := v.shadeLED(v.floats, pos, head)
		if err != nil {
			return err
		}
		fx, err := v.shadeLED(v.fixeds, pos, head)
		if err != nil {
			return err
		}
		for c := 0; c < 3; c++ {
			if d := math.Abs(fl[c] - fx[c]); d > v.maxDrift {
				v.maxDrift = d
			}
		}
		v.floatStrip[i] = toRGBA(fl)
		v.fixedStrip[i] = toRGBA(fx)
	}
	return nil
}

func (v *viewer) shadeLED(prog exec.Executable, pos, head float64) ([3]float64, error) {
	args, err := exec.EncodeArgs(prog.Mode(), v.fn.Sig.Params, []float64{pos, head})
	if err != nil {
		return [3]float64{}, err
	}
	words, err := prog.CallVec(v.fn.Name, 3, args)
	if err != nil {
		return [3]float64{}, err
	}
	var rgb [3]float64
	for c, w := range words {
		rgb[c] = exec.DecodeScalar(prog.Mode(), ir.KindFloat32, w)
	}
	return rgb, nil
}

func toRGBA(rgb [3]float64) color.RGBA {
	return color.RGBA{channel(rgb[0]), channel(rgb[1]), channel(rgb[2]), 255}
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(v, 0), 1) * 255))
}

const (
	marginX = 8
	labelH  = 16
	stripH  = 24
)

// Draw implements ebiten.Game.
func (v *viewer) Draw(screen *ebiten.Image) {
	face := basicfont.Face7x13
	labelColor := color.RGBA{190, 190, 190, 255}

	drawStrip := func(strip []color.RGBA, label string, y int) {
		text.Draw(screen, label, face, marginX, y+12, labelColor)
		for i, c := range strip {
			x := marginX + i**ledSize
			ebitenutil.DrawRect(screen, float64(x), float64(y+labelH),
				float64(*ledSize-1), float64(stripH), c)
		}
	}
	drawStrip(v.floatStrip, "float", 0)
	drawStrip(v.fixedStrip, "fixed (Q16.16)", labelH+stripH+4)

	status := fmt.Sprintf("max drift %.5f", v.maxDrift)
	text.Draw(screen, status, face, marginX, 2*(labelH+stripH)+14, labelColor)
}

// Layout implements ebiten.Game.
func (v *viewer) Layout(_, _ int) (int, int) {
	return 2*marginX + *ledCount**ledSize, 2*(labelH+stripH) + 24
}
