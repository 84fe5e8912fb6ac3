package main

import (
	"context"
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/phanxgames/prism"
	"github.com/phanxgames/prism/gpu"
)

// viewer implements ebiten.Game. Each Update runs one engine tick on the
// GPU backend; Draw shows the canvas or one screen output scaled to the
// window.
type viewer struct {
	ctx     context.Context
	cli     *cliConfig
	eng     *prism.Engine
	backend *gpu.Backend
	// show is the screen on display; zero shows the canvas.
	show  prism.ScreenID
	ready bool
	err   error
}

var digitKeys = []ebiten.Key{
	ebiten.Key0, ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4,
	ebiten.Key5, ebiten.Key6, ebiten.Key7, ebiten.Key8, ebiten.Key9,
}

func runWindow(ctx context.Context, cli *cliConfig, cfg prism.Config) error {
	backend := gpu.NewBackend(cfg.MaxSurfaceSize, cfg.MeshSubdivision)
	backend.SetDisplayOnly(true)
	eng, err := prism.NewEngine(cfg, prism.Options{Backend: backend})
	if err != nil {
		return err
	}
	defer eng.Close()
	eng.SetDebugMode(cli.debug)

	v := &viewer{ctx: ctx, cli: cli, eng: eng, backend: backend}
	ebiten.SetWindowSize(cfg.Width/2, cfg.Height/2)
	ebiten.SetWindowTitle("prism")
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetTPS(cfg.TargetFPS)
	if err := ebiten.RunGame(v); err != nil && err != ebiten.Termination {
		return err
	}
	if v.err != nil {
		return v.err
	}
	return saveSnapshot(eng, cli.savePath)
}

// Update builds the scene on the first call, since GPU resources need a
// running game loop, then ticks the engine.
func (v *viewer) Update() error {
	if v.ctx.Err() != nil {
		return ebiten.Termination
	}
	if !v.ready {
		v.ready = true
		if err := buildScene(v.ctx, v.eng, v.cli); err != nil {
			v.err = err
			return ebiten.Termination
		}
	}
	for i, k := range digitKeys {
		if inpututil.IsKeyJustPressed(k) {
			v.show = prism.ScreenID(0)
			if i > 0 {
				v.show = v.screenAt(i - 1)
			}
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if err := v.eng.Tick(v.ctx); err != nil {
		prism.Logger().WithError(err).Warn("tick failed")
	}
	return nil
}

// screenAt returns the id of the i-th screen, zero when out of range.
func (v *viewer) screenAt(i int) prism.ScreenID {
	screens := v.eng.Model().Outputs.Screens
	if i < len(screens) {
		return screens[i].ID
	}
	return 0
}

func (v *viewer) Draw(screen *ebiten.Image) {
	img := v.backend.Canvas()
	label := "canvas"
	if v.show != 0 {
		img = v.backend.Screen(v.show)
		label = fmt.Sprintf("screen %d", v.show)
	}
	if img != nil {
		b := img.Bounds()
		sb := screen.Bounds()
		s := min(float64(sb.Dx())/float64(b.Dx()), float64(sb.Dy())/float64(b.Dy()))
		var op ebiten.DrawImageOptions
		op.GeoM.Scale(s, s)
		op.GeoM.Translate((float64(sb.Dx())-float64(b.Dx())*s)/2, (float64(sb.Dy())-float64(b.Dy())*s)/2)
		op.Filter = ebiten.FilterLinear
		screen.DrawImage(img, &op)
	}
	ebitenutil.DebugPrint(screen, fmt.Sprintf("%s  tick %d  %.0f FPS  [0] canvas [1-9] screens",
		label, v.eng.Ticks(), ebiten.ActualFPS()))
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return outsideWidth, outsideHeight
}
