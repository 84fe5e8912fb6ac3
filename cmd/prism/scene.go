package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/phanxgames/prism"
)

// apply submits cmd and ticks the engine until it has been applied. It is
// used while nothing else drives the engine.
func apply(ctx context.Context, eng *prism.Engine, cmd prism.Command) (uint32, error) {
	done := eng.Submit(cmd)
	for {
		select {
		case r := <-done:
			if r.Err != nil {
				return 0, fmt.Errorf("%T: %w", cmd, r.Err)
			}
			return r.ID, nil
		default:
		}
		if err := eng.Tick(ctx); err != nil {
			return 0, err
		}
	}
}

// demoScene builds two layers and two overlapping projector screens:
//
//	layer 1: SMPTE bars
//	layer 2: a spinning checker added on top at half opacity
//	screens: left and right halves of the canvas, overlapping by overlap,
//	         edge blended across the overlap
func demoScene(ctx context.Context, eng *prism.Engine, overlap float64) error {
	cfg := eng.Config()
	w, h := float64(cfg.Width), float64(cfg.Height)

	bars, err := addLayer(ctx, eng, "bars", prism.ClipSource{Kind: prism.SourceGenerator, Pattern: prism.PatternBars})
	if err != nil {
		return err
	}
	checker, err := addLayer(ctx, eng, "checker", prism.ClipSource{Kind: prism.SourceGenerator, Pattern: prism.PatternChecker})
	if err != nil {
		return err
	}
	add := prism.BlendAdd
	zero := 0.0
	if _, err := apply(ctx, eng, prism.SetLayerProps{Layer: checker, Props: prism.LayerProps{Blend: &add, Opacity: &zero}}); err != nil {
		return err
	}
	if _, err := apply(ctx, eng, prism.RampLayerOpacity{Layer: checker, To: 0.5, Duration: 2, Easing: "in-out-sine"}); err != nil {
		return err
	}
	id, err := apply(ctx, eng, prism.AddEffect{Layer: checker, Type: "transform", Index: -1})
	if err != nil {
		return err
	}
	if _, err := apply(ctx, eng, prism.SetParameter{
		Layer: checker, Effect: prism.EffectID(id), Name: "spin", Value: prism.FloatValue(0.1),
	}); err != nil {
		return err
	}
	prism.Logger().WithFields(logrus.Fields{"bars": bars, "checker": checker}).Debug("demo layers ready")

	// Each projector covers half the canvas plus half the overlap.
	ov := overlap * w
	half := w/2 + ov/2
	sw, sh := int(half), int(h)
	blend := prism.EdgeBlendRegion{Enabled: true, Width: ov / half, Gamma: 2.2}
	for i, name := range []string{"left", "right"} {
		sid, err := apply(ctx, eng, prism.AddScreen{Name: name, Width: sw, Height: sh})
		if err != nil {
			return err
		}
		screen := prism.ScreenID(sid)
		slice, err := firstSlice(eng, screen)
		if err != nil {
			return err
		}
		in := prism.Rect{X: float64(i) * (w - half), Width: half, Height: h}
		if _, err := apply(ctx, eng, prism.SetSliceInput{Screen: screen, Slice: slice, Input: prism.Composition, Rect: &in}); err != nil {
			return err
		}
		if ov <= 0 {
			continue
		}
		edge := prism.EdgeRight
		if i == 1 {
			edge = prism.EdgeLeft
		}
		if _, err := apply(ctx, eng, prism.SetEdgeBlendRegion{Screen: screen, Slice: slice, Edge: edge, Region: blend}); err != nil {
			return err
		}
	}
	return nil
}

func addLayer(ctx context.Context, eng *prism.Engine, name string, src prism.ClipSource) (prism.LayerID, error) {
	id, err := apply(ctx, eng, prism.AddLayer{Name: name, Index: -1})
	if err != nil {
		return 0, err
	}
	layer := prism.LayerID(id)
	if _, err := apply(ctx, eng, prism.AssignClip{Layer: layer, Cell: prism.ClipCell{Name: name, Source: src}}); err != nil {
		return 0, err
	}
	if _, err := apply(ctx, eng, prism.TriggerClip{Layer: layer, Policy: &prism.Cut}); err != nil {
		return 0, err
	}
	return layer, nil
}

func firstSlice(eng *prism.Engine, id prism.ScreenID) (prism.SliceID, error) {
	sc, err := eng.Model().Outputs.Screen(id)
	if err != nil {
		return 0, err
	}
	return sc.Slices[0].ID, nil
}
