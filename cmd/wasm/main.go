//go:build js && wasm

// Command wasm exposes a camera rule editor to the browser as the global
// tripwireEditor object. Pointer events go in, draw commands come out, and
// save talks to the rule service.
package main

import (
	"context"
	"errors"
	"sync"
	"syscall/js"

	"github.com/inamate/tripwire/internal/bridge"
	"github.com/inamate/tripwire/internal/client"
	"github.com/inamate/tripwire/internal/editor"
	"github.com/inamate/tripwire/internal/geometry"
	"github.com/inamate/tripwire/internal/render"
	"github.com/inamate/tripwire/internal/rules"
)

var (
	b        = bridge.New()
	renderer = render.NewRenderer(render.DefaultStyle())

	clientMu sync.Mutex
	api      = client.New("")
)

func main() {
	obj := js.Global().Get("Object").New()

	// --- Commands (frontend → editor) ---
	obj.Set("configure", js.FuncOf(configure))
	obj.Set("open", js.FuncOf(open))
	obj.Set("setMode", js.FuncOf(setMode))
	obj.Set("pointerDown", js.FuncOf(pointer(func(p geometry.Point) editor.Event { return editor.PointerDown{At: p} })))
	obj.Set("pointerMove", js.FuncOf(pointer(func(p geometry.Point) editor.Event { return editor.PointerMove{At: p} })))
	obj.Set("pointerUp", js.FuncOf(pointer(func(p geometry.Point) editor.Event { return editor.PointerUp{At: p} })))
	obj.Set("click", js.FuncOf(pointer(func(p geometry.Point) editor.Event { return editor.Click{At: p} })))
	obj.Set("pointerLeave", js.FuncOf(pointerLeave))
	obj.Set("reset", js.FuncOf(reset))
	obj.Set("resize", js.FuncOf(resize))
	obj.Set("onRedraw", js.FuncOf(onRedraw))
	obj.Set("save", js.FuncOf(save))

	// --- Queries (frontend ← editor) ---
	obj.Set("render", js.FuncOf(renderCommands))
	obj.Set("state", js.FuncOf(state))

	js.Global().Set("tripwireEditor", obj)
	js.Global().Set("tripwireWasmReady", js.ValueOf(true))

	// Keep Go runtime alive
	select {}
}

func errorResult(err error) interface{} {
	return js.ValueOf(map[string]interface{}{"error": err.Error()})
}

// withSession runs fn under the bridge lock with the open session. A redraw
// raised by fn is delivered after the lock is released.
func withSession(fn func(s *rules.Session) interface{}) interface{} {
	v, err := b.Do(func(s *rules.Session) any { return fn(s) })
	if err != nil {
		return errorResult(err)
	}
	return v
}

// configure(baseURL, token)
func configure(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(errors.New("missing base URL"))
	}
	var opts []client.Option
	if len(args) > 1 && args[1].Type() == js.TypeString {
		opts = append(opts, client.WithToken(args[1].String()))
	}
	clientMu.Lock()
	api = client.New(args[0].String(), opts...)
	clientMu.Unlock()
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// open(cameraId, width, height) → Promise<state>
func open(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult(errors.New("open(cameraId, width, height)"))
	}
	cameraID := args[0].String()
	size := geometry.Sz(args[1].Float(), args[2].Float())

	return promise(func() (interface{}, error) {
		clientMu.Lock()
		c := api
		clientMu.Unlock()

		s, err := rules.Open(context.Background(), c, cameraID, editor.ModePolygon, size)
		if err != nil {
			return nil, err
		}
		b.Attach(s)
		return withSession(stateOf), nil
	})
}

func setMode(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult(errors.New("missing mode"))
	}
	mode, err := editor.ParseMode(args[0].String())
	if err != nil {
		return errorResult(err)
	}
	return withSession(func(s *rules.Session) interface{} {
		s.Editor().SetMode(mode)
		return stateOf(s)
	})
}

func pointer(build func(geometry.Point) editor.Event) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if len(args) < 2 {
			return errorResult(errors.New("missing x, y"))
		}
		ev := build(geometry.Pt(args[0].Float(), args[1].Float()))
		return withSession(func(s *rules.Session) interface{} {
			return effectResult(s.Editor().Handle(ev))
		})
	}
}

func pointerLeave(this js.Value, args []js.Value) interface{} {
	return withSession(func(s *rules.Session) interface{} {
		return effectResult(s.Editor().Handle(editor.PointerLeave{}))
	})
}

func reset(this js.Value, args []js.Value) interface{} {
	return withSession(func(s *rules.Session) interface{} {
		return effectResult(s.Editor().Handle(editor.Reset{}))
	})
}

// resize(width, height) rescales the working shape to the new surface.
func resize(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult(errors.New("missing width, height"))
	}
	size := geometry.Sz(args[0].Float(), args[1].Float())
	return withSession(func(s *rules.Session) interface{} {
		if err := s.Resize(size); err != nil {
			return errorResult(err)
		}
		return stateOf(s)
	})
}

// onRedraw(fn) registers the page's redraw hook. fn may call render() and
// state() directly.
func onRedraw(this js.Value, args []js.Value) interface{} {
	if len(args) == 0 || args[0].Type() != js.TypeFunction {
		b.OnRedraw(nil)
		return nil
	}
	fn := args[0]
	b.OnRedraw(func() { fn.Invoke() })
	return nil
}

// render() → JSON draw commands for the working shape.
func renderCommands(this js.Value, args []js.Value) interface{} {
	return withSession(func(s *rules.Session) interface{} {
		ed := s.Editor()
		out, err := render.DrawCommandsToJSON(renderer.Commands(ed.Mode(), ed.Points()))
		if err != nil {
			return errorResult(err)
		}
		return js.ValueOf(out)
	})
}

func state(this js.Value, args []js.Value) interface{} {
	return withSession(func(s *rules.Session) interface{} {
		return stateOf(s)
	})
}

// save() → Promise<{ok, phase, persisted, error}>. Failures resolve with
// the failed phase so the page can say whether the shape was stored.
func save(this js.Value, args []js.Value) interface{} {
	var (
		s   *rules.Session
		ch  <-chan rules.SaveResult
		err error
	)
	if _, notOpen := b.Do(func(cur *rules.Session) any {
		s = cur
		ch, err = cur.SaveAsync(context.Background())
		return nil
	}); notOpen != nil {
		return errorResult(notOpen)
	}

	return promise(func() (interface{}, error) {
		if err != nil {
			phase, _ := rules.PhaseOf(err)
			return map[string]interface{}{
				"ok":        false,
				"phase":     string(phase),
				"persisted": false,
				"error":     err.Error(),
			}, nil
		}
		res := <-ch

		applied := b.Apply(s, res)

		out := map[string]interface{}{
			"ok":        res.Activated(),
			"phase":     string(res.Phase()),
			"persisted": res.Persisted(),
			"stale":     !applied,
		}
		if res.Err != nil {
			out["error"] = res.Err.Error()
		}
		return out, nil
	})
}

func effectResult(e editor.Effect) interface{} {
	return js.ValueOf(map[string]interface{}{"redraw": e == editor.EffectRedraw})
}

func stateOf(s *rules.Session) interface{} {
	ed := s.Editor()
	st := ed.State()
	points := make([]interface{}, len(st.Points))
	for i, p := range st.Points {
		points[i] = map[string]interface{}{"x": p.X, "y": p.Y}
	}
	missing := make([]interface{}, 0, 2)
	for _, m := range s.Rule().Missing() {
		missing = append(missing, m)
	}
	return js.ValueOf(map[string]interface{}{
		"cameraId": s.CameraID(),
		"mode":     ed.Mode().String(),
		"points":   points,
		"dragging": st.Drag,
		"missing":  missing,
		"ready":    s.Rule().Ready(),
	})
}

// promise runs fn on its own goroutine; network calls must not block the
// JS event loop.
func promise(fn func() (interface{}, error)) js.Value {
	executor := js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		resolve, reject := args[0], args[1]
		go func() {
			v, err := fn()
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(js.ValueOf(v))
		}()
		return nil
	})
	p := js.Global().Get("Promise").New(executor)
	executor.Release()
	return p
}
