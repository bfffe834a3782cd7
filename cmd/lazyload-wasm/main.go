//go:build js && wasm
// +build js,wasm

// Command lazyload-wasm installs the load-script runtime as the global
// "lazyload" object. The configuration is read from the string in
// globalThis.__lazyloadConfig (YAML or JSON) when present.
package main

import (
	"context"
	"syscall/js"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/dom"
	"github.com/withgalaxy/lazyload/pkg/keepalive"
	"github.com/withgalaxy/lazyload/pkg/loader"
	"github.com/withgalaxy/lazyload/pkg/logging"
	"github.com/withgalaxy/lazyload/pkg/scripttag"
	"github.com/withgalaxy/lazyload/pkg/wasmdom"
)

func loadConfig() *config.Config {
	raw := js.Global().Get("__lazyloadConfig")
	if raw.Type() != js.TypeString {
		return config.DefaultConfig()
	}
	cfg, err := config.Parse([]byte(raw.String()), ".yaml")
	if err != nil {
		js.Global().Get("console").Call("error", "lazyload: "+err.Error())
		return config.DefaultConfig()
	}
	return cfg
}

func optString(args []js.Value, i int) string {
	if i >= len(args) || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

func eventValue(ev dom.Event) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("type", string(ev.Type))
	if ev.Message != "" {
		obj.Set("message", ev.Message)
	}
	if el, ok := ev.Target.(*wasmdom.Element); ok {
		obj.Set("target", el.Value())
	}
	return obj
}

func newPromise(run func(resolve, reject js.Value)) js.Value {
	var executor js.Func
	executor = js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		executor.Release()
		resolve, reject := args[0], args[1]
		go run(resolve, reject)
		return nil
	})
	return js.Global().Get("Promise").New(executor)
}

func main() {
	cfg := loadConfig()
	cfg.Log.NoColor = true
	log := logging.NewWithWriter(consoleWriter{}, cfg.Log)

	doc := wasmdom.New()
	var opts []loader.Option
	opts = append(opts, loader.WithLogger(log))
	if cfg.Features.CreateScriptURL {
		if policy := wasmdom.TrustedScriptURL("lazyload"); policy != nil {
			opts = append(opts, loader.WithScriptURLPolicy(policy))
		}
	}
	rt := loader.New(cfg, doc, opts...)
	ka := keepalive.NewClient(cfg.KeepAlive, keepalive.WithLogger(log))

	api := js.Global().Get("Object").New()

	// loadScript(url, done, key?, chunkId?, fetchPriority?)
	api.Set("loadScript", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		url, done := args[0].String(), args[1]
		var lo []loader.LoadOption
		if key := optString(args, 2); key != "" {
			lo = append(lo, loader.WithKey(key))
		}
		if id := optString(args, 3); id != "" {
			lo = append(lo, loader.WithChunkID(id))
		}
		if p := scripttag.FetchPriority(optString(args, 4)); p.Valid() {
			lo = append(lo, loader.WithFetchPriority(p))
		}
		rt.Load(url, func(ev dom.Event) {
			done.Invoke(eventValue(ev))
		}, lo...)
		return nil
	}))

	// withExternalDependencies(deps, callback) -> Promise
	api.Set("withExternalDependencies", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		deps := make([]string, args[0].Length())
		for i := range deps {
			deps[i] = args[0].Index(i).String()
		}
		callback := args[1]
		return newPromise(func(resolve, reject js.Value) {
			var result js.Value
			err := rt.LoadExternalDependencies(context.Background(), deps, func() {
				if callback.Type() == js.TypeFunction {
					result = callback.Invoke()
				}
			})
			if err != nil {
				reject.Invoke(js.Global().Get("Error").New(err.Error()))
				return
			}
			resolve.Invoke(result)
		})
	}))

	api.Set("loadedScripts", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		out := js.Global().Get("Object").New()
		for url, st := range rt.LoadedScripts().Snapshot() {
			out.Set(url, string(st.Status))
		}
		return out
	}))

	// keepAlive({data, active, module: {hot}, onError, onUpdate}) -> cleanup
	api.Set("keepAlive", js.FuncOf(func(this js.Value, args []js.Value) interface{} {
		o := args[0]
		onError, onUpdate := o.Get("onError"), o.Get("onUpdate")
		opts := keepalive.Options{
			Data:   o.Get("data").String(),
			Active: o.Get("active").Truthy(),
			Module: keepalive.Module{Hot: o.Get("module").Truthy() && o.Get("module").Get("hot").Truthy()},
		}
		if onError.Type() == js.TypeFunction {
			opts.OnError = func(err error) {
				onError.Invoke(js.Global().Get("Error").New(err.Error()))
			}
		}
		if onUpdate.Type() == js.TypeFunction {
			opts.OnUpdate = func(u keepalive.Update) {
				modules := make([]interface{}, len(u.Modules))
				for i, m := range u.Modules {
					modules[i] = m
				}
				onUpdate.Invoke(map[string]interface{}{
					"type":    u.Type,
					"message": u.Message,
					"modules": modules,
				})
			}
		}

		cleanup, err := ka.KeepAlive(opts)
		if err != nil {
			js.Global().Get("console").Call("error", "lazyload: "+err.Error())
			return js.FuncOf(func(this js.Value, args []js.Value) interface{} { return nil })
		}
		return js.FuncOf(func(this js.Value, args []js.Value) interface{} {
			cleanup()
			return nil
		})
	}))

	js.Global().Set("lazyload", api)
	select {}
}

type consoleWriter struct{}

func (consoleWriter) Write(p []byte) (int, error) {
	js.Global().Get("console").Call("log", string(p))
	return len(p), nil
}
