package codegen

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/scripttag"
)

func NewLoadScriptGenerator(cfg *config.Config, hooks *Hooks) *LoadScriptGenerator {
	return &LoadScriptGenerator{
		Output:   cfg.Output,
		Features: cfg.Features,
		Globals:  DefaultGlobals,
		Hooks:    hooks,
	}
}

// LoadScript renders the browser runtime for cfg with the default globals.
func LoadScript(cfg *config.Config, hooks *Hooks) string {
	return NewLoadScriptGenerator(cfg, hooks).Generate()
}

func asString(lines ...string) string {
	kept := lines[:0:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func indent(lines ...string) string {
	s := asString(lines...)
	if s == "" {
		return ""
	}
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// createScriptCode is the element setup that runs before a new script is
// attached; it is what the createScript hook receives.
func (g *LoadScriptGenerator) createScriptCode() string {
	out := g.Output
	src := "url"
	if g.Features.CreateScriptURL {
		src = g.Globals.CreateScriptURL + "(url)"
	}

	var crossOrigin string
	switch out.CrossOriginLoading {
	case config.CrossOriginNone:
	case config.CrossOriginUseCredentials:
		crossOrigin = `script.crossOrigin = "use-credentials";`
	default:
		crossOrigin = asString(
			"if (script.src.indexOf(window.location.origin + '/') !== 0) {",
			indent("script.crossOrigin = "+quote(string(out.CrossOriginLoading))+";"),
			"}",
		)
	}

	var scriptType, charset, identity, priority, external string
	if out.ScriptType != "" {
		scriptType = "script.type = " + quote(out.ScriptType) + ";"
	}
	if out.Charset {
		charset = "script.charset = 'utf-8';"
	}
	if out.UniqueName != "" {
		identity = fmt.Sprintf("script.setAttribute(%q, dataPrefix + key);", scripttag.AttrIdentity)
	}
	if g.Features.FetchPriority {
		priority = asString(
			"if(fetchPriority) {",
			indent(fmt.Sprintf("script.setAttribute(%q, fetchPriority);", scripttag.AttrFetchPriority)),
			"}",
		)
	}
	if g.Features.ExternalSupport {
		external = fmt.Sprintf("script.setAttribute(%q, \"true\");", scripttag.AttrExternal)
	}

	return asString(
		"script = document.createElement('script');",
		scriptType,
		charset,
		"script.timeout = "+strconv.FormatFloat(out.TimeoutSeconds(), 'f', -1, 64)+";",
		"if ("+g.Globals.ScriptNonce+") {",
		indent(`script.setAttribute("nonce", `+g.Globals.ScriptNonce+");"),
		"}",
		identity,
		priority,
		"script.src = "+src+";",
		crossOrigin,
		external,
	)
}

// Generate renders the load-script runtime module.
func (g *LoadScriptGenerator) Generate() string {
	out := g.Output
	fn := g.Globals.LoadScript

	params := "url, done, key, chunkId"
	if g.Features.FetchPriority {
		params += ", fetchPriority"
	}

	prefix := "// identity attribute is not used as build has no uniqueName"
	match := `s.getAttribute("src") == url`
	if out.UniqueName != "" {
		prefix = "var dataPrefix = " + quote(out.UniqueName+":") + ";"
		match += fmt.Sprintf(" || s.getAttribute(%q) == dataPrefix + key", scripttag.AttrIdentity)
	}

	body := asString(
		"if(inProgress[url]) { inProgress[url].push(done); return; }",
		"var script, needAttach;",
		"if(key !== undefined) {",
		indent(
			`var scripts = document.getElementsByTagName("script");`,
			"for(var i = 0; i < scripts.length; i++) {",
			indent(
				"var s = scripts[i];",
				"if("+match+") { script = s; break; }",
			),
			"}",
		),
		"}",
		"if(!script) {",
		indent(
			"needAttach = true;",
			g.Hooks.CreateScript(g.createScriptCode(), g.Chunk),
		),
		"}",
		"inProgress[url] = [done];",
		"var onScriptComplete = function(prev, event) {",
		indent(
			"script.onerror = script.onload = null;",
			"clearTimeout(timeout);",
			"var doneFns = inProgress[url];",
			"delete inProgress[url];",
			"if(needAttach && event.type !== 'load') script.parentNode && script.parentNode.removeChild(script);",
			fmt.Sprintf("%s.loadedScripts && (%s.loadedScripts[url] = event.type);", fn, fn),
			"doneFns && doneFns.forEach(function(fn) { return fn(event); });",
			"if(prev) return prev(event);",
		),
		"};",
		fmt.Sprintf("var timeout = setTimeout(onScriptComplete.bind(null, undefined, { type: 'timeout', target: script }), %d);", out.ChunkLoadTimeout),
		"script.onerror = onScriptComplete.bind(null, script.onerror);",
		"script.onload = onScriptComplete.bind(null, script.onload);",
		"needAttach && document.head.appendChild(script);",
	)

	var external string
	if g.Features.ExternalSupport {
		external = asString(
			"// resolve every dependency of a lazily compiled module before activating it",
			fn+".withExternalDependencies = function(deps, callback) {",
			indent(
				"var loads = deps.map(function(dep) {",
				indent(
					"return new Promise(function(resolve, reject) {",
					indent(fn+"(dep, function(event) { event.type === 'load' ? resolve(event) : reject(event); }, undefined, undefined);"),
					"});",
				),
				"});",
				"return Promise.all(loads).then(callback);",
			),
			"};",
			fn+".loadedScripts = {};",
		)
	}

	return asString(
		"var inProgress = {};",
		prefix,
		"// loadScript function to load a script via script tag",
		fn+" = function("+params+") {",
		indent(body),
		"};",
		external,
	)
}
