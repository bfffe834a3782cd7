package codegen

import "github.com/withgalaxy/lazyload/pkg/config"

// Chunk identifies the chunk a runtime module is rendered for.
type Chunk struct {
	ID   string
	Name string
}

// Globals names the runtime properties the generated code reads and assigns.
type Globals struct {
	LoadScript      string
	ScriptNonce     string
	CreateScriptURL string
}

var DefaultGlobals = Globals{
	LoadScript:      "__lazyload_require__.l",
	ScriptNonce:     "__lazyload_require__.nc",
	CreateScriptURL: "__lazyload_require__.tu",
}

type LoadScriptGenerator struct {
	Output   config.OutputConfig
	Features config.FeaturesConfig
	Globals  Globals
	Hooks    *Hooks
	Chunk    Chunk
}
