// Package wasmdom implements dom.Document on top of the browser document when
// compiled for js/wasm.
package wasmdom
