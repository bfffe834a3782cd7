package codegen

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/withgalaxy/lazyload/pkg/config"
)

// WasmBootstrap renders the script that hands cfg to the lazyload-wasm
// runtime and starts it from wasmPath. wasm_exec.js must already be loaded.
func WasmBootstrap(wasmPath string, cfg *config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encode runtime config: %w", err)
	}

	return fmt.Sprintf(`(function() {
	window.__lazyloadConfig = %s;
	if (window.lazyload) return;
	var go = new Go();
	WebAssembly.instantiateStreaming(fetch(%s), go.importObject).then(function(result) {
		go.run(result.instance);
	}).catch(function(e) {
		console.error('[lazyload] runtime failed to start:', e);
	});
})();`, quote(string(data)), quote(wasmPath)), nil
}
