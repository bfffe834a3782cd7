package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/withgalaxy/lazyload/pkg/codegen"
)

var (
	codegenOut   string
	codegenChunk string
	codegenWasm  string
)

var codegenCmd = &cobra.Command{
	Use:   "codegen",
	Short: "Print the generated load-script runtime",
	RunE:  runCodegen,
}

func init() {
	rootCmd.AddCommand(codegenCmd)
	codegenCmd.Flags().StringVarP(&codegenOut, "out", "o", "", "write to file instead of stdout")
	codegenCmd.Flags().StringVar(&codegenChunk, "chunk", "", "chunk id the runtime is rendered for")
	codegenCmd.Flags().StringVar(&codegenWasm, "wasm", "", "render the bootstrap for the wasm runtime at this path instead")
}

func runCodegen(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var code string
	if codegenWasm != "" {
		if code, err = codegen.WasmBootstrap(codegenWasm, cfg); err != nil {
			return err
		}
	} else {
		gen := codegen.NewLoadScriptGenerator(cfg, codegen.NewHooks())
		gen.Chunk = codegen.Chunk{ID: codegenChunk}
		code = gen.Generate()
	}
	code += "\n"

	if codegenOut == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), code)
		return err
	}
	if err := os.WriteFile(codegenOut, []byte(code), 0644); err != nil {
		return fmt.Errorf("write %s: %w", codegenOut, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", codegenOut)
	return nil
}
