// Command showcfg prints the effective configuration after env overrides,
// plus the weight file the default model resolves to.
package main

import (
	"fmt"
	"os"

	"transcribe/internal/config"
	"transcribe/internal/models"

	"github.com/pelletier/go-toml/v2"
)

func main() {
	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	out, err := toml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("# %s\n%s", cfg.Paths.ConfigPath, out)
	spec := models.SpecFor(cfg, "")
	fmt.Printf("# model %s -> %s\n", spec, models.NewStore(cfg, nil).Path(spec))
}
