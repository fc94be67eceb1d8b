// Command armx86jit loads an ARM ELF binary and runs it under the
// dynamic binary translator (spec §1, §6, C12): parse flags, load the
// image, build a Translator, and transfer control to the guest entry
// point.
package main

import (
	"flag"
	"log"

	"armx86jit/internal/config"
	"armx86jit/internal/loader"
	"armx86jit/internal/translator"
	"armx86jit/util/dbg"
)

func main() {
	cfgPath := flag.String("config", "", "Path to a TOML config file overriding the compiled-in defaults")
	chain := flag.Bool("chain", true, "Enable exit-stub chaining (CALL->JMP rewriting)")
	maxSteps := flag.Uint64("max-steps", 0, "Abort after this many dispatcher callouts; chained jumps are not counted (0 = unlimited)")
	debug := flag.Bool("debug", false, "Enable verbose trace/debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatal("usage: armx86jit [flags] <arm-elf-path>")
	}
	elfPath := flag.Arg(0)

	cfg := config.Default()
	if *cfgPath != "" {
		if err := cfg.LoadFile(*cfgPath); err != nil {
			log.Fatal(err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "chain":
			cfg.Chaining = *chain
		case "max-steps":
			cfg.MaxSteps = *maxSteps
		}
	})
	cfg.Debug = cfg.Debug || *debug
	dbg.SetVerbose(cfg.Debug)

	img, err := loader.Load(elfPath)
	if err != nil {
		log.Fatal(err)
	}
	stackTop, err := loader.MapStack(img, cfg.StackSize)
	if err != nil {
		log.Fatal(err)
	}

	t, err := translator.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer t.Close()

	if err := t.Run(img.EntryAddr, stackTop); err != nil {
		log.Fatal(err)
	}
}
