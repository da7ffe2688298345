// Grava CLI - the main entry point for running Grava programs
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/grava-lang/grava/compiler"
	"github.com/grava-lang/grava/manifest"
	"github.com/grava-lang/grava/vm"
)

var log = commonlog.GetLogger("grava")

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	trace := flag.Bool("trace", false, "Log each executed instruction")
	loadImage := flag.String("load-image", "", "Load a session image before running")
	saveImage := flag.String("save-image", "", "Save a session image after running")
	noManifest := flag.Bool("no-manifest", false, "Skip loading grava.toml")
	historyN := flag.Int("history", 0, "Print the N most recent history entries and exit")
	replayID := flag.String("replay", "", "Re-evaluate a past session's inputs before running")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: grava [options] [script]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a Grava script, or starts a REPL when no script is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  grava script.gv             # Run a script\n")
		fmt.Fprintf(os.Stderr, "  grava -i                    # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  grava -i -load-image s.img  # Resume a saved session\n")
		fmt.Fprintf(os.Stderr, "  grava -history 10           # Show recent session history\n")
	}
	flag.Parse()

	if *verbose {
		commonlog.Configure(2, nil)
	} else {
		commonlog.Configure(0, nil)
	}

	mf := manifest.Default()
	if !*noManifest {
		found, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading %s: %v\n", manifest.FileName, err)
		} else if found != nil {
			mf = found
			log.Infof("loaded manifest from %s", found.Dir)
		}
	}

	if *historyN > 0 {
		if err := printHistory(mf, *historyN, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	vmInst := vm.NewVM()
	vmInst.UseCompiler(compiler.Compile)
	if *trace || mf.Runtime.Trace {
		vmInst.SetTrace(true)
	}

	if *replayID != "" {
		if err := replayHistory(vmInst, mf, *replayID); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if *loadImage != "" {
		if err := loadImageFile(vmInst, *loadImage); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading image: %v\n", err)
			os.Exit(1)
		}
		log.Infof("loaded image %s", *loadImage)
	}

	exitCode := 0
	script := flag.Arg(0)
	if script == "" || *interactive {
		runREPL(vmInst, mf)
	} else if err := runFile(vmInst, script); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exitCode = 1
	}

	if *saveImage != "" {
		if err := saveImageFile(vmInst, *saveImage); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving image: %v\n", err)
			exitCode = 1
		} else {
			log.Infof("saved image %s", *saveImage)
		}
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// runFile executes a script in batch mode.
func runFile(vmInst *vm.VM, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	if _, err := vmInst.Interpret(string(src)); err != nil {
		return err
	}
	return nil
}

func loadImageFile(vmInst *vm.VM, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return vmInst.LoadImage(f)
}

func saveImageFile(vmInst *vm.VM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := vmInst.SaveImage(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// outcome classifies an Interpret error for the history store.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var ce *compiler.Error
	if errors.As(err, &ce) {
		return "compile_error"
	}
	return "runtime_error"
}
