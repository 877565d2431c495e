// Kona CLI - installs bundles from a store and runs a guest entry method
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/kona/manifest"
	"github.com/chazu/kona/pkg/bundle"
	"github.com/chazu/kona/pkg/nativelib"
	"github.com/chazu/kona/pkg/store"
	"github.com/chazu/kona/vm"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0=errors, higher is chattier)")
	dir := flag.String("C", ".", "Directory to search for kona.toml")
	entry := flag.String("m", "", "Entry override as class name (uses manifest entry method and signature)")
	list := flag.Bool("list", false, "List stored bundles and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: kona [options]\n\n")
		fmt.Fprintf(os.Stderr, "Loads kona.toml, installs the configured bundles and runs the entry method.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kona                   # Run the manifest's entry method\n")
		fmt.Fprintf(os.Stderr, "  kona -m app/Other      # Run the manifest entry on another class\n")
		fmt.Fprintf(os.Stderr, "  kona -list             # Show what the bundle store holds\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	if err := run(*dir, *entry, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(dir, entryOverride string, list bool) error {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no kona.toml found from %s upward", dir)
	}

	st, err := store.Open(m.StorePath())
	if err != nil {
		return err
	}
	defer st.Close()

	if list {
		names, err := st.Names()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	ctx := vm.NewContext()

	if path := m.SystemLibraryPath(); path != "" {
		lib, err := nativelib.OpenPlugin(path)
		if err != nil {
			return err
		}
		ctx.SetSystemLibrary(lib)
	}

	for _, name := range m.Runtime.Bundles {
		data, err := st.Get(name)
		if err != nil {
			return err
		}
		b, err := bundle.Unmarshal(data)
		if err != nil {
			return err
		}
		if err := bundle.Install(ctx, b); err != nil {
			return err
		}
		ctx.Logger().Infof("installed bundle %s (%d classes)", b.Name, len(b.Classes))
	}

	entryClass := m.Runtime.EntryClass
	if entryOverride != "" {
		entryClass = entryOverride
	}
	if entryClass == "" {
		return fmt.Errorf("no entry class configured (set runtime.entry-class or pass -m)")
	}

	k := ctx.Klasses().Lookup(entryClass)
	if k == nil {
		return fmt.Errorf("entry class %s not installed", entryClass)
	}
	em := k.LookupDeclaredMethod(m.Runtime.EntryMethod, m.Runtime.EntrySignature)
	if em == nil {
		return fmt.Errorf("entry method %s.%s%s not declared", entryClass, m.Runtime.EntryMethod, m.Runtime.EntrySignature)
	}
	if !em.IsStatic() {
		return fmt.Errorf("entry method %s must be static", em)
	}

	ret, err := em.InvokeDirect(vm.Void)
	if err != nil {
		return err
	}
	if !ret.IsVoid() {
		fmt.Println(ret)
	}
	return nil
}
