package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/identity/boundary"
	"xdao.co/identity/cidutil"
	"xdao.co/identity/compliance"
	"xdao.co/identity/identifier"
	"xdao.co/identity/identity"
	"xdao.co/identity/keys"
	"xdao.co/identity/storage"
	"xdao.co/identity/storage/bundle"
	"xdao.co/identity/storage/registry"
	"xdao.co/identity/storage/storeconfig"

	_ "xdao.co/identity/storage/grpcstore"
	_ "xdao.co/identity/storage/ipfs"
	_ "xdao.co/identity/storage/localfs"
	_ "xdao.co/identity/storage/memory"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "new":
		return cmdNew(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "encode":
		return cmdEncode(args[1:], out, errOut)
	case "decode":
		return cmdDecode(args[1:], out, errOut)
	case "cid":
		return cmdCID(args[1:], out, errOut)
	case "balance":
		return cmdBalance(args[1:], out, errOut)
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "backends":
		return cmdBackends(out)
	case "wallet":
		return cmdWallet(args[1:], out, errOut)
	case "sign":
		return cmdSign(args[1:], out, errOut)
	case "verify":
		return cmdVerify(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "identityctl: build, inspect, encode and store identities")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  identityctl new (--id <base58> | --outpoint <hex>) [--balance N] [--revision N] [--protocol-version N] [--wallet <name> [--keys N] [--key-type eddsa|bls]]")
	fmt.Fprintln(w, "  identityctl inspect [--mode permissive|strict] <file>")
	fmt.Fprintln(w, "  identityctl encode [--mode permissive|strict] [--out <file>] <file>")
	fmt.Fprintln(w, "  identityctl decode [--hex] <file>")
	fmt.Fprintln(w, "  identityctl cid [--mode permissive|strict] <file>")
	fmt.Fprintln(w, "  identityctl balance (--increase N | --reduce N | --set N) <file>")
	fmt.Fprintln(w, "  identityctl put [--backend <name> | --store-config <yaml>] [backend flags] <file>")
	fmt.Fprintln(w, "  identityctl get [--backend <name> | --store-config <yaml>] [backend flags] <cid>")
	fmt.Fprintln(w, "  identityctl export [store flags] --out <file.tar> <cid>...")
	fmt.Fprintln(w, "  identityctl import [store flags] [--allow-unknown] <file.tar>")
	fmt.Fprintln(w, "  identityctl backends")
	fmt.Fprintln(w, "  identityctl wallet init --name <name> [--mnemonic <words>] [--passphrase <p>] [--force]")
	fmt.Fprintln(w, "  identityctl wallet list")
	fmt.Fprintln(w, "  identityctl sign --wallet <name> [--key-id N] [--key-type eddsa|bls] <message-file>")
	fmt.Fprintln(w, "  identityctl verify --key-id N [--pub <hex>] --sig <hex> <identity-file> <message-file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - <file> may be '-' for stdin; JSON and binary input are detected automatically")
	fmt.Fprintln(w, "  - identities are printed as JSON text (base58 id, base64 byte fields)")
	fmt.Fprintln(w, "  - wallets live under ~/.xdao/identity/wallets unless --keystore is set")
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// loadIdentity reads JSON text or the binary form from path.
func loadIdentity(path string, mode compliance.Mode) (boundary.Adapter, error) {
	b, err := readInput(path)
	if err != nil {
		return boundary.Adapter{}, err
	}
	if trimmed := bytes.TrimSpace(b); len(trimmed) > 0 && trimmed[0] == '{' {
		return boundary.From(string(trimmed), boundary.WithMode(mode))
	}
	return boundary.FromBuffer(b, boundary.WithMode(mode))
}

func modeFlag(fs *flag.FlagSet) *string {
	return fs.String("mode", compliance.Permissive.String(), "Input compliance mode: permissive|strict")
}

// parseOneInput parses fs and returns the single positional argument.
func parseOneInput(fs *flag.FlagSet, args []string, usage string, errOut io.Writer) (string, bool) {
	if err := fs.Parse(args); err != nil {
		return "", false
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(errOut, "usage: identityctl %s\n", usage)
		return "", false
	}
	return fs.Arg(0), true
}

func printErr(w io.Writer, prefix string, err error) {
	if rule := identity.RuleID(err); rule != "" {
		fmt.Fprintf(w, "%s: %v (%s)\n", prefix, err, rule)
		return
	}
	fmt.Fprintf(w, "%s: %v\n", prefix, err)
}

func printIdentity(w io.Writer, a boundary.Adapter) {
	_, _ = fmt.Fprintln(w, a.String())
}

func cmdNew(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var idStr string
	var outPointHex string
	var balance uint64
	var revision uint64
	var protocolVersion uint64
	var wallet string
	var keystoreDir string
	var keyCount int
	var keyType string

	fs.StringVar(&idStr, "id", "", "Identity id (base58, 32 bytes)")
	fs.StringVar(&outPointHex, "outpoint", "", "Derive the id from an asset lock out point (hex)")
	fs.Uint64Var(&balance, "balance", 0, "Initial balance")
	fs.Uint64Var(&revision, "revision", 0, "Revision")
	fs.Uint64Var(&protocolVersion, "protocol-version", uint64(identity.CurrentProtocolVersion), "Protocol version")
	fs.StringVar(&wallet, "wallet", "", "Derive public keys from this wallet (see 'identityctl wallet init')")
	fs.StringVar(&keystoreDir, "keystore", "", "Wallet directory (default ~/.xdao/identity/wallets)")
	fs.IntVar(&keyCount, "keys", 1, "Number of keys to derive with --wallet")
	fs.StringVar(&keyType, "key-type", "eddsa", "Derived key type: eddsa|bls")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if (idStr == "") == (outPointHex == "") {
		fmt.Fprintln(errOut, "exactly one of --id or --outpoint is required")
		return 2
	}
	if protocolVersion > math.MaxUint32 {
		fmt.Fprintln(errOut, "--protocol-version does not fit in 32 bits")
		return 2
	}
	if outPointHex != "" {
		op, err := hex.DecodeString(strings.TrimPrefix(outPointHex, "0x"))
		if err != nil {
			fmt.Fprintf(errOut, "invalid --outpoint: %v\n", err)
			return 2
		}
		idStr = identifier.FromOutPoint(op).String()
	}

	publicKeys := []any{}
	if wallet != "" {
		typ, err := parseKeyType(keyType)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --key-type: %v\n", err)
			return 2
		}
		if keyCount < 1 {
			fmt.Fprintln(errOut, "--keys must be at least 1")
			return 2
		}
		ks, err := keys.OpenKeyStore(keystoreDir)
		if err != nil {
			fmt.Fprintf(errOut, "keys: %v\n", err)
			return 1
		}
		seed, err := ks.Seed(wallet)
		if err != nil {
			fmt.Fprintf(errOut, "wallet: %v\n", err)
			return 1
		}
		records, err := keys.DeriveRecords(seed, typ, keyCount)
		if err != nil {
			fmt.Fprintf(errOut, "derive keys: %v\n", err)
			return 1
		}
		for _, r := range records {
			publicKeys = append(publicKeys, r)
		}
	}

	a, err := boundary.New(map[string]any{
		"protocolVersion": protocolVersion,
		"id":              idStr,
		"publicKeys":      publicKeys,
		"balance":         balance,
		"revision":        revision,
	})
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	printIdentity(out, a)
	return 0
}

func parseKeyType(s string) (identity.KeyType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eddsa", "ed25519":
		return identity.KeyTypeEdDSA25519Hash160, nil
	case "bls":
		return identity.KeyTypeBLS12381, nil
	default:
		return 0, fmt.Errorf("unsupported key type %q", s)
	}
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	modeStr := modeFlag(fs)
	path, ok := parseOneInput(fs, args, "inspect [--mode permissive|strict] <file>", errOut)
	if !ok {
		return 2
	}
	mode, err := compliance.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}
	a, err := loadIdentity(path, mode)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	id, err := a.CID()
	if err != nil {
		printErr(errOut, "cid", err)
		return 1
	}

	fmt.Fprintf(out, "id:               %s\n", a.ID())
	fmt.Fprintf(out, "protocol version: %d\n", a.ProtocolVersion())
	fmt.Fprintf(out, "balance:          %d\n", a.Balance())
	fmt.Fprintf(out, "revision:         %d\n", a.Revision())
	fmt.Fprintf(out, "cid:              %s\n", id)
	pks := a.Identity().PublicKeys()
	fmt.Fprintf(out, "public keys:      %d\n", len(pks))
	for _, k := range pks {
		fmt.Fprintf(out, "  [%d] %s %s %s %s", k.ID, k.Type, k.Purpose, k.SecurityLevel, hex.EncodeToString(k.Data))
		if k.ReadOnly {
			fmt.Fprint(out, " read-only")
		}
		if k.DisabledAt != nil {
			fmt.Fprintf(out, " disabled-at=%d", *k.DisabledAt)
		}
		fmt.Fprintln(out)
	}
	if p, ok := a.AssetLockProof(); ok {
		switch p.Type {
		case identity.InstantAssetLockProof:
			fmt.Fprintf(out, "asset lock proof: %s, output %d\n", p.Type, p.OutputIndex)
		default:
			fmt.Fprintf(out, "asset lock proof: %s, core height %d, out point %s\n", p.Type, p.CoreChainLockedHeight, hex.EncodeToString(p.OutPoint))
		}
	}
	if m, ok := a.Metadata(); ok {
		fmt.Fprintf(out, "metadata:         height %d, core height %d, time %d ms, protocol %d\n",
			m.BlockHeight, m.CoreChainLockedHeight, m.TimeMs, m.ProtocolVersion)
	}
	return 0
}

func cmdEncode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	modeStr := modeFlag(fs)
	outPath := fs.String("out", "", "Write raw bytes to this file instead of hex to stdout")
	path, ok := parseOneInput(fs, args, "encode [--mode permissive|strict] [--out <file>] <file>", errOut)
	if !ok {
		return 2
	}
	mode, err := compliance.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}
	a, err := loadIdentity(path, mode)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	buf, err := a.ToBuffer()
	if err != nil {
		printErr(errOut, "encode", err)
		return 1
	}
	if *outPath != "" {
		if err := os.WriteFile(*outPath, buf, 0o644); err != nil {
			fmt.Fprintf(errOut, "write %s: %v\n", *outPath, err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(out, hex.EncodeToString(buf))
	return 0
}

func cmdDecode(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(errOut)
	isHex := fs.Bool("hex", false, "Input is hex text rather than raw bytes")
	path, ok := parseOneInput(fs, args, "decode [--hex] <file>", errOut)
	if !ok {
		return 2
	}
	b, err := readInput(path)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	if *isHex {
		if b, err = hex.DecodeString(strings.TrimSpace(string(b))); err != nil {
			fmt.Fprintf(errOut, "invalid hex: %v\n", err)
			return 1
		}
	}
	a, err := boundary.FromBuffer(b)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	printIdentity(out, a)
	return 0
}

func cmdCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	modeStr := modeFlag(fs)
	path, ok := parseOneInput(fs, args, "cid [--mode permissive|strict] <file>", errOut)
	if !ok {
		return 2
	}
	mode, err := compliance.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}
	a, err := loadIdentity(path, mode)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	id, err := a.CID()
	if err != nil {
		printErr(errOut, "cid", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

type optionalUint struct {
	set bool
	v   uint64
}

func (o *optionalUint) String() string {
	if !o.set {
		return ""
	}
	return fmt.Sprint(o.v)
}

func (o *optionalUint) Set(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("not an unsigned integer: %q", s)
	}
	o.set, o.v = true, v
	return nil
}

func cmdBalance(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("balance", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var increase, reduce, set optionalUint
	fs.Var(&increase, "increase", "Add N to the balance")
	fs.Var(&reduce, "reduce", "Subtract N from the balance")
	fs.Var(&set, "set", "Replace the balance with N")
	path, ok := parseOneInput(fs, args, "balance (--increase N | --reduce N | --set N) <file>", errOut)
	if !ok {
		return 2
	}
	n := 0
	for _, o := range []optionalUint{increase, reduce, set} {
		if o.set {
			n++
		}
	}
	if n != 1 {
		fmt.Fprintln(errOut, "exactly one of --increase, --reduce or --set is required")
		return 2
	}

	a, err := loadIdentity(path, compliance.Permissive)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	switch {
	case increase.set:
		a, err = a.IncreaseBalance(increase.v)
	case reduce.set:
		a, err = a.ReduceBalance(reduce.v)
	default:
		a = a.SetBalance(set.v)
	}
	if err != nil {
		printErr(errOut, "balance", err)
		return 1
	}
	printIdentity(out, a)
	return 0
}

// storeFlags registers the store selection flags plus every CLI backend's flags.
type storeFlags struct {
	backend     string
	storeConfig string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.backend, "backend", "localfs", "Store backend name (see 'identityctl backends')")
	fs.StringVar(&s.storeConfig, "store-config", "", "YAML store config; --backend then names the preferred backend")
	registry.RegisterFlags(fs, registry.UsageCLI)
}

func (s *storeFlags) open(fs *flag.FlagSet) (storage.Store, registry.Closer, error) {
	if s.storeConfig == "" {
		return registry.Open(s.backend, registry.UsageCLI)
	}
	cfg, err := storeconfig.LoadFile(s.storeConfig)
	if err != nil {
		return nil, nil, err
	}
	preferred := ""
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "backend" {
			preferred = s.backend
		}
	})
	return cfg.Open(registry.UsageCLI, preferred)
}

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	modeStr := modeFlag(fs)
	path, ok := parseOneInput(fs, args, "put [--backend <name> | --store-config <yaml>] [backend flags] <file>", errOut)
	if !ok {
		return 2
	}
	mode, err := compliance.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}
	a, err := loadIdentity(path, mode)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}

	st, closeFn, err := sf.open(fs)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	id, err := storage.Identities{Store: st}.Save(context.Background(), a.Identity())
	if err != nil {
		fmt.Fprintf(errOut, "put: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	cidStr, ok := parseOneInput(fs, args, "get [--backend <name> | --store-config <yaml>] [backend flags] <cid>", errOut)
	if !ok {
		return 2
	}
	id, err := cidutil.Parse(cidStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid cid: %v\n", err)
		return 2
	}

	st, closeFn, err := sf.open(fs)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	ident, err := storage.Identities{Store: st}.Load(context.Background(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Fprintf(errOut, "not found: %s\n", id)
			return 1
		}
		printErr(errOut, "get", err)
		return 1
	}
	printIdentity(out, boundary.Wrap(ident))
	return 0
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	outPath := fs.String("out", "", "Bundle file to write")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outPath == "" || fs.NArg() == 0 {
		fmt.Fprintln(errOut, "usage: identityctl export [store flags] --out <file.tar> <cid>...")
		return 2
	}
	ids := make([]cid.Cid, 0, fs.NArg())
	for _, s := range fs.Args() {
		id, err := cidutil.Parse(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid cid %q: %v\n", s, err)
			return 2
		}
		ids = append(ids, id)
	}

	st, closeFn, err := sf.open(fs)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	var buf bytes.Buffer
	if err := bundle.ExportIdentities(context.Background(), &buf, st, ids); err != nil {
		printErr(errOut, "export", err)
		return 1
	}
	if err := os.WriteFile(*outPath, buf.Bytes(), 0o644); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", *outPath, err)
		return 1
	}
	_, _ = fmt.Fprintf(out, "exported %d identities to %s\n", len(ids), *outPath)
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var sf storeFlags
	sf.register(fs)
	allowUnknown := fs.Bool("allow-unknown", false, "Skip unknown archive entries instead of failing")
	path, ok := parseOneInput(fs, args, "import [store flags] [--allow-unknown] <file.tar>", errOut)
	if !ok {
		return 2
	}

	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", path, err)
		return 1
	}
	defer f.Close()

	st, closeFn, err := sf.open(fs)
	if err != nil {
		fmt.Fprintf(errOut, "open store: %v\n", err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	res, err := bundle.Import(context.Background(), f, st, bundle.ImportOptions{
		IgnoreUnknown:     *allowUnknown,
		RequireIdentities: true,
	})
	if err != nil {
		printErr(errOut, "import", err)
		return 1
	}
	for _, id := range res.Blocks {
		_, _ = fmt.Fprintln(out, id)
	}
	return 0
}

func cmdBackends(out io.Writer) int {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(out, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
	}
	return 0
}

func cmdWallet(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: identityctl wallet <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: init, list")
		return 2
	}
	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("wallet init", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var name, mnemonic, passphrase, keystoreDir string
		var force bool
		fs.StringVar(&name, "name", "", "Wallet name")
		fs.StringVar(&mnemonic, "mnemonic", "", "BIP-39 mnemonic (generated when empty)")
		fs.StringVar(&passphrase, "passphrase", "", "Optional BIP-39 passphrase")
		fs.StringVar(&keystoreDir, "keystore", "", "Wallet directory (default ~/.xdao/identity/wallets)")
		fs.BoolVar(&force, "force", false, "Overwrite an existing wallet")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if name == "" {
			fmt.Fprintln(errOut, "missing --name")
			return 2
		}
		if mnemonic == "" {
			var err error
			if mnemonic, err = keys.NewMnemonic(); err != nil {
				fmt.Fprintf(errOut, "generate mnemonic: %v\n", err)
				return 1
			}
			fmt.Fprintf(errOut, "Mnemonic (write it down): %s\n", mnemonic)
		}
		ks, err := keys.OpenKeyStore(keystoreDir)
		if err != nil {
			fmt.Fprintf(errOut, "keys: %v\n", err)
			return 1
		}
		path, err := ks.Create(name, mnemonic, passphrase, force)
		if err != nil {
			fmt.Fprintf(errOut, "wallet init: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, path)
		return 0
	case "list":
		fs := flag.NewFlagSet("wallet list", flag.ContinueOnError)
		fs.SetOutput(errOut)
		keystoreDir := fs.String("keystore", "", "Wallet directory (default ~/.xdao/identity/wallets)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		ks, err := keys.OpenKeyStore(*keystoreDir)
		if err != nil {
			fmt.Fprintf(errOut, "keys: %v\n", err)
			return 1
		}
		names, err := ks.List()
		if err != nil {
			fmt.Fprintf(errOut, "wallet list: %v\n", err)
			return 1
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(out, n)
		}
		return 0
	default:
		fmt.Fprintf(errOut, "unknown wallet subcommand: %s\n", args[0])
		return 2
	}
}

func cmdSign(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var wallet, keystoreDir, keyType string
	var keyID uint64
	fs.StringVar(&wallet, "wallet", "", "Wallet holding the signing seed")
	fs.StringVar(&keystoreDir, "keystore", "", "Wallet directory (default ~/.xdao/identity/wallets)")
	fs.Uint64Var(&keyID, "key-id", 0, "Key id to derive")
	fs.StringVar(&keyType, "key-type", "eddsa", "Key type: eddsa|bls")
	path, ok := parseOneInput(fs, args, "sign --wallet <name> [--key-id N] [--key-type eddsa|bls] <message-file>", errOut)
	if !ok {
		return 2
	}
	if wallet == "" {
		fmt.Fprintln(errOut, "missing --wallet")
		return 2
	}
	if keyID > math.MaxUint32 {
		fmt.Fprintln(errOut, "--key-id does not fit in 32 bits")
		return 2
	}
	typ, err := parseKeyType(keyType)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --key-type: %v\n", err)
		return 2
	}
	msg, err := readInput(path)
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	ks, err := keys.OpenKeyStore(keystoreDir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	seed, err := ks.Seed(wallet)
	if err != nil {
		fmt.Fprintf(errOut, "wallet: %v\n", err)
		return 1
	}

	var pub, sig []byte
	switch typ {
	case identity.KeyTypeBLS12381:
		pk, sk, err := keys.BLSKeyPair(seed, identity.KeyID(keyID))
		if err != nil {
			fmt.Fprintf(errOut, "derive key: %v\n", err)
			return 1
		}
		if pub, err = pk.MarshalBinary(); err != nil {
			fmt.Fprintf(errOut, "encode public key: %v\n", err)
			return 1
		}
		sig = keys.SignBLS(msg, sk)
	default:
		pk, sk, err := keys.Ed25519KeyPair(seed, identity.KeyID(keyID))
		if err != nil {
			fmt.Fprintf(errOut, "derive key: %v\n", err)
			return 1
		}
		pub, sig = pk, keys.SignEd25519SHA256(msg, sk)
	}
	_, _ = fmt.Fprintf(out, "public-key %s\n", hex.EncodeToString(pub))
	_, _ = fmt.Fprintf(out, "signature %s\n", hex.EncodeToString(sig))
	return 0
}

func cmdVerify(args []string, out io.Writer, errOut io.Writer) int {
	const usage = "usage: identityctl verify --key-id N [--pub <hex>] --sig <hex> <identity-file> <message-file>"
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var keyID optionalUint
	var pubHex, sigHex string
	fs.Var(&keyID, "key-id", "Id of the identity key that signed")
	fs.StringVar(&pubHex, "pub", "", "Full public key (hex); required for eddsa keys, which store only a hash")
	fs.StringVar(&sigHex, "sig", "", "Signature (hex)")
	modeStr := modeFlag(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 2 || !keyID.set || sigHex == "" {
		fmt.Fprintln(errOut, usage)
		return 2
	}
	if keyID.v > math.MaxUint32 {
		fmt.Fprintln(errOut, "--key-id does not fit in 32 bits")
		return 2
	}
	mode, err := compliance.ParseMode(*modeStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --mode: %v\n", err)
		return 2
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		fmt.Fprintf(errOut, "invalid --sig: %v\n", err)
		return 2
	}
	var pub []byte
	if pubHex != "" {
		if pub, err = hex.DecodeString(strings.TrimPrefix(pubHex, "0x")); err != nil {
			fmt.Fprintf(errOut, "invalid --pub: %v\n", err)
			return 2
		}
	}

	a, err := loadIdentity(fs.Arg(0), mode)
	if err != nil {
		printErr(errOut, "invalid identity", err)
		return 1
	}
	msg, err := readInput(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(errOut, "read: %v\n", err)
		return 1
	}
	record, ok := a.PublicKeyByID(uint32(keyID.v))
	if !ok {
		fmt.Fprintf(errOut, "identity has no key with id %d\n", keyID.v)
		return 1
	}
	if err := keys.Verify(record, pub, msg, sig); err != nil {
		fmt.Fprintf(errOut, "verify: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "ok")
	return 0
}
