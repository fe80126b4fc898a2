package ipfs

import (
	"flag"
	"os"

	"xdao.co/identity/storage"
	"xdao.co/identity/storage/registry"
)

var (
	flagBin  string
	flagRepo string
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:        "ipfs",
		Description: "Local Kubo repo via the ipfs CLI (offline)",
		Usage:       registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBin, "ipfs-bin", "", "ipfs binary (for --backend=ipfs; default: ipfs from PATH)")
			fs.StringVar(&flagRepo, "ipfs-path", "", "IPFS_PATH for the ipfs CLI (for --backend=ipfs)")
		},
		Open: func() (storage.Store, registry.Closer, error) {
			return open(flagBin, flagRepo), nil, nil
		},
		OpenConfig: func(cfg map[string]string) (storage.Store, registry.Closer, error) {
			return open(cfg["ipfs-bin"], cfg["ipfs-path"]), nil, nil
		},
	})
}

func open(bin, repo string) storage.Store {
	opts := Options{Bin: bin}
	if repo != "" {
		opts.Env = append(os.Environ(), "IPFS_PATH="+repo)
	}
	return New(opts)
}
