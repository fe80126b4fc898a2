package memory

import (
	"flag"

	"xdao.co/identity/storage"
	"xdao.co/identity/storage/registry"
)

func init() {
	registry.MustRegister(registry.Backend{
		Name:          "memory",
		Description:   "In-process store (contents are lost on exit)",
		Usage:         registry.UsageCLI | registry.UsageDaemon,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.Store, registry.Closer, error) {
			return New(), nil, nil
		},
		OpenConfig: func(map[string]string) (storage.Store, registry.Closer, error) {
			return New(), nil, nil
		},
	})
}
