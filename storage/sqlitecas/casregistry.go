package sqlitecas

import (
	"flag"
	"fmt"

	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"
)

var (
	flagPath     string
	flagPoolSize int
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:          "sqlite",
		Description:   "SQLite CAS (single database file)",
		Usage:         casregistry.UsageCLI | casregistry.UsageDaemon,
		Transactional: true,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagPath, "sqlite-path", "", "SQLite database file (for --backend=sqlite)")
			fs.IntVar(&flagPoolSize, "sqlite-pool-size", 0, "Connection pool size; 0 picks a default")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagPath == "" {
				return nil, nil, fmt.Errorf("missing --sqlite-path")
			}
			cas, err := Open(flagPath, Options{PoolSize: flagPoolSize})
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}
