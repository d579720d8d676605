package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/faucetdb/schemer/internal/server"
)

const banner = `
 ___  ___ _  _ ___ __  __ ___ ___
/ __|/ __| || | __|  \/  | __| _ \
\__ \ (__| __ | _|| |\/| | _||   /
|___/\___|_||_|___|_|  |_|___|_|_\
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the schemer HTTP API",
		Long:  "Start the HTTP server that exposes database, table and column editing for every stored profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			defaults := server.DefaultConfig()
			srvCfg := server.Config{
				Host:            a.cfg.Server.Host,
				Port:            a.cfg.Server.Port,
				ShutdownTimeout: a.cfg.Server.ShutdownDuration(30 * time.Second),
				CORSOrigins:     a.cfg.Server.CORS.Origins,
				CORSMethods:     a.cfg.Server.CORS.Methods,
				RateLimit:       a.cfg.Server.RateLimit,
				MaxBodySize:     a.cfg.Server.BodySizeBytes(defaults.MaxBodySize),
				IDType:          a.cfg.Edit.IDType,
			}
			if len(srvCfg.CORSOrigins) == 0 {
				srvCfg.CORSOrigins = defaults.CORSOrigins
			}
			if len(srvCfg.CORSMethods) == 0 {
				srvCfg.CORSMethods = defaults.CORSMethods
			}

			profiles, err := a.store.ListProfiles(cmd.Context())
			if err != nil {
				a.logger.Warn("failed to list profiles", "error", err)
			}

			fmt.Print(banner)
			fmt.Println()
			fmt.Printf("→ Schemer %s\n", versionString())
			fmt.Printf("→ Listening on http://%s:%d/api/v1\n", srvCfg.Host, srvCfg.Port)
			fmt.Printf("→ Health:     http://%s:%d/healthz\n", srvCfg.Host, srvCfg.Port)
			fmt.Printf("→ Profiles:   %d\n", len(profiles))
			fmt.Println()

			return server.New(srvCfg, a.store, a.bench, a.logger).ListenAndServe()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "P", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "HTTP listen host")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}
