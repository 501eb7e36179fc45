// Package daemon runs mockwired: a standalone process serving mock
// file profiles on two HTTP planes. The data plane answers mocked
// routes the way an in-test Server would; the admin plane exposes
// health, metrics, captured requests, and profile introspection.
package daemon

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mockwire/mockwire"
	"github.com/mockwire/mockwire/mockfile"
)

const readHeaderTimeout = 5 * time.Second

// Daemon bundles the loaded profile, its transport, and the two HTTP
// planes.
type Daemon struct {
	cfg    *Config
	logger zerolog.Logger

	tr  *mockwire.Transport
	rec *mockwire.Recorder

	profile  string
	profiles []string
}

// New loads the configured mock file and prepares both planes. It
// fails when the file cannot be compiled or the selected profile is
// absent.
func New(cfg *Config, logger zerolog.Logger) (*Daemon, error) {
	sets, err := mockfile.Load(cfg.MockFile)
	if err != nil {
		return nil, err
	}

	set, ok := sets[cfg.Profile]
	if !ok {
		return nil, errors.Errorf("profile %q not found in %s", cfg.Profile, cfg.MockFile)
	}

	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	rec := mockwire.NewRecorder()
	tr := mockwire.NewTransport(set,
		mockwire.WithLogger(logger),
		mockwire.WithRecorder(rec),
	)

	logger.Info().
		Str("mock_file", cfg.MockFile).
		Str("profile", cfg.Profile).
		Int("handlers", set.Len()).
		Msg("profile loaded")

	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		tr:       tr,
		rec:      rec,
		profile:  cfg.Profile,
		profiles: names,
	}, nil
}

func (d *Daemon) dataHandler() http.Handler {
	return requestLogger(d.logger)(d.tr)
}

// Run serves both planes until ctx is canceled or a listener fails,
// then shuts down gracefully within the configured timeout. SIGINT
// and SIGTERM cancel the run.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dataLn, err := net.Listen("tcp", d.cfg.DataAddr())
	if err != nil {
		return errors.Wrap(err, "listen data plane")
	}
	adminLn, err := net.Listen("tcp", d.cfg.AdminAddr())
	if err != nil {
		dataLn.Close()
		return errors.Wrap(err, "listen admin plane")
	}

	dataSrv := &http.Server{Handler: d.dataHandler(), ReadHeaderTimeout: readHeaderTimeout}
	adminSrv := &http.Server{Handler: d.adminRouter(), ReadHeaderTimeout: readHeaderTimeout}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.serve("data", dataSrv, dataLn) })
	g.Go(func() error { return d.serve("admin", adminSrv, adminLn) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.ShutdownTimeout)
		defer cancel()
		derr := dataSrv.Shutdown(shutdownCtx)
		aerr := adminSrv.Shutdown(shutdownCtx)
		if derr != nil {
			return errors.Wrap(derr, "shutdown data plane")
		}
		if aerr != nil {
			return errors.Wrap(aerr, "shutdown admin plane")
		}
		return nil
	})

	err = g.Wait()
	d.logger.Info().Msg("mockwired stopped")
	return err
}

func (d *Daemon) serve(name string, srv *http.Server, ln net.Listener) error {
	d.logger.Info().
		Str("plane", name).
		Str("addr", ln.Addr().String()).
		Msg("listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "%s plane", name)
	}
	return nil
}
