package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"gorm.io/gorm"

	"github.com/aloqahq/aloqa/internal/config"
	"github.com/aloqahq/aloqa/internal/directory"
)

// Daemon is the main mediation process. It connects to a chat platform
// via an Adapter, pumps inbound events through the Router, and fires the
// daily digest.
type Daemon struct {
	db       *gorm.DB
	cfg      *config.Config
	dir      *directory.Store
	adapter  Adapter
	notifier *Notifier
	out      io.Writer
	logger   *log.Logger
}

// DaemonOpts holds parameters for creating a new Daemon.
type DaemonOpts struct {
	DB        *gorm.DB
	Config    *config.Config
	Directory *directory.Store
	Adapter   Adapter
	Out       io.Writer // defaults to os.Stdout
}

// NewDaemon creates a Daemon with the given options.
func NewDaemon(opts DaemonOpts) (*Daemon, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("engine: db is required")
	}
	if opts.Config == nil {
		return nil, fmt.Errorf("engine: config is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("engine: directory is required")
	}
	if opts.Adapter == nil {
		return nil, fmt.Errorf("engine: adapter is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Daemon{
		db:       opts.DB,
		cfg:      opts.Config,
		dir:      opts.Directory,
		adapter:  opts.Adapter,
		notifier: NewNotifier(opts.Adapter, out),
		out:      out,
		logger:   log.New(out, "", log.LstdFlags),
	}, nil
}

// Run starts the daemon. It connects the adapter, builds the router, and
// blocks until the context is cancelled. Each inbound event is handled
// on its own goroutine; the router serializes events per identity.
func (d *Daemon) Run(ctx context.Context) error {
	fmt.Fprintf(d.out, "Aloqa connecting...\n")
	if err := d.adapter.Connect(ctx); err != nil {
		return fmt.Errorf("engine: connect: %w", err)
	}

	router, err := NewRouter(RouterOpts{
		DB:               d.db,
		Directory:        d.dir,
		Adapter:          d.adapter,
		AdminChatID:      d.cfg.AdminChatID,
		RejectionReasons: d.cfg.RejectionReasons,
		Out:              d.out,
	})
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("engine: build router: %w", err)
	}

	inbound, err := d.adapter.Listen(ctx)
	if err != nil {
		d.adapter.Close()
		return fmt.Errorf("engine: listen: %w", err)
	}

	go d.runDigestScheduler(ctx)

	fmt.Fprintf(d.out, "Aloqa online\n")

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(d.out, "Aloqa shutting down...\n")
			if err := d.adapter.Close(); err != nil {
				d.logger.Printf("engine: close adapter: %v", err)
			}
			fmt.Fprintf(d.out, "Aloqa stopped\n")
			return nil

		case ev, ok := <-inbound:
			if !ok {
				fmt.Fprintf(d.out, "Aloqa inbound channel closed\n")
				return nil
			}
			go router.HandleEvent(ctx, ev)
		}
	}
}
