// Command caldavsync-inspect is a small end-to-end harness: it discovers
// an account against a real server, runs one sync pass per calendar into
// a local sqlite mirror, and prints what it found. It exists to exercise
// internal/discovery, internal/syncengine, and internal/store/sqlite
// together the way a real host application would wire them, the same
// role the teacher's cmd/ldap-dav-bootstrap plays for its own storage
// layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/kestrelcal/caldavsync/internal/config"
	"github.com/kestrelcal/caldavsync/internal/discovery"
	"github.com/kestrelcal/caldavsync/internal/logging"
	"github.com/kestrelcal/caldavsync/internal/store/sqlite"
	"github.com/kestrelcal/caldavsync/internal/syncengine"
	"github.com/kestrelcal/caldavsync/internal/transport"
)

func main() {
	var (
		server   string
		username string
		password string
		bearer   string
		dbPath   string
		logLevel string
	)
	flag.StringVar(&server, "server", "", "server URL or email address to discover (required)")
	flag.StringVar(&username, "user", "", "basic auth username")
	flag.StringVar(&password, "pass", "", "basic auth password")
	flag.StringVar(&bearer, "bearer", "", "bearer token (alternative to -user/-pass)")
	flag.StringVar(&dbPath, "db", "caldavsync-inspect.db", "sqlite file to mirror calendars into")
	flag.StringVar(&logLevel, "log-level", "", "override CALDAV_LOG_LEVEL")
	flag.Parse()

	if server == "" {
		fmt.Fprintln(os.Stderr, "usage: caldavsync-inspect -server <url-or-email> [-user <u> -pass <p> | -bearer <token>] [-db <path>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger := logging.New(cfg.LogLevel)

	var cred transport.Credential
	switch {
	case bearer != "":
		cred = transport.BearerCredential{Token: bearer}
	case username != "":
		cred = transport.BasicCredential{Username: username, Password: password}
	}

	tr := transport.New(http.DefaultClient, cred, cfg, logger)
	disc := discovery.New(tr, nil, cfg, logger)

	ctx := context.Background()
	account, err := disc.Discover(ctx, server)
	if err != nil {
		fmt.Fprintf(os.Stderr, "discover: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("principal: %s\n", account.PrincipalURL)
	fmt.Printf("calendar home: %s\n", account.CalendarHomeURL)
	if account.ScheduleInbox != "" {
		fmt.Printf("schedule inbox: %s\n", account.ScheduleInbox)
	}
	if account.ScheduleOutbox != "" {
		fmt.Printf("schedule outbox: %s\n", account.ScheduleOutbox)
	}
	fmt.Printf("calendars found: %d\n", len(account.Calendars))

	store, err := sqlite.New(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store init: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	eng := syncengine.New(tr, store, store, cfg, logger)

	for _, cal := range account.Calendars {
		fmt.Printf("\n%s (%s)\n", cal.DisplayName, cal.Href)
		res, err := eng.Sync(ctx, cal.Href)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  sync failed: %v\n", err)
			continue
		}
		fmt.Printf("  state: %s, pulled=%d deleted=%d pushed=%d conflicts=%d fallback=%v\n",
			res.FinalState, res.Pulled, res.Deleted, res.Pushed, len(res.Conflicts), res.UsedFallback)
		for _, c := range res.Conflicts {
			fmt.Printf("  conflict: import_id=%s local_etag=%s remote_etag=%s\n", c.ImportID, c.Local.ETag, c.Remote.ETag)
		}
	}
}
